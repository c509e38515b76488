package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dosetrack/internal/domain/model"
)

func TestCodec(t *testing.T) {
	Convey("Given a history record", t, func() {
		rec := model.HistoryRecord{
			ID:            "h-1",
			SubjectID:     "sub-1",
			SubjectName:   "Aspirin",
			ScheduledTime: time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC),
			RecordedTime:  time.Date(2025, 3, 3, 8, 10, 0, 0, time.UTC),
			Status:        model.StatusTaken,
		}

		Convey("When encoded and decoded", func() {
			member, err := encode(rec)
			So(err, ShouldBeNil)
			got, err := decode(member)
			So(err, ShouldBeNil)
			So(got.ID, ShouldEqual, rec.ID)
			So(got.ScheduledTime.Equal(rec.ScheduledTime), ShouldBeTrue)
			So(got.Status, ShouldEqual, model.StatusTaken)
		})

		Convey("When decoding garbage", func() {
			_, err := decode("{")
			So(errors.Is(err, ErrSerialization), ShouldBeTrue)
		})

		Convey("When scoring", func() {
			So(score(rec.ScheduledTime), ShouldEqual, float64(rec.ScheduledTime.UnixMilli()))
		})

		Convey("When building keys", func() {
			s := NewHistoryStore(nil, WithKeyPrefix("test:"))
			So(s.historyKey(), ShouldEqual, "test:history")
			So(s.subjectKey("sub-1"), ShouldEqual, "test:history:subject:sub-1")
			So(NewHistoryStore(nil).historyKey(), ShouldEqual, "dosetrack:history")
		})
	})
}

// TestHistoryStoreRedis runs against a live Redis when DOSETRACK_TEST_REDIS_ADDR is set.
func TestHistoryStoreRedis(t *testing.T) {
	addr := os.Getenv("DOSETRACK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOSETRACK_TEST_REDIS_ADDR not set")
	}

	Convey("Given a history store on a live Redis", t, func() {
		ctx := context.Background()
		cfg := DefaultConfig()
		cfg.Addr = addr
		client, err := Open(ctx, cfg)
		So(err, ShouldBeNil)
		defer func() { _ = client.Close() }()

		prefix := "dosetrack-test:" + uuid.NewString() + ":"
		store := NewHistoryStore(client, WithKeyPrefix(prefix))
		defer func() {
			keys, _ := client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				_ = client.Del(ctx, keys...).Err()
			}
		}()

		base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
		for i, sub := range []string{"sub-1", "sub-2", "sub-1"} {
			So(store.Append(ctx, model.HistoryRecord{
				ID:            uuid.NewString(),
				SubjectID:     sub,
				ScheduledTime: base.AddDate(0, 0, -i*10),
				RecordedTime:  base,
				Status:        model.StatusTaken,
			}), ShouldBeNil)
		}

		Convey("When fetching all", func() {
			all, err := store.FetchAll(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 3)
			So(all[0].ScheduledTime.Before(all[2].ScheduledTime), ShouldBeTrue)
		})

		Convey("When pruning before a cutoff", func() {
			n, err := store.DeleteBefore(ctx, base.AddDate(0, 0, -5))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			all, _ := store.FetchAll(ctx)
			So(all, ShouldHaveLength, 1)
		})

		Convey("When deleting a subject", func() {
			n, err := store.DeleteSubject(ctx, "sub-1")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			all, _ := store.FetchAll(ctx)
			So(all, ShouldHaveLength, 1)
			So(all[0].SubjectID, ShouldEqual, "sub-2")
		})
	})
}
