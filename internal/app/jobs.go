package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	eventqueue "github.com/okian/dosetrack/internal/adapters/mq/queue"
	"github.com/okian/dosetrack/internal/domain/dedupe"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/pkg/logger"
	"github.com/okian/dosetrack/pkg/metrics"
)

// SubmitReload queues a full reload from the repositories. The returned channel
// receives the job's result.
func (s *Service) SubmitReload(ctx context.Context) (<-chan error, error) {
	return s.submit(ctx, eventqueue.KindReload, s.Reload)
}

// SubmitPrune queues a history retention pass.
func (s *Service) SubmitPrune(ctx context.Context) (<-chan error, error) {
	return s.submit(ctx, eventqueue.KindPruneHistory, func(ctx context.Context) error {
		_, err := s.PruneHistory(ctx)
		return err
	})
}

// SubmitSweep queues a missed-dose sweep of day.
func (s *Service) SubmitSweep(ctx context.Context, day model.Date) (<-chan error, error) {
	return s.submit(ctx, eventqueue.KindSweepMissed, func(ctx context.Context) error {
		_, err := s.SweepMissed(ctx, day)
		return err
	})
}

func (s *Service) submit(ctx context.Context, kind string, run func(context.Context) error) (<-chan error, error) {
	q := s.jobs.Load()
	if q == nil {
		return nil, fmt.Errorf("submit %s: %w", kind, ErrNotStarted)
	}

	done := eventqueue.NewDone()
	job := eventqueue.Job{ID: uuid.NewString(), Kind: kind, Run: run, Done: done}
	if err := q.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("submit %s: %w", kind, err)
	}
	return done, nil
}

// PruneHistory deletes history older than the retention period and returns how
// many records went. An indefinite period deletes nothing.
func (s *Service) PruneHistory(ctx context.Context) (int, error) {
	n, err := s.retention.Apply(ctx, s.history, s.now())
	if err != nil {
		metrics.RecordRepositoryError("history", "delete_before")
		return 0, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	metrics.RecordHistoryPruned(n)
	if n > 0 {
		s.logger.Info(ctx, "history pruned",
			logger.Int("records", n),
			logger.String("retention", s.retentionPeriod.String()),
		)
	}
	return n, nil
}

// SweepMissed appends a Missed history record for every slot of day that is past
// and unmatched. Each slot is written at most once per process.
func (s *Service) SweepMissed(ctx context.Context, day model.Date) (int, error) {
	st := s.snap.Load()
	now := s.now()
	view := st.today
	if view.day != day {
		view = s.buildToday(st, day)
	}

	appended := 0
	for _, ss := range s.reconciler.Reconcile(view.slots, st.events, now) {
		if ss.Status != model.StatusMissed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return appended, err
		}
		key := dedupe.SlotKey(ss.Slot)
		if s.deduper.SeenAndRecord(ctx, key) {
			continue
		}
		rec := model.HistoryRecord{
			ID:            uuid.NewString(),
			SubjectID:     ss.Slot.SubjectID,
			SubjectName:   st.subjects[ss.Slot.SubjectID].Name,
			ScheduledTime: ss.Slot.ScheduledTime,
			RecordedTime:  now,
			Status:        model.StatusMissed,
		}
		if err := s.history.Append(ctx, rec); err != nil {
			s.deduper.Unrecord(ctx, key)
			metrics.RecordRepositoryError("history", "append")
			return appended, fmt.Errorf("%w: history append: %w", ErrRepository, err)
		}
		metrics.RecordHistoryAppended()
		appended++
	}

	if appended > 0 {
		s.logger.Info(ctx, "missed doses recorded",
			logger.String("day", day.String()),
			logger.Int("count", appended),
		)
	}
	return appended, nil
}
