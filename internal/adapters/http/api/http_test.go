package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dosetrack/internal/adapters/http/api"
	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/adapters/repository/memory"
	service "github.com/okian/dosetrack/internal/app"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// readOnlySubjects hides the writer methods of the memory repository.
type readOnlySubjects struct {
	repository.SubjectRepository
}

type fixture struct {
	svc     *service.Service
	handler http.Handler
}

func newFixture(subjects repository.SubjectRepository) fixture {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	svc := service.New(
		service.WithClock(func() time.Time { return now }),
		service.WithLocation(time.UTC),
		service.WithSubjectRepository(subjects),
		service.WithWorkerCount(1),
	)
	So(svc.Start(context.Background()), ShouldBeNil)
	return fixture{svc: svc, handler: api.NewServer(svc, svc).Handler()}
}

func seededSubjects() *memory.SubjectRepo {
	return memory.NewSubjectRepo(model.Subject{ID: "sub-1", Name: "Aspirin"}, model.Subject{ID: "sub-2", Name: "Vitamin D"})
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

const dailyBody = `{"subject_id":"sub-1","frequency":{"kind":"daily"},"times_of_day":["09:00"],"start_date":"2025-03-10"}`

func TestServer_Ambient(t *testing.T) {
	Convey("Given a running API", t, func() {
		f := newFixture(seededSubjects())
		defer f.svc.Stop()

		Convey("When probing health", func() {
			w := f.do(http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When reading stats", func() {
			w := f.do(http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["started"], ShouldEqual, true)
			So(stats, ShouldContainKey, "todaySlots")
		})

		Convey("When requesting an unknown route", func() {
			w := f.do(http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When using an unsupported method", func() {
			w := f.do(http.MethodPatch, "/today", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Schedules(t *testing.T) {
	Convey("Given a running API", t, func() {
		f := newFixture(seededSubjects())
		defer f.svc.Stop()

		Convey("When a schedule is created", func() {
			w := f.do(http.MethodPost, "/schedules", dailyBody)
			So(w.Code, ShouldEqual, http.StatusCreated)
			created := decode[model.Schedule](w)

			Convey("Then it gets an id, the subject name and defaults to active", func() {
				So(created.ID, ShouldNotBeEmpty)
				So(created.SubjectName, ShouldEqual, "Aspirin")
				So(created.Active, ShouldBeTrue)
			})

			Convey("Then it can be fetched by id", func() {
				w := f.do(http.MethodGet, "/schedules/"+created.ID, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.Schedule](w).ID, ShouldEqual, created.ID)
			})

			Convey("Then it is listed", func() {
				w := f.do(http.MethodGet, "/schedules", "")
				So(decode[[]model.Schedule](w), ShouldHaveLength, 1)
			})

			Convey("When it is updated", func() {
				body := `{"subject_id":"sub-1","frequency":{"kind":"daily"},"times_of_day":["20:00"],"start_date":"2025-03-10","notes":"after dinner"}`
				w := f.do(http.MethodPut, "/schedules/"+created.ID, body)
				So(w.Code, ShouldEqual, http.StatusOK)
				updated := decode[model.Schedule](w)
				So(updated.Notes, ShouldEqual, "after dinner")
				So(updated.TimesOfDay[0], ShouldResemble, model.MustTimeOfDay(20, 0))
			})

			Convey("When the body id disagrees with the path", func() {
				body := `{"id":"other","subject_id":"sub-1"}`
				w := f.do(http.MethodPut, "/schedules/"+created.ID, body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("When it is created again with the same id", func() {
				body := `{"id":"` + created.ID + `","subject_id":"sub-1"}`
				w := f.do(http.MethodPost, "/schedules", body)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode[map[string]string](w)["code"], ShouldEqual, "conflict")
			})

			Convey("When it is deleted", func() {
				So(f.do(http.MethodDelete, "/schedules/"+created.ID, "").Code, ShouldEqual, http.StatusNoContent)
				So(f.do(http.MethodGet, "/schedules/"+created.ID, "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the subject is missing", func() {
			w := f.do(http.MethodPost, "/schedules", `{"frequency":{"kind":"daily"}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[map[string]string](w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the body has unknown fields", func() {
			w := f.do(http.MethodPost, "/schedules", `{"subject_id":"sub-1","dosage":"2 pills"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a date is malformed", func() {
			w := f.do(http.MethodPost, "/schedules", `{"subject_id":"sub-1","start_date":"10/03/2025"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When updating an unknown schedule", func() {
			w := f.do(http.MethodPut, "/schedules/nope", `{"subject_id":"sub-1"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_DosesAndViews(t *testing.T) {
	Convey("Given a daily 09:00 schedule at 10:00", t, func() {
		f := newFixture(seededSubjects())
		defer f.svc.Stop()
		So(f.do(http.MethodPost, "/schedules", dailyBody).Code, ShouldEqual, http.StatusCreated)

		Convey("When nothing was recorded", func() {
			w := f.do(http.MethodGet, "/today", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			slots := decode[[]service.SlotView](w)
			So(slots, ShouldHaveLength, 1)
			So(slots[0].Status, ShouldEqual, model.StatusMissed)
		})

		Convey("When a dose is taken within tolerance", func() {
			w := f.do(http.MethodPost, "/doses", `{"id":"e-1","subject_id":"sub-1","timestamp":"2025-03-10T09:05:00Z","taken":true}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decode[model.DoseEvent](w).SubjectName, ShouldEqual, "Aspirin")

			Convey("Then today's slot is taken", func() {
				slots := decode[[]service.SlotView](f.do(http.MethodGet, "/today", ""))
				So(slots[0].Status, ShouldEqual, model.StatusTaken)
				So(slots[0].EventID, ShouldEqual, "e-1")
			})

			Convey("Then adherence and streak reflect it", func() {
				w := f.do(http.MethodGet, "/subjects/sub-1/adherence", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				rate := decode[map[string]any](w)
				So(rate["rate"], ShouldEqual, 100.0)
				So(rate["window_days"], ShouldEqual, float64(api.DefaultWindowDays))

				streak := decode[map[string]any](f.do(http.MethodGet, "/subjects/sub-1/streak", ""))
				So(streak["streak"], ShouldEqual, 1.0)
			})

			Convey("Then the report counts the slot", func() {
				w := f.do(http.MethodGet, "/subjects/sub-1/report?window=0", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				report := decode[map[string]any](w)
				So(report["taken"], ShouldEqual, 1.0)
				So(report["expected"], ShouldEqual, 1.0)
			})

			Convey("Then recording the same id again conflicts", func() {
				w := f.do(http.MethodPost, "/doses", `{"id":"e-1","subject_id":"sub-1","taken":true}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then it can be marked skipped", func() {
				w := f.do(http.MethodPut, "/doses/e-1", `{"skipped_reason":"nausea"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				slots := decode[[]service.SlotView](f.do(http.MethodGet, "/today", ""))
				So(slots[0].Status, ShouldEqual, model.StatusSkipped)
			})

			Convey("Then doses can be filtered by subject", func() {
				So(decode[[]model.DoseEvent](f.do(http.MethodGet, "/doses?subject_id=sub-1", "")), ShouldHaveLength, 1)
				So(decode[[]model.DoseEvent](f.do(http.MethodGet, "/doses?subject_id=sub-2", "")), ShouldHaveLength, 0)
			})

			Convey("Then it can be deleted once", func() {
				So(f.do(http.MethodDelete, "/doses/e-1", "").Code, ShouldEqual, http.StatusNoContent)
				So(f.do(http.MethodDelete, "/doses/e-1", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a dose has no subject", func() {
			w := f.do(http.MethodPost, "/doses", `{"taken":true}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When listing upcoming slots", func() {
			w := f.do(http.MethodGet, "/upcoming?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			upcoming := decode[[]service.UpcomingSlot](w)
			So(upcoming, ShouldHaveLength, 1)
			So(upcoming[0].ScheduledTime.Equal(time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("When a query parameter is malformed", func() {
			So(f.do(http.MethodGet, "/upcoming?limit=ten", "").Code, ShouldEqual, http.StatusBadRequest)
			So(f.do(http.MethodGet, "/subjects/sub-1/adherence?window=-1", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Subjects(t *testing.T) {
	Convey("Given a writable subject repository", t, func() {
		subjects := seededSubjects()
		f := newFixture(subjects)
		defer f.svc.Stop()
		So(f.do(http.MethodPost, "/schedules", dailyBody).Code, ShouldEqual, http.StatusCreated)

		Convey("When a subject is renamed", func() {
			w := f.do(http.MethodPut, "/subjects/sub-1", `{"name":"Aspirin 100mg"}`)
			So(w.Code, ShouldEqual, http.StatusOK)

			Convey("Then its schedules carry the new name", func() {
				schedules := decode[[]model.Schedule](f.do(http.MethodGet, "/schedules", ""))
				So(schedules[0].SubjectName, ShouldEqual, "Aspirin 100mg")
			})
		})

		Convey("When a rename has no name", func() {
			So(f.do(http.MethodPut, "/subjects/sub-1", `{}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a subject is deleted", func() {
			So(f.do(http.MethodDelete, "/subjects/sub-1", "").Code, ShouldEqual, http.StatusNoContent)

			Convey("Then its schedules are gone and the repository forgot it", func() {
				So(decode[[]model.Schedule](f.do(http.MethodGet, "/schedules", "")), ShouldHaveLength, 0)
				_, err := subjects.FetchByID(context.Background(), "sub-1")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When every subject is deleted", func() {
			So(f.do(http.MethodDelete, "/subjects", "").Code, ShouldEqual, http.StatusNoContent)
			all, err := subjects.FetchAll(context.Background())
			So(err, ShouldBeNil)
			So(all, ShouldBeEmpty)
			So(decode[[]model.Subject](f.do(http.MethodGet, "/subjects", "")), ShouldBeEmpty)
		})
	})

	Convey("Given a read-only subject repository", t, func() {
		f := newFixture(readOnlySubjects{seededSubjects()})
		defer f.svc.Stop()
		So(f.do(http.MethodPost, "/schedules", dailyBody).Code, ShouldEqual, http.StatusCreated)

		Convey("When a rename is attempted", func() {
			w := f.do(http.MethodPut, "/subjects/sub-1", `{"name":"x"}`)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(decode[map[string]string](w)["code"], ShouldEqual, "read_only")
		})

		Convey("When a deletion notification arrives", func() {
			So(f.do(http.MethodDelete, "/subjects/sub-1", "").Code, ShouldEqual, http.StatusNoContent)
			So(decode[[]model.Schedule](f.do(http.MethodGet, "/schedules", "")), ShouldHaveLength, 0)
		})
	})
}
