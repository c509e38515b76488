package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/dosetrack/internal/app"
	"github.com/okian/dosetrack/internal/adapters/repository"
	"github.com/okian/dosetrack/internal/adapters/repository/memory"
	"github.com/okian/dosetrack/internal/domain/adherence"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// Monday.
var today = model.NewDate(2025, time.March, 10)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(h, m int) *clock {
	return &clock{now: today.At(model.MustTimeOfDay(h, m), time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type repos struct {
	subjects  *memory.SubjectRepo
	schedules *memory.ScheduleRepo
	doses     *memory.DoseEventRepo
	history   *memory.HistoryRepo
}

func newRepos() repos {
	return repos{
		subjects:  memory.NewSubjectRepo(model.Subject{ID: "sub-1", Name: "Aspirin"}, model.Subject{ID: "sub-2", Name: "Vitamin D"}),
		schedules: memory.NewScheduleRepo(),
		doses:     memory.NewDoseEventRepo(),
		history:   memory.NewHistoryRepo(),
	}
}

func newService(r repos, c *clock, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(c.Now),
		service.WithLocation(time.UTC),
		service.WithSubjectRepository(r.subjects),
		service.WithScheduleRepository(r.schedules),
		service.WithDoseRepository(r.doses),
		service.WithHistoryRepository(r.history),
		service.WithWorkerCount(2),
	}
	return service.New(append(base, opts...)...)
}

func daily(subjectID string, start model.Date, times ...model.TimeOfDay) model.Schedule {
	return model.Schedule{
		SubjectID:  subjectID,
		Frequency:  model.Frequency{Kind: model.Daily},
		TimesOfDay: times,
		Active:     true,
		StartDate:  start,
	}
}

func at(day model.Date, h, m int) time.Time {
	return day.At(model.MustTimeOfDay(h, m), time.UTC)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service with default options", t, func() {
		svc := service.New()
		defer svc.Stop()

		Convey("When it is started", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then stats report it as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["schedules"], ShouldEqual, 0)
				So(stats["retention"], ShouldEqual, "indefinite")
			})

			Convey("And stopping twice is safe", func() {
				svc.Stop()
				svc.Stop()
				So(svc.GetStats()["started"], ShouldBeFalse)
			})
		})

		Convey("When jobs are submitted before Start", func() {
			_, err := svc.SubmitReload(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_TodayScenarios(t *testing.T) {
	Convey("Given a coordinator at 12:00 on a Monday", t, func() {
		ctx := context.Background()
		c := newClock(12, 0)
		r := newRepos()
		svc := newService(r, c)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a daily 09:00 schedule started yesterday has no doses", func() {
			_, err := svc.AddSchedule(ctx, daily("sub-1", today.AddDays(-1), model.MustTimeOfDay(9, 0)))
			So(err, ShouldBeNil)

			slots := svc.TodayDueSlots(ctx)

			Convey("Then today has one Missed slot at 09:00", func() {
				So(slots, ShouldHaveLength, 1)
				So(slots[0].ScheduledTime, ShouldEqual, at(today, 9, 0))
				So(slots[0].Status, ShouldEqual, model.StatusMissed)
				So(slots[0].SubjectName, ShouldEqual, "Aspirin")
			})

			Convey("And before 09:00 the slot is Pending", func() {
				c.Set(at(today, 8, 0))
				slots := svc.TodayDueSlots(ctx)
				So(slots[0].Status, ShouldEqual, model.StatusPending)
			})
		})

		Convey("When a Monday 08:00 weekly dose is taken at 08:10", func() {
			s := daily("sub-1", today.AddDays(-14), model.MustTimeOfDay(8, 0))
			s.Frequency = model.Frequency{Kind: model.Weekly, DaysOfWeek: []int{1}}
			_, err := svc.AddSchedule(ctx, s)
			So(err, ShouldBeNil)

			dose, err := svc.RecordDose(ctx, model.DoseEvent{SubjectID: "sub-1", Timestamp: at(today, 8, 10), Taken: true})
			So(err, ShouldBeNil)

			Convey("Then the slot is Taken and points at the dose", func() {
				slots := svc.TodayDueSlots(ctx)
				So(slots, ShouldHaveLength, 1)
				So(slots[0].Status, ShouldEqual, model.StatusTaken)
				So(slots[0].EventID, ShouldEqual, dose.ID)
			})

			Convey("Then history records the slot time", func() {
				records, _ := r.history.FetchAll(ctx)
				So(records, ShouldHaveLength, 1)
				So(records[0].ScheduledTime, ShouldEqual, at(today, 8, 0))
				So(records[0].Status, ShouldEqual, model.StatusTaken)
				So(records[0].SubjectName, ShouldEqual, "Aspirin")
			})
		})

		Convey("When a custom every-3-days schedule starts today", func() {
			s := daily("sub-2", today, model.MustTimeOfDay(20, 0))
			s.Frequency = model.Frequency{Kind: model.Custom, IntervalDays: 3}
			_, err := svc.AddSchedule(ctx, s)
			So(err, ShouldBeNil)

			Convey("Then it is due today and next in three days", func() {
				So(svc.TodayDueSlots(ctx), ShouldHaveLength, 1)
				c.Set(at(today, 21, 0))
				up := svc.UpcomingDueSlots(ctx, 0)
				So(up, ShouldHaveLength, 1)
				So(up[0].ScheduledTime, ShouldEqual, at(today.AddDays(3), 20, 0))
			})
		})

		Convey("When the schedule starts tomorrow", func() {
			_, err := svc.AddSchedule(ctx, daily("sub-1", today.AddDays(1), model.MustTimeOfDay(9, 0)))
			So(err, ShouldBeNil)
			So(svc.TodayDueSlots(ctx), ShouldBeEmpty)
		})

		Convey("When a schedule is inactive", func() {
			s := daily("sub-1", today, model.MustTimeOfDay(9, 0))
			s.Active = false
			_, err := svc.AddSchedule(ctx, s)
			So(err, ShouldBeNil)
			So(svc.TodayDueSlots(ctx), ShouldBeEmpty)
			So(svc.UpcomingDueSlots(ctx, 5), ShouldBeEmpty)
		})
	})
}

func TestService_Normalization(t *testing.T) {
	Convey("Given a running coordinator", t, func() {
		ctx := context.Background()
		svc := newService(newRepos(), newClock(12, 0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a daily schedule has no times", func() {
			saved, err := svc.AddSchedule(ctx, daily("sub-1", today))

			Convey("Then it gets one 09:00 entry and an id", func() {
				So(err, ShouldBeNil)
				So(saved.ID, ShouldNotBeEmpty)
				So(saved.TimesOfDay, ShouldResemble, []model.TimeOfDay{model.MustTimeOfDay(9, 0)})
				So(saved.SubjectName, ShouldEqual, "Aspirin")
			})
		})

		Convey("When a weekly schedule has no days", func() {
			s := daily("sub-1", today, model.MustTimeOfDay(8, 0))
			s.Frequency = model.Frequency{Kind: model.Weekly}
			saved, err := svc.AddSchedule(ctx, s)
			So(err, ShouldBeNil)
			So(saved.Frequency.DaysOfWeek, ShouldResemble, []int{1})
			So(saved.Validate(), ShouldBeNil)
		})

		Convey("When the start date is missing", func() {
			s := daily("sub-1", model.Date{}, model.MustTimeOfDay(8, 0))
			saved, err := svc.AddSchedule(ctx, s)
			So(err, ShouldBeNil)
			So(saved.StartDate, ShouldResemble, today)
		})

		Convey("When the subject is missing", func() {
			_, err := svc.AddSchedule(ctx, daily("", today))

			Convey("Then the schedule is rejected", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(err, model.ErrMissingSubject), ShouldBeTrue)
				So(svc.Schedules(), ShouldBeEmpty)
			})
		})

		Convey("When adding the same id twice", func() {
			s := daily("sub-1", today, model.MustTimeOfDay(8, 0))
			s.ID = "fixed"
			_, err := svc.AddSchedule(ctx, s)
			So(err, ShouldBeNil)
			_, err = svc.AddSchedule(ctx, s)
			So(errors.Is(err, service.ErrAlreadyExists), ShouldBeTrue)
		})
	})
}

func TestService_UpdateAndDelete(t *testing.T) {
	Convey("Given a coordinator with one schedule and two doses", t, func() {
		ctx := context.Background()
		r := newRepos()
		svc := newService(r, newClock(12, 0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		sc, err := svc.AddSchedule(ctx, daily("sub-1", today.AddDays(-3), model.MustTimeOfDay(9, 0)))
		So(err, ShouldBeNil)
		other, err := svc.AddSchedule(ctx, daily("sub-2", today.AddDays(-3), model.MustTimeOfDay(9, 0)))
		So(err, ShouldBeNil)
		d1, err := svc.RecordDose(ctx, model.DoseEvent{SubjectID: "sub-1", Timestamp: at(today, 9, 5), Taken: true})
		So(err, ShouldBeNil)
		_, err = svc.RecordDose(ctx, model.DoseEvent{SubjectID: "sub-2", Timestamp: at(today, 9, 0), Taken: true})
		So(err, ShouldBeNil)

		Convey("When updating the schedule times", func() {
			sc.TimesOfDay = []model.TimeOfDay{model.MustTimeOfDay(21, 0), model.MustTimeOfDay(7, 0)}
			updated, err := svc.UpdateSchedule(ctx, sc)

			Convey("Then times are sorted and the view follows", func() {
				So(err, ShouldBeNil)
				So(updated.TimesOfDay[0], ShouldResemble, model.MustTimeOfDay(7, 0))
				stored, _ := r.schedules.FetchAll(ctx)
				So(stored, ShouldHaveLength, 2)
				slots := svc.TodayDueSlots(ctx)
				So(slots, ShouldHaveLength, 3)
			})
		})

		Convey("When updating an unknown schedule", func() {
			_, err := svc.UpdateSchedule(ctx, model.Schedule{ID: "nope", SubjectID: "sub-1"})
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the dose is marked skipped", func() {
			d1.Taken = false
			d1.SkippedReason = "nausea"
			_, err := svc.UpdateDose(ctx, d1)
			So(err, ShouldBeNil)

			Convey("Then the slot becomes Skipped", func() {
				for _, v := range svc.TodayDueSlots(ctx) {
					if v.SubjectID == "sub-1" {
						So(v.Status, ShouldEqual, model.StatusSkipped)
					}
				}
			})
		})

		Convey("When the dose is deleted", func() {
			So(svc.DeleteDose(ctx, d1.ID), ShouldBeNil)
			So(errors.Is(svc.DeleteDose(ctx, d1.ID), service.ErrNotFound), ShouldBeTrue)
			So(svc.DoseEvents(), ShouldHaveLength, 1)
		})

		Convey("When the schedule is deleted", func() {
			So(svc.DeleteSchedule(ctx, sc.ID), ShouldBeNil)

			Convey("Then every dose of its subject goes too", func() {
				So(svc.Schedules(), ShouldHaveLength, 1)
				So(svc.Schedules()[0].ID, ShouldEqual, other.ID)
				events, _ := r.doses.FetchAll(ctx)
				So(events, ShouldHaveLength, 1)
				So(events[0].SubjectID, ShouldEqual, "sub-2")
			})
		})

		Convey("When deleting an unknown schedule", func() {
			So(errors.Is(svc.DeleteSchedule(ctx, "nope"), service.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_SubjectCascade(t *testing.T) {
	Convey("Given two subjects with schedules, doses and history", t, func() {
		ctx := context.Background()
		r := newRepos()
		svc := newService(r, newClock(12, 0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		for _, sub := range []string{"sub-1", "sub-2"} {
			_, err := svc.AddSchedule(ctx, daily(sub, today.AddDays(-1), model.MustTimeOfDay(9, 0)))
			So(err, ShouldBeNil)
			_, err = svc.RecordDose(ctx, model.DoseEvent{SubjectID: sub, Timestamp: at(today, 9, 0), Taken: true})
			So(err, ShouldBeNil)
		}

		Convey("When one subject is deleted", func() {
			So(svc.OnSubjectDeleted(ctx, "sub-1"), ShouldBeNil)

			Convey("Then no repository holds anything for it", func() {
				schedules, _ := r.schedules.FetchAll(ctx)
				events, _ := r.doses.FetchAll(ctx)
				records, _ := r.history.FetchAll(ctx)
				for _, s := range schedules {
					So(s.SubjectID, ShouldNotEqual, "sub-1")
				}
				for _, e := range events {
					So(e.SubjectID, ShouldNotEqual, "sub-1")
				}
				for _, h := range records {
					So(h.SubjectID, ShouldNotEqual, "sub-1")
				}
				So(schedules, ShouldHaveLength, 1)
				So(svc.TodayDueSlots(ctx), ShouldHaveLength, 1)
			})
		})

		Convey("When every subject is deleted", func() {
			So(svc.OnAllSubjectsDeleted(ctx), ShouldBeNil)

			Convey("Then storage and views are empty", func() {
				schedules, _ := r.schedules.FetchAll(ctx)
				events, _ := r.doses.FetchAll(ctx)
				records, _ := r.history.FetchAll(ctx)
				So(schedules, ShouldBeEmpty)
				So(events, ShouldBeEmpty)
				So(records, ShouldBeEmpty)
				So(svc.TodayDueSlots(ctx), ShouldBeEmpty)
				So(svc.UpcomingDueSlots(ctx, 0), ShouldBeEmpty)
			})
		})

		Convey("When a subject is renamed", func() {
			So(r.subjects.Save(ctx, model.Subject{ID: "sub-1", Name: "Aspirin 100mg"}), ShouldBeNil)
			So(svc.OnSubjectUpdated(ctx, "sub-1"), ShouldBeNil)

			Convey("Then schedules carry the new name and doses keep the old one", func() {
				for _, s := range svc.Schedules() {
					if s.SubjectID == "sub-1" {
						So(s.SubjectName, ShouldEqual, "Aspirin 100mg")
					}
				}
				for _, e := range svc.DoseEvents() {
					if e.SubjectID == "sub-1" {
						So(e.SubjectName, ShouldEqual, "Aspirin")
					}
				}
			})
		})
	})
}

type failingScheduleRepo struct {
	*memory.ScheduleRepo
	mu   sync.Mutex
	fail bool
}

func (f *failingScheduleRepo) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *failingScheduleRepo) Save(ctx context.Context, s model.Schedule) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.ScheduleRepo.Save(ctx, s)
}

type failingDoseRepo struct {
	*memory.DoseEventRepo
}

func (failingDoseRepo) Delete(context.Context, string) error {
	return errors.New("connection reset")
}

func TestService_RepositoryFailures(t *testing.T) {
	Convey("Given a coordinator whose schedule repository can fail", t, func() {
		ctx := context.Background()
		r := newRepos()
		failing := &failingScheduleRepo{ScheduleRepo: r.schedules}
		svc := newService(r, newClock(12, 0), service.WithScheduleRepository(failing))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		saved, err := svc.AddSchedule(ctx, daily("sub-1", today, model.MustTimeOfDay(9, 0)))
		So(err, ShouldBeNil)

		Convey("When a save fails", func() {
			failing.setFail(true)
			saved.Notes = "changed"
			_, err := svc.UpdateSchedule(ctx, saved)

			Convey("Then the error wraps ErrRepository and memory is unchanged", func() {
				So(errors.Is(err, service.ErrRepository), ShouldBeTrue)
				So(svc.Schedules(), ShouldHaveLength, 1)
				So(svc.Schedules()[0].Notes, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a coordinator whose dose deletes fail", t, func() {
		ctx := context.Background()
		r := newRepos()
		svc := newService(r, newClock(12, 0), service.WithDoseRepository(failingDoseRepo{r.doses}))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, err := svc.AddSchedule(ctx, daily("sub-1", today, model.MustTimeOfDay(9, 0)))
		So(err, ShouldBeNil)
		_, err = svc.RecordDose(ctx, model.DoseEvent{SubjectID: "sub-1", Timestamp: at(today, 9, 0), Taken: true})
		So(err, ShouldBeNil)

		Convey("When a subject cascade stops half way", func() {
			err := svc.OnSubjectDeleted(ctx, "sub-1")

			Convey("Then the error is surfaced and the snapshot is kept", func() {
				So(errors.Is(err, service.ErrRepository), ShouldBeTrue)
				So(svc.DoseEvents(), ShouldHaveLength, 1)
			})
		})
	})
}

type readOnlySubjects struct {
	subjects map[string]model.Subject
}

func (r readOnlySubjects) FetchAll(context.Context) ([]model.Subject, error) {
	out := make([]model.Subject, 0, len(r.subjects))
	for _, s := range r.subjects {
		out = append(out, s)
	}
	return out, nil
}

func (r readOnlySubjects) FetchByID(_ context.Context, id string) (model.Subject, error) {
	s, ok := r.subjects[id]
	if !ok {
		return model.Subject{}, repository.ErrNotFound
	}
	return s, nil
}

func TestService_DroppedSlots(t *testing.T) {
	Convey("Given a read-only subject repository that lacks one subject", t, func() {
		ctx := context.Background()
		r := newRepos()
		subjects := readOnlySubjects{subjects: map[string]model.Subject{"sub-1": {ID: "sub-1", Name: "Aspirin"}}}
		svc := newService(r, newClock(12, 0), service.WithSubjectRepository(subjects))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, err := svc.AddSchedule(ctx, daily("sub-1", today, model.MustTimeOfDay(9, 0)))
		So(err, ShouldBeNil)
		_, err = svc.AddSchedule(ctx, daily("ghost", today, model.MustTimeOfDay(10, 0), model.MustTimeOfDay(11, 0)))
		So(err, ShouldBeNil)

		Convey("Then the unknown subject's slots are dropped and counted", func() {
			slots := svc.TodayDueSlots(ctx)
			So(slots, ShouldHaveLength, 1)
			So(slots[0].SubjectID, ShouldEqual, "sub-1")
			So(svc.GetStats()["droppedSlots"], ShouldEqual, 2)
			So(svc.UpcomingDueSlots(ctx, 10), ShouldHaveLength, 1)
		})
	})
}

func TestService_Upcoming(t *testing.T) {
	Convey("Given six schedules due at different times", t, func() {
		ctx := context.Background()
		svc := newService(newRepos(), newClock(12, 0), service.WithUpcomingLimit(3))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		for i, h := range []int{8, 13, 22, 15, 13, 18} {
			sub := "sub-1"
			if i%2 == 1 {
				sub = "sub-2"
			}
			_, err := svc.AddSchedule(ctx, daily(sub, today, model.MustTimeOfDay(h, 0)))
			So(err, ShouldBeNil)
		}

		Convey("When asking with the default limit", func() {
			up := svc.UpcomingDueSlots(ctx, 0)

			Convey("Then it is sorted, tie-broken by subject and capped", func() {
				So(up, ShouldHaveLength, 3)
				So(up[0].ScheduledTime, ShouldEqual, at(today, 13, 0))
				So(up[0].SubjectID, ShouldEqual, "sub-1")
				So(up[1].ScheduledTime, ShouldEqual, at(today, 13, 0))
				So(up[1].SubjectID, ShouldEqual, "sub-2")
				So(up[2].ScheduledTime, ShouldEqual, at(today, 15, 0))
			})
		})

		Convey("When asking for more than exist", func() {
			up := svc.UpcomingDueSlots(ctx, 100)
			So(up, ShouldHaveLength, 6)
			So(up[5].ScheduledTime, ShouldEqual, at(today.AddDays(1), 8, 0))
		})
	})
}

func TestService_Analytics(t *testing.T) {
	Convey("Given a daily schedule with a three day taken streak", t, func() {
		ctx := context.Background()
		svc := newService(newRepos(), newClock(12, 0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, err := svc.AddSchedule(ctx, daily("sub-1", today.AddDays(-3), model.MustTimeOfDay(9, 0)))
		So(err, ShouldBeNil)
		for i := 0; i < 3; i++ {
			_, err := svc.RecordDose(ctx, model.DoseEvent{SubjectID: "sub-1", Timestamp: at(today.AddDays(-i), 9, 0), Taken: true})
			So(err, ShouldBeNil)
		}

		Convey("Then rate and streak reflect the missed first day", func() {
			rate, err := svc.AdherenceRate(ctx, "sub-1", 7)
			So(err, ShouldBeNil)
			So(rate, ShouldEqual, 75)

			streak, err := svc.CurrentStreak(ctx, "sub-1")
			So(err, ShouldBeNil)
			So(streak, ShouldEqual, 3)

			report, err := svc.AdherenceReport(ctx, "sub-1", 3)
			So(err, ShouldBeNil)
			So(report.Slots[model.StatusMissed], ShouldEqual, 1)
			So(report.Slots[model.StatusTaken], ShouldEqual, 3)
		})

		Convey("Then a subject with nothing expected has a zero rate", func() {
			rate, err := svc.AdherenceRate(ctx, "sub-2", 30)
			So(err, ShouldBeNil)
			So(rate, ShouldEqual, 0)
		})

		Convey("When the query is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.CurrentStreak(cctx, "sub-1")
			So(errors.Is(err, adherence.ErrCancelled), ShouldBeTrue)
		})
	})
}

func TestService_Listeners(t *testing.T) {
	Convey("Given a subscribed listener", t, func() {
		ctx := context.Background()
		svc := newService(newRepos(), newClock(12, 0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		var got []service.Change
		svc.Subscribe(func(_ context.Context, c service.Change) { got = append(got, c) })

		sc, err := svc.AddSchedule(ctx, daily("sub-1", today, model.MustTimeOfDay(9, 0)))
		So(err, ShouldBeNil)
		dose, err := svc.RecordDose(ctx, model.DoseEvent{SubjectID: "sub-1", Taken: true})
		So(err, ShouldBeNil)
		So(svc.DeleteSchedule(ctx, sc.ID), ShouldBeNil)

		Convey("Then it sees every change in commit order", func() {
			So(got, ShouldResemble, []service.Change{
				{Kind: service.ChangeScheduleSaved, SubjectID: "sub-1", EntityID: sc.ID},
				{Kind: service.ChangeDoseSaved, SubjectID: "sub-1", EntityID: dose.ID},
				{Kind: service.ChangeScheduleDeleted, SubjectID: "sub-1", EntityID: sc.ID},
				{Kind: service.ChangeDoseDeleted, SubjectID: "sub-1", EntityID: dose.ID},
			})
		})

		Convey("Then a failed mutation notifies nobody", func() {
			n := len(got)
			_ = svc.DeleteSchedule(ctx, "nope")
			So(got, ShouldHaveLength, n)
		})
	})
}
