package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/okian/dosetrack/internal/domain/adherence"
	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/internal/domain/schedule"
	"github.com/okian/dosetrack/pkg/metrics"
)

// SlotView is one of today's due slots with its reconciled status.
type SlotView struct {
	SubjectID     string       `json:"subject_id"`
	SubjectName   string       `json:"subject_name"`
	ScheduledTime time.Time    `json:"scheduled_time"`
	Status        model.Status `json:"status"`
	ScheduleID    string       `json:"schedule_id"`
	EventID       string       `json:"event_id,omitempty"`
}

// UpcomingSlot is the next due time of one schedule.
type UpcomingSlot struct {
	SubjectID     string    `json:"subject_id"`
	SubjectName   string    `json:"subject_name"`
	ScheduledTime time.Time `json:"scheduled_time"`
	ScheduleID    string    `json:"schedule_id"`
}

// TodayDueSlots returns today's slots across active schedules, each reconciled
// against the recorded doses.
func (s *Service) TodayDueSlots(_ context.Context) []SlotView {
	start := time.Now()
	st := s.snap.Load()
	now := s.now()
	view := st.today
	if day := model.DateOf(now.In(s.loc)); view.day != day {
		view = s.buildToday(st, day)
	}

	statuses := s.reconciler.Reconcile(view.slots, st.events, now)
	out := make([]SlotView, len(statuses))
	for i, ss := range statuses {
		out[i] = SlotView{
			SubjectID:     ss.Slot.SubjectID,
			SubjectName:   st.subjects[ss.Slot.SubjectID].Name,
			ScheduledTime: ss.Slot.ScheduledTime,
			Status:        ss.Status,
			ScheduleID:    ss.Slot.ScheduleID,
			EventID:       ss.EventID,
		}
	}
	metrics.RecordReconcileLatency(elapsedMs(start))
	return out
}

// UpcomingDueSlots returns the next due time of every active schedule, soonest
// first, capped at limit. A limit <= 0 uses the configured default.
func (s *Service) UpcomingDueSlots(_ context.Context, limit int) []UpcomingSlot {
	if limit <= 0 {
		limit = s.upcomingLimit
	}
	st := s.snap.Load()
	now := s.now()

	out := make([]UpcomingSlot, 0, len(st.schedules))
	for _, sc := range st.schedules {
		if !sc.Active {
			continue
		}
		sub, ok := st.subjects[sc.SubjectID]
		if !ok {
			continue
		}
		next, ok := schedule.NextDueTime(sc, now, s.loc)
		if !ok {
			continue
		}
		out = append(out, UpcomingSlot{
			SubjectID:     sc.SubjectID,
			SubjectName:   sub.Name,
			ScheduledTime: next,
			ScheduleID:    sc.ID,
		})
	}

	slices.SortFunc(out, func(a, b UpcomingSlot) int {
		if c := a.ScheduledTime.Compare(b.ScheduledTime); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SubjectID, b.SubjectID); c != 0 {
			return c
		}
		return cmp.Compare(a.ScheduleID, b.ScheduleID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AdherenceRate returns the percentage of expected doses taken over the trailing
// window ending today.
func (s *Service) AdherenceRate(ctx context.Context, subjectID string, windowDays int) (float64, error) {
	start := time.Now()
	rate, err := s.analyzer.AdherenceRate(ctx, s.analyticsSnapshot(), subjectID, windowDays, s.today())
	s.observeAnalytics("adherence_rate", start, err)
	return rate, err
}

// CurrentStreak returns the number of consecutive fully taken days ending today.
func (s *Service) CurrentStreak(ctx context.Context, subjectID string) (int, error) {
	start := time.Now()
	streak, err := s.analyzer.CurrentStreak(ctx, s.analyticsSnapshot(), subjectID, s.today())
	s.observeAnalytics("current_streak", start, err)
	return streak, err
}

// AdherenceReport combines rate, streak and slot outcomes over the window.
func (s *Service) AdherenceReport(ctx context.Context, subjectID string, windowDays int) (adherence.Report, error) {
	start := time.Now()
	r, err := s.analyzer.Report(ctx, s.analyticsSnapshot(), subjectID, windowDays, s.today(), s.now())
	s.observeAnalytics("report", start, err)
	return r, err
}

// analyticsSnapshot hands the analyzer the current collections. The snapshot is
// immutable, so no copy is needed.
func (s *Service) analyticsSnapshot() adherence.Snapshot {
	st := s.snap.Load()
	return adherence.Snapshot{Schedules: st.schedules, Events: st.events}
}

func (s *Service) observeAnalytics(query string, start time.Time, err error) {
	metrics.RecordAnalyticsLatency(query, elapsedMs(start))
	if errors.Is(err, adherence.ErrCancelled) {
		metrics.RecordAnalyticsCancelled(query)
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
