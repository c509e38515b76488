// Package adherence computes adherence statistics over schedule and dose snapshots.
package adherence

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/internal/domain/reconcile"
	"github.com/okian/dosetrack/internal/domain/schedule"
)

const percent = 100.0

// Snapshot is the immutable input of every query.
type Snapshot struct {
	Schedules []model.Schedule
	Events    []model.DoseEvent
}

// Report summarizes one subject over a trailing window.
type Report struct {
	SubjectID  string               `json:"subject_id"`
	WindowDays int                  `json:"window_days"`
	From       model.Date           `json:"from"`
	To         model.Date           `json:"to"`
	Rate       float64              `json:"rate"`
	Streak     int                  `json:"streak"`
	Expected   int                  `json:"expected"`
	Taken      int                  `json:"taken"`
	Slots      map[model.Status]int `json:"slots"`
}

// Analyzer is read-only and safe for concurrent use.
type Analyzer struct {
	loc           *time.Location
	tolerance     time.Duration
	maxStreakDays int
	reconciler    *reconcile.Reconciler
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		loc:           time.Local,
		tolerance:     reconcile.DefaultTolerance,
		maxStreakDays: DefaultMaxStreakDays,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.reconciler = reconcile.New(reconcile.WithTolerance(a.tolerance))
	return a
}

// AdherenceRate returns the percentage of expected doses taken in
// [today-windowDays, today]. It is exactly 0 when nothing was expected.
func (a *Analyzer) AdherenceRate(ctx context.Context, snap Snapshot, subjectID string, windowDays int, today model.Date) (float64, error) {
	from := today.AddDays(-max(windowDays, 0))
	expected, err := a.expectedTotal(ctx, snap.Schedules, subjectID, from, today)
	if err != nil {
		return 0, err
	}
	return rate(a.takenTotal(snap.Events, subjectID, from, today), expected), nil
}

// CurrentStreak counts consecutive days ending today on which every expected slot
// was matched by a Taken event. A day without expected slots ends the streak.
func (a *Analyzer) CurrentStreak(ctx context.Context, snap Snapshot, subjectID string, today model.Date) (int, error) {
	events := subjectEvents(snap.Events, subjectID)
	streak := 0
	for day := today; streak < a.maxStreakDays; day = day.AddDays(-1) {
		if err := checkCancelled(ctx); err != nil {
			return 0, err
		}
		if !a.dayTaken(snap.Schedules, events, subjectID, day) {
			break
		}
		streak++
	}
	return streak, nil
}

// Report returns rate, streak and per-status slot counts for the window.
func (a *Analyzer) Report(ctx context.Context, snap Snapshot, subjectID string, windowDays int, today model.Date, now time.Time) (Report, error) {
	windowDays = max(windowDays, 0)
	from := today.AddDays(-windowDays)
	events := subjectEvents(snap.Events, subjectID)

	r := Report{
		SubjectID:  subjectID,
		WindowDays: windowDays,
		From:       from,
		To:         today,
		Slots: map[model.Status]int{
			model.StatusTaken:   0,
			model.StatusSkipped: 0,
			model.StatusMissed:  0,
			model.StatusPending: 0,
		},
	}
	for day := from; !day.After(today); day = day.AddDays(1) {
		if err := checkCancelled(ctx); err != nil {
			return Report{}, err
		}
		for _, s := range snap.Schedules {
			if s.SubjectID == subjectID {
				r.Expected += schedule.ExpectedCount(s, day)
			}
		}
		for _, st := range a.reconciler.ReconcileDay(snap.Schedules, events, subjectID, day, now, a.loc) {
			r.Slots[st.Status]++
		}
	}
	r.Taken = a.takenTotal(events, subjectID, from, today)
	r.Rate = rate(r.Taken, r.Expected)

	streak, err := a.CurrentStreak(ctx, snap, subjectID, today)
	if err != nil {
		return Report{}, err
	}
	r.Streak = streak
	return r, nil
}

func (a *Analyzer) expectedTotal(ctx context.Context, schedules []model.Schedule, subjectID string, from, to model.Date) (int, error) {
	total := 0
	for day := from; !day.After(to); day = day.AddDays(1) {
		if err := checkCancelled(ctx); err != nil {
			return 0, err
		}
		for _, s := range schedules {
			if s.SubjectID == subjectID {
				total += schedule.ExpectedCount(s, day)
			}
		}
	}
	return total, nil
}

func (a *Analyzer) takenTotal(events []model.DoseEvent, subjectID string, from, to model.Date) int {
	n := 0
	for _, e := range events {
		if e.SubjectID != subjectID || !e.Taken {
			continue
		}
		day := model.DateOf(e.Timestamp.In(a.loc))
		if !day.Before(from) && !day.After(to) {
			n++
		}
	}
	return n
}

func (a *Analyzer) dayTaken(schedules []model.Schedule, events []model.DoseEvent, subjectID string, day model.Date) bool {
	slots := schedule.SlotsOnDay(schedules, subjectID, day, a.loc)
	if len(slots) == 0 {
		return false
	}
	// Only Taken counts, so the reference instant for Missed versus Pending is irrelevant.
	for _, st := range a.reconciler.Reconcile(slots, events, time.Time{}) {
		if st.Status != model.StatusTaken {
			return false
		}
	}
	return true
}

func subjectEvents(events []model.DoseEvent, subjectID string) []model.DoseEvent {
	out := make([]model.DoseEvent, 0, len(events))
	for _, e := range events {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out
}

func rate(taken, expected int) float64 {
	if expected == 0 {
		return 0
	}
	return min(float64(taken)/float64(expected)*percent, percent)
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}
