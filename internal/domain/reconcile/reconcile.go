// Package reconcile matches recorded dose events to due slots.
package reconcile

import (
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
	"github.com/okian/dosetrack/internal/domain/schedule"
)

// SlotStatus is a due slot together with its reconciled outcome.
// EventID is empty when no event matched.
type SlotStatus struct {
	Slot    model.DueSlot
	Status  model.Status
	EventID string
}

// Reconciler classifies due slots against dose events. It holds no state besides
// its configuration and is safe for concurrent use.
type Reconciler struct {
	tolerance time.Duration
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tolerance returns the configured matching window.
func (r *Reconciler) Tolerance() time.Duration {
	return r.tolerance
}

// Reconcile returns one SlotStatus per slot, in slot order. For each slot the event
// of the same subject closest in time within the tolerance wins; ties go to the
// earliest timestamp and then the smallest id. Unmatched slots strictly before now
// are Missed, the rest Pending. Inputs are not modified.
func (r *Reconciler) Reconcile(slots []model.DueSlot, events []model.DoseEvent, now time.Time) []SlotStatus {
	bySubject := make(map[string][]int, len(slots))
	for i, e := range events {
		bySubject[e.SubjectID] = append(bySubject[e.SubjectID], i)
	}

	out := make([]SlotStatus, len(slots))
	for i, slot := range slots {
		out[i] = SlotStatus{Slot: slot}

		best := -1
		var bestDiff time.Duration
		for _, idx := range bySubject[slot.SubjectID] {
			diff := absDuration(events[idx].Timestamp.Sub(slot.ScheduledTime))
			if diff > r.tolerance {
				continue
			}
			if best < 0 || better(events[idx], diff, events[best], bestDiff) {
				best, bestDiff = idx, diff
			}
		}

		switch {
		case best >= 0:
			out[i].Status = events[best].Status()
			out[i].EventID = events[best].ID
		case slot.ScheduledTime.Before(now):
			out[i].Status = model.StatusMissed
		default:
			out[i].Status = model.StatusPending
		}
	}
	return out
}

// ReconcileDay evaluates the subject's slots on day and reconciles them.
// An empty subjectID covers every subject.
func (r *Reconciler) ReconcileDay(
	schedules []model.Schedule,
	events []model.DoseEvent,
	subjectID string,
	day model.Date,
	now time.Time,
	loc *time.Location,
) []SlotStatus {
	return r.Reconcile(schedule.SlotsOnDay(schedules, subjectID, day, loc), events, now)
}

// Match returns the event that Reconcile would pair with slot, if any.
func (r *Reconciler) Match(slot model.DueSlot, events []model.DoseEvent) (model.DoseEvent, bool) {
	best := -1
	var bestDiff time.Duration
	for i, e := range events {
		if e.SubjectID != slot.SubjectID {
			continue
		}
		diff := absDuration(e.Timestamp.Sub(slot.ScheduledTime))
		if diff > r.tolerance {
			continue
		}
		if best < 0 || better(e, diff, events[best], bestDiff) {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return model.DoseEvent{}, false
	}
	return events[best], true
}

func better(candidate model.DoseEvent, diff time.Duration, current model.DoseEvent, currentDiff time.Duration) bool {
	if diff != currentDiff {
		return diff < currentDiff
	}
	if !candidate.Timestamp.Equal(current.Timestamp) {
		return candidate.Timestamp.Before(current.Timestamp)
	}
	return candidate.ID < current.ID
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
