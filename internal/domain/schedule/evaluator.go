// Package schedule projects recurrence rules onto calendar days.
//
// Every function here is pure: it reads the schedules it is given and returns
// new values. Callers pass normalized schedules (see model.Schedule.Normalize).
package schedule

import (
	"cmp"
	"slices"
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
)

// Scan bounds for NextDueTime, in days including the starting day.
const (
	weeklyScanDays = 8
	dailyScanDays  = 2
)

// matchesDay applies the day-selection rule of the frequency, ignoring the date range.
func matchesDay(s model.Schedule, day model.Date) bool {
	switch s.Frequency.Kind {
	case model.Daily, model.TwiceDaily, model.ThreeTimesDaily:
		return true
	case model.Weekly:
		return slices.Contains(s.Frequency.DaysOfWeek, day.ISOWeekday())
	case model.Custom:
		interval := max(s.Frequency.IntervalDays, 1)
		since := day.DaysSince(s.StartDate)
		return since >= 0 && since%interval == 0
	default:
		return false
	}
}

// DueTimesOnDay returns the due timestamps of s on day, in ascending order.
// The Active flag is not consulted.
func DueTimesOnDay(s model.Schedule, day model.Date, loc *time.Location) []time.Time {
	if !s.InRange(day) || !matchesDay(s, day) {
		return nil
	}
	out := make([]time.Time, 0, len(s.TimesOfDay))
	for _, t := range s.TimesOfDay {
		out = append(out, day.At(t, loc))
	}
	slices.SortFunc(out, time.Time.Compare)
	return out
}

// NextDueTime returns the first due time strictly after after.
func NextDueTime(s model.Schedule, after time.Time, loc *time.Location) (time.Time, bool) {
	if s.Frequency.Kind == model.AsNeeded || len(s.TimesOfDay) == 0 {
		return time.Time{}, false
	}
	if loc != nil {
		after = after.In(loc)
	}

	day := model.DateOf(after)
	if day.Before(s.StartDate) {
		day = s.StartDate
	}

	for i := 0; i < scanBound(s); i++ {
		if s.HasEnd() && day.After(s.EndDate) {
			break
		}
		for _, t := range DueTimesOnDay(s, day, loc) {
			if t.After(after) {
				return t, true
			}
		}
		day = day.AddDays(1)
	}
	return time.Time{}, false
}

func scanBound(s model.Schedule) int {
	switch s.Frequency.Kind {
	case model.Custom:
		return max(s.Frequency.IntervalDays, 1) + 1
	case model.Weekly:
		return weeklyScanDays
	default:
		return dailyScanDays
	}
}

// IsActiveOn reports whether doses are expected from s on day.
func IsActiveOn(s model.Schedule, day model.Date) bool {
	if !s.Active || s.Frequency.Kind == model.AsNeeded {
		return false
	}
	return s.InRange(day) && matchesDay(s, day)
}

// ExpectedCount returns the number of doses s expects on day for adherence rate
// purposes. Daily counts as one dose regardless of its times of day.
func ExpectedCount(s model.Schedule, day model.Date) int {
	if !IsActiveOn(s, day) {
		return 0
	}
	switch s.Frequency.Kind {
	case model.TwiceDaily:
		return 2
	case model.ThreeTimesDaily:
		return 3
	default:
		return 1
	}
}

// SlotsOnDay returns the due slots of every active schedule of subjectID on day,
// ordered by time and then schedule id. An empty subjectID selects all subjects.
func SlotsOnDay(schedules []model.Schedule, subjectID string, day model.Date, loc *time.Location) []model.DueSlot {
	var out []model.DueSlot
	for _, s := range schedules {
		if subjectID != "" && s.SubjectID != subjectID {
			continue
		}
		if !IsActiveOn(s, day) {
			continue
		}
		for _, t := range DueTimesOnDay(s, day, loc) {
			out = append(out, model.DueSlot{SubjectID: s.SubjectID, ScheduledTime: t, ScheduleID: s.ID})
		}
	}
	SortSlots(out)
	return out
}

// SortSlots orders slots by time, then subject id, then schedule id.
func SortSlots(slots []model.DueSlot) {
	slices.SortStableFunc(slots, func(a, b model.DueSlot) int {
		if c := a.ScheduledTime.Compare(b.ScheduledTime); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SubjectID, b.SubjectID); c != 0 {
			return c
		}
		return cmp.Compare(a.ScheduleID, b.ScheduleID)
	})
}
