package model

import (
	"errors"
	"fmt"
	"slices"
)

// FrequencyKind names a recurrence variant.
type FrequencyKind string

const (
	Daily           FrequencyKind = "daily"
	TwiceDaily      FrequencyKind = "twice_daily"
	ThreeTimesDaily FrequencyKind = "three_times_daily"
	Weekly          FrequencyKind = "weekly"
	Custom          FrequencyKind = "custom"
	AsNeeded        FrequencyKind = "as_needed"
)

// Known reports whether k is one of the supported variants.
func (k FrequencyKind) Known() bool {
	switch k {
	case Daily, TwiceDaily, ThreeTimesDaily, Weekly, Custom, AsNeeded:
		return true
	default:
		return false
	}
}

// MaxTimes returns how many times of day the variant accepts.
func (k FrequencyKind) MaxTimes() int {
	switch k {
	case TwiceDaily:
		return 2
	case ThreeTimesDaily:
		return 3
	case AsNeeded:
		return 0
	default:
		return 4
	}
}

// exactTimes reports whether the variant needs exactly MaxTimes entries.
func (k FrequencyKind) exactTimes() bool {
	return k == TwiceDaily || k == ThreeTimesDaily
}

// Frequency is the recurrence rule. DaysOfWeek is used by Weekly only
// (Monday=1 ... Sunday=7); IntervalDays by Custom only.
type Frequency struct {
	Kind         FrequencyKind `json:"kind"`
	DaysOfWeek   []int         `json:"days_of_week,omitempty"`
	IntervalDays int           `json:"interval_days,omitempty"`
}

// Default times used when a schedule is missing or short of times of day.
var (
	DefaultTime            = TimeOfDay{Hour: 9}
	defaultTwiceDaily      = []TimeOfDay{{Hour: 9}, {Hour: 21}}
	defaultThreeTimesDaily = []TimeOfDay{{Hour: 8}, {Hour: 14}, {Hour: 20}}
)

// Schedule is the recurrence definition for one subject.
type Schedule struct {
	ID          string      `json:"id"`
	SubjectID   string      `json:"subject_id"`
	SubjectName string      `json:"subject_name"`
	Frequency   Frequency   `json:"frequency"`
	TimesOfDay  []TimeOfDay `json:"times_of_day"`
	Active      bool        `json:"active"`
	StartDate   Date        `json:"start_date"`
	EndDate     Date        `json:"end_date"` // zero means open ended
	Notes       string      `json:"notes,omitempty"`
}

// HasEnd reports whether the schedule has an end date.
func (s Schedule) HasEnd() bool {
	return !s.EndDate.IsZero()
}

// InRange reports whether day lies within [StartDate, EndDate].
func (s Schedule) InRange(day Date) bool {
	if day.Before(s.StartDate) {
		return false
	}
	return !s.HasEnd() || !day.After(s.EndDate)
}

// Clone returns a deep copy so callers never share slices with a snapshot.
func (s Schedule) Clone() Schedule {
	s.TimesOfDay = slices.Clone(s.TimesOfDay)
	s.Frequency.DaysOfWeek = slices.Clone(s.Frequency.DaysOfWeek)
	return s
}

// Validate reports every violated invariant, joined and wrapped with ErrInvalidSchedule.
func (s Schedule) Validate() error {
	var errs []error
	if s.SubjectID == "" {
		errs = append(errs, ErrMissingSubject)
	}

	kind := s.Frequency.Kind
	if !kind.Known() {
		errs = append(errs, fmt.Errorf("unknown frequency %q", kind))
	}
	switch kind {
	case Weekly:
		if len(s.Frequency.DaysOfWeek) == 0 {
			errs = append(errs, errors.New("weekly schedule needs at least one day of week"))
		}
		for _, d := range s.Frequency.DaysOfWeek {
			if d < 1 || d > 7 {
				errs = append(errs, fmt.Errorf("day of week %d out of range", d))
			}
		}
		if !sortedUniqueInts(s.Frequency.DaysOfWeek) {
			errs = append(errs, errors.New("days of week must be ordered and unique"))
		}
	case Custom:
		if s.Frequency.IntervalDays < 1 {
			errs = append(errs, fmt.Errorf("custom interval %d must be at least 1", s.Frequency.IntervalDays))
		}
	}

	n := len(s.TimesOfDay)
	switch {
	case kind == AsNeeded && n != 0:
		errs = append(errs, errors.New("as needed schedule takes no times of day"))
	case kind != AsNeeded && n == 0:
		errs = append(errs, errors.New("times of day required"))
	case kind.exactTimes() && n != kind.MaxTimes():
		errs = append(errs, fmt.Errorf("%s needs exactly %d times of day", kind, kind.MaxTimes()))
	case n > kind.MaxTimes():
		errs = append(errs, fmt.Errorf("%s accepts at most %d times of day", kind, kind.MaxTimes()))
	}
	for _, t := range s.TimesOfDay {
		if !t.Valid() {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidTimeOfDay, t))
		}
	}
	if !sortedUniqueTimes(s.TimesOfDay) {
		errs = append(errs, errors.New("times of day must be ordered and unique"))
	}

	if s.HasEnd() && s.EndDate.Before(s.StartDate) {
		errs = append(errs, errors.New("end date before start date"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSchedule, errors.Join(errs...))
}

// Normalize deterministically repairs rule violations and reports whether anything
// changed. A missing subject id cannot be repaired and is left for the caller.
// Normalize is idempotent.
func (s Schedule) Normalize() (Schedule, bool) {
	out := s.Clone()
	changed := false

	if !out.Frequency.Kind.Known() {
		out.Frequency.Kind = Daily
		changed = true
	}
	kind := out.Frequency.Kind

	if kind == Weekly {
		days := normalizeDays(out.Frequency.DaysOfWeek)
		if len(days) == 0 {
			days = []int{1}
		}
		if !slices.Equal(days, out.Frequency.DaysOfWeek) {
			out.Frequency.DaysOfWeek = days
			changed = true
		}
	} else if out.Frequency.DaysOfWeek != nil {
		out.Frequency.DaysOfWeek = nil
		changed = true
	}

	switch {
	case kind == Custom && out.Frequency.IntervalDays < 1:
		out.Frequency.IntervalDays = 1
		changed = true
	case kind != Custom && out.Frequency.IntervalDays != 0:
		out.Frequency.IntervalDays = 0
		changed = true
	}

	times := normalizeTimes(out.TimesOfDay, kind)
	if !slices.Equal(times, out.TimesOfDay) {
		out.TimesOfDay = times
		changed = true
	}

	if out.HasEnd() && out.EndDate.Before(out.StartDate) {
		out.EndDate = out.StartDate
		changed = true
	}
	return out, changed
}

func normalizeDays(days []int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d >= 1 && d <= 7 {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeTimes(times []TimeOfDay, kind FrequencyKind) []TimeOfDay {
	if kind == AsNeeded {
		return nil
	}

	out := make([]TimeOfDay, 0, len(times))
	for _, t := range times {
		if t.Valid() {
			out = append(out, t)
		}
	}
	sortTimes(out)
	out = slices.Compact(out)

	var defaults []TimeOfDay
	switch kind {
	case TwiceDaily:
		defaults = defaultTwiceDaily
	case ThreeTimesDaily:
		defaults = defaultThreeTimesDaily
	default:
		defaults = []TimeOfDay{DefaultTime}
	}
	if len(out) == 0 {
		out = append(out, defaults[0])
	}
	if kind.exactTimes() {
		for _, d := range defaults {
			if len(out) >= kind.MaxTimes() {
				break
			}
			if !slices.Contains(out, d) {
				out = append(out, d)
			}
		}
		sortTimes(out)
	}
	if len(out) > kind.MaxTimes() {
		out = out[:kind.MaxTimes()]
	}
	return out
}

func sortTimes(times []TimeOfDay) {
	slices.SortFunc(times, func(a, b TimeOfDay) int { return a.Minutes() - b.Minutes() })
}

func sortedUniqueTimes(times []TimeOfDay) bool {
	for i := 1; i < len(times); i++ {
		if times[i-1].Minutes() >= times[i].Minutes() {
			return false
		}
	}
	return true
}

func sortedUniqueInts(v []int) bool {
	for i := 1; i < len(v); i++ {
		if v[i-1] >= v[i] {
			return false
		}
	}
	return true
}
