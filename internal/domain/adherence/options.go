package adherence

import "time"

// DefaultMaxStreakDays bounds the backward streak walk.
const DefaultMaxStreakDays = 3650

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLocation sets the zone calendar days are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(a *Analyzer) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithTolerance sets the dose matching window used for streaks and reports.
func WithTolerance(d time.Duration) Option {
	return func(a *Analyzer) {
		a.tolerance = d
	}
}

// WithMaxStreakDays bounds how far back CurrentStreak walks.
func WithMaxStreakDays(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.maxStreakDays = days
		}
	}
}
