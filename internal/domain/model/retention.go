package model

import (
	"fmt"
	"time"
)

// RetentionPeriod is how many days of history are kept. Zero keeps everything.
type RetentionPeriod int

const (
	RetentionIndefinite RetentionPeriod = 0
	Retention14Days     RetentionPeriod = 14
	Retention30Days     RetentionPeriod = 30
	Retention90Days     RetentionPeriod = 90
	Retention180Days    RetentionPeriod = 180
	Retention365Days    RetentionPeriod = 365
	Retention730Days    RetentionPeriod = 730
)

// RetentionPeriods lists the supported periods in ascending order.
var RetentionPeriods = []RetentionPeriod{
	RetentionIndefinite,
	Retention14Days,
	Retention30Days,
	Retention90Days,
	Retention180Days,
	Retention365Days,
	Retention730Days,
}

// ParseRetention maps a day count onto a supported period.
func ParseRetention(days int) (RetentionPeriod, error) {
	for _, p := range RetentionPeriods {
		if int(p) == days {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %d days", ErrInvalidRetention, days)
}

// Indefinite reports whether history is never pruned.
func (p RetentionPeriod) Indefinite() bool {
	return p == RetentionIndefinite
}

// Days returns the period length in days.
func (p RetentionPeriod) Days() int {
	return int(p)
}

// Cutoff returns the instant before which records are expired: midnight of
// (today - period) in now's location.
func (p RetentionPeriod) Cutoff(now time.Time) time.Time {
	return DateOf(now).AddDays(-p.Days()).Start(now.Location())
}

func (p RetentionPeriod) String() string {
	if p.Indefinite() {
		return "indefinite"
	}
	return fmt.Sprintf("%dd", p.Days())
}
