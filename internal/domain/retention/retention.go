// Package retention prunes dose history older than the configured period.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/dosetrack/internal/domain/model"
)

// Pruner is the part of the history repository the policy needs.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Policy applies a RetentionPeriod to a history store.
type Policy struct {
	period model.RetentionPeriod
}

// NewPolicy creates a policy for period.
func NewPolicy(period model.RetentionPeriod) Policy {
	return Policy{period: period}
}

// Period returns the configured period.
func (p Policy) Period() model.RetentionPeriod {
	return p.period
}

// Cutoff returns the instant records must not precede, and false when history is
// kept indefinitely.
func (p Policy) Cutoff(now time.Time) (time.Time, bool) {
	if p.period.Indefinite() {
		return time.Time{}, false
	}
	return p.period.Cutoff(now), true
}

// Apply deletes expired records and returns how many were removed.
func (p Policy) Apply(ctx context.Context, store Pruner, now time.Time) (int, error) {
	cutoff, ok := p.Cutoff(now)
	if !ok {
		return 0, nil
	}
	n, err := store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return n, nil
}
