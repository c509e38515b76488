package reconcile

import "time"

// DefaultTolerance is the matching window on either side of a due slot.
const DefaultTolerance = 30 * time.Minute

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTolerance sets the matching window. Non-positive values keep the default.
func WithTolerance(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.tolerance = d
		}
	}
}
