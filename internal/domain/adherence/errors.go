package adherence

import "errors"

// ErrCancelled is returned when an analytics walk is aborted by its context.
var ErrCancelled = errors.New("adherence computation cancelled")
