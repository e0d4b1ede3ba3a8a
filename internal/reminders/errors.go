package reminders

import "errors"

// ErrJobNotFound is returned when a job key does not exist in the store.
var ErrJobNotFound = errors.New("reminder job not found")
