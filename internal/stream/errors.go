package stream

import "errors"

// ErrCompleted is raised when publishing to a completed subject.
var ErrCompleted = errors.New("subject is already completed")
