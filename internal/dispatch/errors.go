package dispatch

import "errors"

// Sentinel errors for dispatchers.
var (
	// ErrNotRunning is returned when work is queued on a stopped dispatcher.
	ErrNotRunning = errors.New("dispatcher is not running")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("dispatcher is already running")

	// ErrQueueFull is returned when the queue cannot accept more work.
	ErrQueueFull = errors.New("dispatcher queue is full")
)
