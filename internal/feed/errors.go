package feed

import (
	"errors"
	"fmt"
)

// Sentinel errors for feeds.
var (
	// ErrContextDisposed is returned when using a disposed SourceContext.
	ErrContextDisposed = errors.New("source context is disposed")

	// ErrBrokenChain is raised when a custom source produces a message
	// that does not follow the previous one.
	ErrBrokenChain = errors.New("message does not follow the previous message")
)

// PanicError reports a panicking producer. It is surfaced through the
// Error axis like any other producer failure.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("producer panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
