package dispatch

import "runtime/debug"

// Dispatcher runs work on a specific execution context, such as the
// goroutine owning a view.
type Dispatcher interface {
	// TryEnqueue schedules fn and reports whether it was accepted.
	TryEnqueue(fn func()) bool
}

// PanicHandler is called with the recovered value and stack of a
// panicking work item.
type PanicHandler func(r any, stack []byte)

// Immediate is a Dispatcher running work synchronously on the calling
// goroutine.
type Immediate struct {
	panicHandler PanicHandler
}

// NewImmediate creates an immediate dispatcher. A nil handler lets
// panics of work items propagate to the caller.
func NewImmediate(h PanicHandler) *Immediate {
	return &Immediate{panicHandler: h}
}

// TryEnqueue runs fn and always returns true.
func (d *Immediate) TryEnqueue(fn func()) bool {
	if d.panicHandler != nil {
		defer func() {
			if r := recover(); r != nil {
				d.panicHandler(r, debug.Stack())
			}
		}()
	}
	fn()
	return true
}
