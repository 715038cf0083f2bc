package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/feedcore/internal/message"
)

// ExecutionState is the lifecycle state of an execution.
type ExecutionState uint8

const (
	// Loading means the producer has not produced any value yet.
	Loading ExecutionState = iota

	// Loaded means at least one value was published.
	Loaded

	// Completed means the execution ended. It cannot publish anymore.
	Completed
)

// String returns a human-readable representation of the state.
func (s ExecutionState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Execution is one run of a feed's producer. It carries the requests
// that triggered it and a context cancelled when it is superseded or its
// session is disposed.
type Execution struct {
	id       uuid.UUID
	ctx      context.Context
	cancel   context.CancelFunc
	requests []ExecuteRequest
	owner    Handle
	started  time.Time

	stateMu   sync.Mutex
	state     ExecutionState
	updates   []func(message.AxisSetter)
	transient bool
}

func newExecution(parent context.Context, owner Handle, requests []ExecuteRequest) *Execution {
	exec := &Execution{
		id:       uuid.New(),
		requests: requests,
		owner:    owner,
		started:  time.Now(),
	}
	exec.ctx, exec.cancel = context.WithCancel(parent)
	return exec
}

// ID returns the identifier of the execution.
func (e *Execution) ID() uuid.UUID {
	return e.id
}

// Context returns the context of the execution. Producers should stop
// when it is done.
func (e *Execution) Context() context.Context {
	return e.ctx
}

// Requests returns the requests coalesced into this execution.
func (e *Execution) Requests() []ExecuteRequest {
	return e.requests
}

// HasRequestFrom reports whether one of the requests was issued by issuer.
func (e *Execution) HasRequestFrom(issuer any) bool {
	for _, r := range e.requests {
		if r.Issuer == issuer {
			return true
		}
	}
	return false
}

// Session returns the session running the execution.
func (e *Execution) Session() Handle {
	return e.owner
}

// SourceContext returns the context owning the session.
func (e *Execution) SourceContext() *SourceContext {
	return e.owner.SourceContext()
}

// State returns the lifecycle state of the execution.
func (e *Execution) State() ExecutionState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Enqueue schedules an axis update to be published along with the next
// value of the execution. It returns false once the execution completed.
// Updates are dropped if the execution fails or is cancelled.
func (e *Execution) Enqueue(update func(message.AxisSetter)) bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state == Completed {
		return false
	}
	e.updates = append(e.updates, update)
	return true
}

func (e *Execution) drainUpdates() []func(message.AxisSetter) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	u := e.updates
	e.updates = nil
	return u
}

func (e *Execution) hasUpdates() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return len(e.updates) > 0
}

func (e *Execution) setState(s ExecutionState) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state < s {
		e.state = s
	}
	if s == Completed {
		e.updates = nil
	}
}

func (e *Execution) markTransient() {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.transient = true
}

func (e *Execution) publishedTransient() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.transient
}
