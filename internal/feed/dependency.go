package feed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dshills/feedcore/internal/logging"
	"github.com/dshills/feedcore/internal/message"
)

// ExecutionResult is the outcome of an execution.
type ExecutionResult uint8

const (
	// Success means the producer completed and its result was committed.
	Success ExecutionResult = iota

	// Failed means the producer returned an error or panicked.
	Failed

	// Cancelled means the execution was superseded or its session was
	// disposed before it completed.
	Cancelled
)

// String returns a human-readable representation of the result.
func (r ExecutionResult) String() string {
	switch r {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Dependency is something a session depends on: it observes executions
// and may trigger new ones through the session's Execute.
//
// Errors returned and panics raised by the callbacks are logged and never
// abort the execution. A dependency implementing io.Closer is closed when
// its session is disposed.
type Dependency interface {
	// OnExecuting is called before the producer runs. The dependency can
	// enqueue axis updates on exec.
	OnExecuting(ctx context.Context, exec *Execution) error

	// OnExecuted is called once the producer settled.
	OnExecuted(ctx context.Context, exec *Execution, result ExecutionResult) error
}

// Handle is the untyped view of a session used by dependencies.
type Handle interface {
	// ID returns the identifier of the session.
	ID() uuid.UUID

	// SourceContext returns the context owning the session.
	SourceContext() *SourceContext

	// Execute requests a new execution. Requests issued while an
	// execution is running cancel it and are coalesced into the next one.
	Execute(req ExecuteRequest)

	// UpdateParent sets the entry of the parent identified by key. The
	// inherited axes of all parents are merged into the session messages.
	UpdateParent(key any, entry message.AnyEntry)

	// GetOrAddDependency returns the dependency registered under key,
	// registering the one returned by create on first use.
	GetOrAddDependency(key any, create func() Dependency) Dependency

	// Logger returns the logger of the session.
	Logger() *logging.Logger
}

// DependencyFunc adapts two functions to a Dependency. Nil functions are
// no-ops.
type DependencyFunc struct {
	Executing func(ctx context.Context, exec *Execution) error
	Executed  func(ctx context.Context, exec *Execution, result ExecutionResult) error
}

// OnExecuting implements Dependency.
func (d *DependencyFunc) OnExecuting(ctx context.Context, exec *Execution) error {
	if d.Executing == nil {
		return nil
	}
	return d.Executing(ctx, exec)
}

// OnExecuted implements Dependency.
func (d *DependencyFunc) OnExecuted(ctx context.Context, exec *Execution, result ExecutionResult) error {
	if d.Executed == nil {
		return nil
	}
	return d.Executed(ctx, exec, result)
}
