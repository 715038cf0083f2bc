// Package command provides asynchronous commands whose availability
// follows a condition, a gate feed and their own execution.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/dshills/feedcore/internal/feed"
	"github.com/dshills/feedcore/internal/logging"
	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/stream"
)

// ErrCannotExecute is returned by Execute when the command is not
// executable for the given parameter.
var ErrCannotExecute = errors.New("command cannot execute")

// Command is an asynchronous operation with a parameter of type P.
//
// A command is executable when its condition accepts the parameter, its
// gate feed (if any) holds Some(true) without error or progress, and,
// unless concurrent execution is allowed, it is not already executing.
type Command[P any] struct {
	run        func(ctx context.Context, p P) error
	condition  func(P) bool
	concurrent bool
	log        *logging.Logger

	gateCtx    *feed.SourceContext
	gateFeed   feed.Feed[bool]
	gateCancel context.CancelFunc

	mu        sync.Mutex
	executing int
	gated     bool
	gateOpen  bool

	changed *stream.Subject[struct{}]
}

// Option configures a Command.
type Option[P any] func(*Command[P])

// WithCondition sets a predicate on the parameter.
func WithCondition[P any](condition func(P) bool) Option[P] {
	return func(c *Command[P]) {
		c.condition = condition
	}
}

// WithGate makes the command executable only while gate holds true in
// sc.
func WithGate[P any](sc *feed.SourceContext, gate feed.Feed[bool]) Option[P] {
	return func(c *Command[P]) {
		c.gateCtx = sc
		c.gateFeed = gate
	}
}

// WithConcurrentExecution allows executions to overlap.
func WithConcurrentExecution[P any]() Option[P] {
	return func(c *Command[P]) {
		c.concurrent = true
	}
}

// WithLogger sets the logger of the command.
func WithLogger[P any](l *logging.Logger) Option[P] {
	return func(c *Command[P]) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a command running run.
func New[P any](run func(ctx context.Context, p P) error, opts ...Option[P]) (*Command[P], error) {
	c := &Command[P]{
		run:        run,
		log:        logging.Nop(),
		gateCancel: func() {},
		changed:    stream.NewSubject[struct{}](),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.gateFeed != nil {
		seq, err := c.gateFeed.Messages(c.gateCtx)
		if err != nil {
			return nil, fmt.Errorf("subscribing to command gate: %w", err)
		}
		ctx, cancel := context.WithCancel(c.gateCtx.Context())
		c.gated = true
		c.gateCancel = cancel
		go c.followGate(ctx, seq)
	}
	return c, nil
}

func (c *Command[P]) followGate(ctx context.Context, seq stream.Sequence[message.Message[bool]]) {
	for {
		msg, err := seq.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				c.log.Warn("command gate failed: %v", err)
			}
			c.setGate(false)
			return
		}
		v, ok := msg.Current.Data().Get()
		c.setGate(ok && v && !msg.Current.IsTransient() && msg.Current.Error() == nil)
	}
}

func (c *Command[P]) setGate(open bool) {
	c.mu.Lock()
	changed := c.gateOpen != open
	c.gateOpen = open
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

func (c *Command[P]) notify() {
	c.changed.TrySetNext(struct{}{})
}

// CanExecute reports whether Execute would run with p.
func (c *Command[P]) CanExecute(p P) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canExecuteLocked(p)
}

func (c *Command[P]) canExecuteLocked(p P) bool {
	if c.gated && !c.gateOpen {
		return false
	}
	if !c.concurrent && c.executing > 0 {
		return false
	}
	return c.condition == nil || c.condition(p)
}

// IsExecuting reports whether an execution is running.
func (c *Command[P]) IsExecuting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executing > 0
}

// CanExecuteChanged returns a subscription receiving a value each time
// the executability of the command may have changed.
func (c *Command[P]) CanExecuteChanged() *stream.Subscription[struct{}] {
	return c.changed.Subscribe()
}

// Execute runs the command with p and waits for it. It returns
// ErrCannotExecute without running if the command is not executable. A
// panic of the command is returned as an error.
func (c *Command[P]) Execute(ctx context.Context, p P) (err error) {
	c.mu.Lock()
	if !c.canExecuteLocked(p) {
		c.mu.Unlock()
		return ErrCannotExecute
	}
	c.executing++
	first := c.executing == 1
	c.mu.Unlock()
	if first && !c.concurrent {
		c.notify()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command panicked: %v\n%s", r, debug.Stack())
		}
		c.mu.Lock()
		c.executing--
		idle := c.executing == 0
		c.mu.Unlock()
		if idle && !c.concurrent {
			c.notify()
		}
		if err != nil {
			c.log.Debug("command failed: %v", err)
		}
	}()
	return c.run(ctx, p)
}

// Close stops following the gate and completes CanExecuteChanged
// subscriptions.
func (c *Command[P]) Close() {
	c.gateCancel()
	c.changed.TryComplete()
}
