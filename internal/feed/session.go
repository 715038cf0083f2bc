package feed

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/feedcore/internal/logging"
	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/stream"
)

// loader runs a producer. A single-value producer returns its value with
// ok set, so that the value and the end of the execution are delivered
// together. A sequence producer calls emit for each value instead; emit
// fails once the execution is cancelled.
type loader[T any] func(exec *Execution, emit func(option.Option[T]) error) (v option.Option[T], ok bool, err error)

// dataHook writes a produced value on the data axis.
type dataHook[T any] func(b *message.Builder[T], v option.Option[T])

func plainData[T any](b *message.Builder[T], v option.Option[T]) {
	b.Data(v)
}

type loadEvent[T any] struct {
	value    option.Option[T]
	hasValue bool
	err      error
	end      bool
}

// Session is the state of one feed in one SourceContext. It runs at most
// one execution at a time and publishes the messages of the feed.
type Session[T any] struct {
	id     uuid.UUID
	sc     *SourceContext
	ctx    context.Context
	cancel context.CancelFunc
	log    *logging.Logger

	load    loader[T]
	setData dataHook[T]
	manager *message.Manager[T]
	out     *stream.Subject[message.Message[T]]

	startOnce sync.Once

	current      atomic.Pointer[Execution]
	requestsGate sync.Mutex
	pending      []ExecuteRequest

	parentsMu   sync.Mutex
	parents     map[any]message.AnyEntry
	parentKeys  []any
	parentEntry message.AnyEntry
	dirty       bool

	depsMu    sync.Mutex
	deps      []Dependency
	depsByKey map[any]Dependency
}

func newSession[T any](sc *SourceContext, load loader[T], hook dataHook[T]) *Session[T] {
	if hook == nil {
		hook = plainData[T]
	}
	s := &Session[T]{
		id:        uuid.New(),
		sc:        sc,
		load:      load,
		setData:   hook,
		out:       stream.NewSubject[message.Message[T]](),
		parents:   make(map[any]message.AnyEntry),
		depsByKey: make(map[any]Dependency),
	}
	s.ctx, s.cancel = context.WithCancel(sc.ctx)
	s.log = sc.log.WithField("session", shortID(s.id))
	s.manager = message.NewManager(func(msg message.Message[T]) {
		s.out.TrySetNext(msg)
		sc.metrics.MessagePublished()
	})
	s.GetOrAddDependency(refreshKey{}, func() Dependency { return newRefreshDependency(s) })
	sc.metrics.SessionStarted()
	return s
}

// start triggers the initial execution once.
func (s *Session[T]) start() {
	s.startOnce.Do(func() {
		s.Execute(ExecuteRequest{Issuer: s, Reason: "initial load"})
	})
}

// ID implements Handle.
func (s *Session[T]) ID() uuid.UUID {
	return s.id
}

// SourceContext implements Handle.
func (s *Session[T]) SourceContext() *SourceContext {
	return s.sc
}

// Logger implements Handle.
func (s *Session[T]) Logger() *logging.Logger {
	return s.log
}

// Messages subscribes to the messages of the session.
func (s *Session[T]) Messages() stream.Sequence[message.Message[T]] {
	return subscribeMessages(s.out)
}

// Current returns the last published message.
func (s *Session[T]) Current() message.Message[T] {
	return s.manager.Current()
}

// CurrentExecution returns the running execution, nil if idle.
func (s *Session[T]) CurrentExecution() *Execution {
	return s.current.Load()
}

// Execute implements Handle. It never blocks on the running execution.
func (s *Session[T]) Execute(req ExecuteRequest) {
	s.requestsGate.Lock()
	defer s.requestsGate.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	s.pending = append(s.pending, req)
	if cur := s.current.Load(); cur != nil {
		s.log.Debug("request %q supersedes execution %s", req, shortID(cur.id))
		s.sc.metrics.RequestsCoalesced(1)
		cur.cancel()
		return
	}
	s.startNextLocked(false)
}

func (s *Session[T]) startNextLocked(preservePendingAxes bool) {
	requests := s.pending
	s.pending = nil
	exec := newExecution(s.ctx, s, requests)
	s.current.Store(exec)
	go s.run(exec, preservePendingAxes)
}

// tryStartNext is called by an execution once completed. It starts the
// next execution if requests are pending.
func (s *Session[T]) tryStartNext(from *Execution) {
	s.requestsGate.Lock()
	defer s.requestsGate.Unlock()

	if s.current.Load() != from {
		return
	}
	if s.ctx.Err() != nil {
		s.current.Store(nil)
		s.pending = nil
		s.out.TryComplete()
		return
	}
	if len(s.pending) == 0 {
		s.current.Store(nil)
		return
	}
	s.startNextLocked(from.publishedTransient())
}

func (s *Session[T]) run(exec *Execution, preservePendingAxes bool) {
	tx := s.manager.BeginUpdate(exec.ctx, preservePendingAxes)
	s.log.Debug("execution %s started with %d request(s)", shortID(exec.id), len(exec.requests))

	s.notify("executing", func(d Dependency) error {
		return d.OnExecuting(exec.ctx, exec)
	})

	result := Cancelled
	if exec.ctx.Err() == nil {
		result = s.execute(exec, tx)
	}

	tx.Dispose()
	exec.setState(Completed)
	exec.cancel()

	s.notify("executed", func(d Dependency) error {
		return d.OnExecuted(s.ctx, exec, result)
	})

	elapsed := time.Since(exec.started)
	s.sc.metrics.ExecutionCompleted(result.String(), elapsed)
	s.log.Debug("execution %s %s in %v", shortID(exec.id), result, elapsed)

	s.tryStartNext(exec)
}

// execute runs the producer and publishes its values. The producer gets
// a few scheduler turns to settle before a transient message is
// published, so that synchronous producers never flicker.
func (s *Session[T]) execute(exec *Execution, tx *message.Transaction[T]) ExecutionResult {
	events := make(chan loadEvent[T])
	go s.produce(exec, events)

	var (
		ev  loadEvent[T]
		got bool
	)
	for i := 0; i <= s.sc.opts.yieldTurns && !got; i++ {
		select {
		case ev = <-events:
			got = true
		default:
			if i < s.sc.opts.yieldTurns {
				runtime.Gosched()
			}
		}
	}
	if !got {
		exec.markTransient()
		published := tx.TransientUpdate(func(b *message.Builder[T]) {
			b.IsTransient(true)
			for _, req := range exec.requests {
				if req.HasAsyncHint() {
					b.Set(req.AsyncAxis, req.AsyncValue)
				}
			}
		})
		if published {
			s.sc.metrics.TransientPublished()
		}
	}

	committed := false
	for {
		if !got {
			select {
			case ev = <-events:
			case <-exec.ctx.Done():
				if !committed {
					return Cancelled
				}
				// The end of a committed execution may already be pending.
				select {
				case ev = <-events:
				default:
					return Cancelled
				}
			}
		}
		got = false

		if exec.ctx.Err() != nil && !(committed && ev.end && ev.err == nil) {
			return Cancelled
		}
		if ev.hasValue {
			if !s.apply(exec, tx, committed, func(b *message.Builder[T]) {
				s.setData(b, ev.value)
				b.Error(nil)
			}) {
				return Cancelled
			}
			committed = true
			exec.setState(Loaded)
		}
		if ev.end {
			return s.settle(exec, tx, ev.err, committed)
		}
	}
}

func (s *Session[T]) settle(exec *Execution, tx *message.Transaction[T], err error, committed bool) ExecutionResult {
	if err != nil {
		exec.drainUpdates()
		update := func(b *message.Builder[T]) { b.Error(err) }
		if committed {
			s.manager.Update(update)
		} else {
			tx.Commit(update)
		}
		s.log.Debug("execution %s failed: %v", shortID(exec.id), err)
		return Failed
	}

	if !committed {
		if !s.apply(exec, tx, false, func(b *message.Builder[T]) {
			s.setData(b, option.None[T]())
			b.Error(nil)
		}) {
			return Cancelled
		}
	} else if exec.hasUpdates() {
		s.apply(exec, tx, true, func(*message.Builder[T]) {})
	}
	return Success
}

// apply publishes fn plus the updates enqueued on exec, through the
// transaction for the first value and directly afterwards. It returns
// false if the transaction was cancelled before the first value.
func (s *Session[T]) apply(exec *Execution, tx *message.Transaction[T], committed bool, fn func(b *message.Builder[T])) bool {
	updates := exec.drainUpdates()
	update := func(b *message.Builder[T]) {
		fn(b)
		for _, u := range updates {
			s.safeUpdate(u, b)
		}
	}
	if committed {
		s.manager.Update(update)
		return true
	}
	return tx.Commit(update)
}

func (s *Session[T]) safeUpdate(u func(message.AxisSetter), b *message.Builder[T]) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("axis update panicked: %v", r)
			s.sc.metrics.DependencyFailed("update")
		}
	}()
	u(b)
}

func (s *Session[T]) produce(exec *Execution, events chan<- loadEvent[T]) {
	var (
		v   option.Option[T]
		ok  bool
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
		end := loadEvent[T]{value: v, hasValue: ok && err == nil, err: err, end: true}
		select {
		case events <- end:
		case <-exec.ctx.Done():
		}
	}()
	v, ok, err = s.load(exec, func(v option.Option[T]) error {
		select {
		case events <- loadEvent[T]{value: v, hasValue: true}:
			return nil
		case <-exec.ctx.Done():
			return exec.ctx.Err()
		}
	})
}

func (s *Session[T]) notify(phase string, call func(Dependency) error) {
	for _, d := range s.dependencies() {
		if err := safeCall(d, call); err != nil {
			s.log.Warn("dependency %T failed while %s: %v", d, phase, err)
			s.sc.metrics.DependencyFailed(phase)
		}
	}
}

func safeCall(d Dependency, call func(Dependency) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return call(d)
}

// UpdateParent implements Handle.
func (s *Session[T]) UpdateParent(key any, entry message.AnyEntry) {
	s.parentsMu.Lock()
	defer s.parentsMu.Unlock()

	if _, ok := s.parents[key]; !ok {
		s.parentKeys = append(s.parentKeys, key)
	}
	s.parents[key] = entry
	s.dirty = true
	s.manager.SetParent(s.parentEntryLocked())
}

// ParentEntry returns the merge of all parent entries.
func (s *Session[T]) ParentEntry() message.AnyEntry {
	s.parentsMu.Lock()
	defer s.parentsMu.Unlock()
	return s.parentEntryLocked()
}

func (s *Session[T]) parentEntryLocked() message.AnyEntry {
	if s.dirty || s.parentEntry == nil {
		entries := make([]message.AnyEntry, 0, len(s.parentKeys))
		for _, k := range s.parentKeys {
			entries = append(entries, s.parents[k])
		}
		s.parentEntry = message.Merge(entries...)
		s.dirty = false
	}
	return s.parentEntry
}

// GetOrAddDependency implements Handle.
func (s *Session[T]) GetOrAddDependency(key any, create func() Dependency) Dependency {
	s.depsMu.Lock()
	defer s.depsMu.Unlock()

	if d, ok := s.depsByKey[key]; ok {
		return d
	}
	d := create()
	if s.ctx.Err() != nil {
		closeDependency(s.log, d)
		return d
	}
	s.depsByKey[key] = d
	s.deps = append(s.deps, d)
	return d
}

func (s *Session[T]) dependencies() []Dependency {
	s.depsMu.Lock()
	defer s.depsMu.Unlock()
	return append([]Dependency(nil), s.deps...)
}

// dispose cancels the session. The subject completes once the running
// execution, if any, completed.
func (s *Session[T]) dispose() {
	s.cancel()

	s.requestsGate.Lock()
	idle := s.current.Load() == nil
	s.pending = nil
	s.requestsGate.Unlock()
	if idle {
		s.out.TryComplete()
	}

	s.depsMu.Lock()
	deps := s.deps
	s.deps = nil
	s.depsByKey = map[any]Dependency{}
	s.depsMu.Unlock()
	for _, d := range deps {
		closeDependency(s.log, d)
	}

	s.sc.metrics.SessionDisposed()
	s.log.Debug("session disposed")
}

func closeDependency(log *logging.Logger, d Dependency) {
	c, ok := d.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("closing dependency %T: %v", d, err)
	}
}

// String returns a debug representation.
func (s *Session[T]) String() string {
	return fmt.Sprintf("Session{%s}", shortID(s.id))
}
