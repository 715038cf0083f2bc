package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/feedcore/internal/collection/tracking"
	"github.com/dshills/feedcore/internal/logging"
	"github.com/dshills/feedcore/internal/metrics"
	"github.com/dshills/feedcore/internal/stream"
)

// DefaultTransientYieldTurns is the number of scheduler turns an
// execution grants its producer before publishing a transient message.
const DefaultTransientYieldTurns = 5

// disposer is implemented by the per-context states of feeds.
type disposer interface {
	dispose()
}

// SourceContext owns the sessions of feeds for one consumer scope, such
// as a page of an application. Disposing it stops every session.
type SourceContext struct {
	id     uuid.UUID
	rootID uuid.UUID
	parent *SourceContext

	ctx    context.Context
	cancel context.CancelFunc

	log     *logging.Logger
	metrics *metrics.Engine
	opts    contextOptions

	requests *stream.Subject[Request]

	mu       sync.Mutex
	states   map[any]any
	order    []any
	children []*SourceContext
	disposed bool
}

type contextOptions struct {
	yieldTurns     int
	resetThreshold int
	maxDiffItems   int
}

// ContextOption configures a SourceContext.
type ContextOption func(*SourceContext)

// WithLogger sets the logger of the context and its sessions.
func WithLogger(l *logging.Logger) ContextOption {
	return func(sc *SourceContext) {
		if l != nil {
			sc.log = l
		}
	}
}

// WithMetrics sets the metrics of the context and its sessions.
func WithMetrics(m *metrics.Engine) ContextOption {
	return func(sc *SourceContext) {
		sc.metrics = m
	}
}

// WithTransientYieldTurns sets how many scheduler turns a producer gets
// before its execution publishes a transient message.
func WithTransientYieldTurns(n int) ContextOption {
	return func(sc *SourceContext) {
		if n >= 0 {
			sc.opts.yieldTurns = n
		}
	}
}

// WithResetThreshold sets the reset threshold of list feeds.
func WithResetThreshold(n int) ContextOption {
	return func(sc *SourceContext) {
		sc.opts.resetThreshold = n
	}
}

// WithMaxDiffItems sets the largest list that list feeds diff.
func WithMaxDiffItems(n int) ContextOption {
	return func(sc *SourceContext) {
		sc.opts.maxDiffItems = n
	}
}

// NewSourceContext creates a root context. Cancelling ctx disposes it.
func NewSourceContext(ctx context.Context, opts ...ContextOption) *SourceContext {
	id := uuid.New()
	sc := newSourceContext(ctx, id, nil)
	sc.log = logging.Nop()
	sc.opts = contextOptions{
		yieldTurns:     DefaultTransientYieldTurns,
		resetThreshold: tracking.DefaultResetThreshold,
		maxDiffItems:   tracking.DefaultMaxItems,
	}
	for _, opt := range opts {
		opt(sc)
	}
	sc.log = sc.log.WithComponent("feed").WithField("context", shortID(id))
	return sc
}

func newSourceContext(ctx context.Context, root uuid.UUID, parent *SourceContext) *SourceContext {
	sc := &SourceContext{
		id:       uuid.New(),
		rootID:   root,
		parent:   parent,
		requests: stream.NewSubject[Request](),
		states:   make(map[any]any),
	}
	if parent == nil {
		sc.id = root
	}
	sc.ctx, sc.cancel = context.WithCancel(ctx)
	return sc
}

// ID returns the identifier of the context.
func (sc *SourceContext) ID() uuid.UUID {
	return sc.id
}

// RootID returns the identifier of the root context.
func (sc *SourceContext) RootID() uuid.UUID {
	return sc.rootID
}

// Parent returns the parent context, nil for a root context.
func (sc *SourceContext) Parent() *SourceContext {
	return sc.parent
}

// Context returns a context cancelled when sc is disposed.
func (sc *SourceContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the logger of the context.
func (sc *SourceContext) Logger() *logging.Logger {
	return sc.log
}

// Metrics returns the metrics of the context, possibly nil.
func (sc *SourceContext) Metrics() *metrics.Engine {
	return sc.metrics
}

// IsDisposed reports whether the context was disposed.
func (sc *SourceContext) IsDisposed() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.disposed
}

// CreateChild creates a context sharing the root and options of sc.
// Requests sent to sc are forwarded to its children.
func (sc *SourceContext) CreateChild() (*SourceContext, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.disposed {
		return nil, ErrContextDisposed
	}
	child := newSourceContext(sc.ctx, sc.rootID, sc)
	child.opts = sc.opts
	child.metrics = sc.metrics
	child.log = sc.log.WithField("child", shortID(child.id))
	sc.children = append(sc.children, child)
	return child, nil
}

// Requests returns a subscription to the requests sent to sc from now on.
func (sc *SourceContext) Requests() *stream.Subscription[Request] {
	return sc.requests.Subscribe()
}

// RequestRefresh asks every feed of sc and its children to reload.
func (sc *SourceContext) RequestRefresh() RefreshRequest {
	req := RefreshRequest{ID: uuid.New()}
	sc.send(req)
	return req
}

// RequestMoreItems asks paginated feeds of sc and its children to load
// their next page.
func (sc *SourceContext) RequestMoreItems(desiredPageSize uint) PageRequest {
	req := PageRequest{ID: uuid.New(), DesiredPageSize: desiredPageSize}
	sc.send(req)
	return req
}

func (sc *SourceContext) send(req Request) {
	sc.mu.Lock()
	children := append([]*SourceContext(nil), sc.children...)
	sc.mu.Unlock()

	sc.requests.TrySetNext(req)
	for _, child := range children {
		child.send(req)
	}
}

// getOrCreateState returns the state stored under key, creating it with
// create on first use.
func getOrCreateState[S any](sc *SourceContext, key any, create func() S) (S, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var zero S
	if sc.disposed {
		return zero, ErrContextDisposed
	}
	if s, ok := sc.states[key]; ok {
		return s.(S), nil
	}
	s := create()
	sc.states[key] = s
	sc.order = append(sc.order, key)
	return s, nil
}

// Dispose stops every session of sc and its children. It is safe to call
// more than once.
func (sc *SourceContext) Dispose() {
	sc.mu.Lock()
	if sc.disposed {
		sc.mu.Unlock()
		return
	}
	sc.disposed = true
	children := sc.children
	sc.children = nil
	states := make([]any, 0, len(sc.order))
	for _, key := range sc.order {
		states = append(states, sc.states[key])
	}
	sc.states = nil
	sc.order = nil
	sc.mu.Unlock()

	for _, child := range children {
		child.Dispose()
	}
	sc.cancel()
	for i := len(states) - 1; i >= 0; i-- {
		if d, ok := states[i].(disposer); ok {
			d.dispose()
		}
	}
	sc.requests.TryComplete()
	sc.log.Debug("source context disposed")
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
