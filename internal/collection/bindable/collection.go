// Package bindable projects list feeds onto dispatchers.
//
// A [Collection] follows a list feed and keeps one [View] per
// dispatcher. Every view receives the same granular change sets, applied
// on its own dispatcher, so that consumers bound to a dispatcher (a UI
// thread, a worker queue) only ever observe their view from it.
package bindable

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/dshills/feedcore/internal/collection/tracking"
	"github.com/dshills/feedcore/internal/dispatch"
	"github.com/dshills/feedcore/internal/feed"
	"github.com/dshills/feedcore/internal/logging"
	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/metrics"
	"github.com/dshills/feedcore/internal/stream"
)

// Status is the non-data state of the source feed.
type Status struct {
	// Loading is set while the source publishes transient messages.
	Loading bool

	// Err is the error of the source, if any.
	Err error

	// HasMoreItems reports whether the source can load more items.
	HasMoreItems bool
}

// Collection projects a list feed onto per-dispatcher views.
type Collection[T any] struct {
	log     *logging.Logger
	metrics *metrics.Engine
	cancel  context.CancelFunc
	done    chan struct{}

	views *dispatch.Local[*View[T]]

	mu     sync.Mutex
	items  []T
	status Status
	err    error
}

// New creates a collection following source in sc. The collection stops
// when sc is disposed or Close is called.
func New[T any](sc *feed.SourceContext, source feed.Feed[[]T]) (*Collection[T], error) {
	seq, err := source.Messages(sc)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(sc.Context())
	c := &Collection[T]{
		log:     sc.Logger().WithComponent("bindable"),
		metrics: sc.Metrics(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.views = dispatch.NewLocal(func(d dispatch.Dispatcher) *View[T] {
		return newView(d, slices.Clone(c.items), c.status)
	})
	go c.follow(ctx, seq)
	return c, nil
}

// View returns the view of d, creating it from the current items on
// first use.
func (c *Collection[T]) View(d dispatch.Dispatcher) *View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.views.Value(d)
}

// Items returns a copy of the current items.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Status returns the current status of the source.
func (c *Collection[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the error that ended the collection, nil while running or
// if the source completed normally.
func (c *Collection[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the collection stopped following its source.
func (c *Collection[T]) Done() <-chan struct{} {
	return c.done
}

// Close stops following the source and waits for it.
func (c *Collection[T]) Close() error {
	c.cancel()
	<-c.done
	return nil
}

func (c *Collection[T]) follow(ctx context.Context, seq stream.Sequence[message.Message[[]T]]) {
	defer close(c.done)
	for {
		msg, err := seq.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				c.log.Warn("source failed: %v", err)
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Collection[T]) handle(msg message.Message[[]T]) {
	next, _ := msg.Current.Data().Get()
	status := Status{
		Loading:      msg.Current.IsTransient(),
		Err:          msg.Current.Error(),
		HasMoreItems: msg.Current.Pagination().HasMoreItems,
	}

	c.mu.Lock()
	prev := c.items
	var cs tracking.ChangeSet[T]
	if msg.Changes.Contains(message.AxisData) {
		var ok bool
		if cs, ok = feed.ListChanges(msg); !ok {
			cs = tracking.ChangeSet[T]{{
				Kind:     tracking.Reset,
				OldIndex: -1,
				NewIndex: -1,
				OldItems: prev,
				NewItems: next,
			}}
		}
		c.items = slices.Clone(next)
	}
	c.status = status
	var views []*View[T]
	var dispatchers []dispatch.Dispatcher
	c.views.Range(func(d dispatch.Dispatcher, v *View[T]) bool {
		dispatchers = append(dispatchers, d)
		views = append(views, v)
		return true
	})
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()

	for _, ch := range cs {
		c.metrics.CollectionChanged(ch.Kind.String())
	}
	for i, v := range views {
		resync := v.stale.Load()
		if !dispatchers[i].TryEnqueue(func() { v.apply(cs, snapshot, status, resync) }) {
			if !resync {
				c.log.Warn("dispatcher rejected an update, view is out of sync")
			}
			v.stale.Store(true)
			continue
		}
		if resync {
			v.stale.Store(false)
		}
	}
}
