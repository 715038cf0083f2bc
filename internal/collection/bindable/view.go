package bindable

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/feedcore/internal/collection/tracking"
	"github.com/dshills/feedcore/internal/dispatch"
)

// View is the projection of a collection on one dispatcher. Its items
// change only on that dispatcher, and subscribers are notified there.
type View[T any] struct {
	dispatcher dispatch.Dispatcher

	// stale is set once the dispatcher rejected an update. The next
	// accepted update resets the view.
	stale atomic.Bool

	mu       sync.Mutex
	items    []T
	status   Status
	handlers map[int]func(tracking.ChangeSet[T])
	nextID   int
}

func newView[T any](d dispatch.Dispatcher, items []T, status Status) *View[T] {
	return &View[T]{
		dispatcher: d,
		items:      items,
		status:     status,
		handlers:   make(map[int]func(tracking.ChangeSet[T])),
	}
}

// Dispatcher returns the dispatcher of the view.
func (v *View[T]) Dispatcher() dispatch.Dispatcher {
	return v.dispatcher
}

// Items returns a copy of the items of the view.
func (v *View[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.items)
}

// Len returns the number of items of the view.
func (v *View[T]) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}

// Status returns the source status as last seen by the view.
func (v *View[T]) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Subscribe registers fn to be called on the dispatcher after each
// change set was applied. It returns a function removing fn.
func (v *View[T]) Subscribe(fn func(tracking.ChangeSet[T])) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextID
	v.nextID++
	v.handlers[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.handlers, id)
	}
}

// apply runs on the dispatcher. If resync is set or the change set does
// not replay onto the items of the view, the view resets to snapshot.
func (v *View[T]) apply(cs tracking.ChangeSet[T], snapshot []T, status Status, resync bool) {
	v.mu.Lock()
	v.status = status
	if len(cs) == 0 && !resync {
		v.mu.Unlock()
		return
	}
	var items []T
	var err error
	if !resync {
		items, err = cs.Apply(v.items)
	}
	if resync || err != nil || len(items) != len(snapshot) {
		cs = tracking.ChangeSet[T]{{
			Kind:     tracking.Reset,
			OldIndex: -1,
			NewIndex: -1,
			OldItems: v.items,
			NewItems: snapshot,
		}}
		items = slices.Clone(snapshot)
	}
	v.items = items
	handlers := make([]func(tracking.ChangeSet[T]), 0, len(v.handlers))
	for id := 0; id < v.nextID; id++ {
		if h, ok := v.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	v.mu.Unlock()

	for _, h := range handlers {
		h(cs)
	}
}
