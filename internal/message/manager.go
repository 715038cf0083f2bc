package message

import (
	"context"
	"sync"
)

// Manager serializes the updates of one producer into a single chain of
// messages.
//
// The published entry is composed from three layers:
//   - parent: inherited axes of upstream feeds (never Data)
//   - local: values committed by the producer
//   - transient: values of the running transaction (e.g. Progress)
//
// Aggregatable axes merge all layers with the axis merge logic; Data comes
// from the local layer only. Every published message follows the
// previously published one.
type Manager[T any] struct {
	mu        sync.Mutex
	parent    map[Axis]AxisValue
	local     map[Axis]AxisValue
	transient map[Axis]AxisValue
	current   Message[T]
	tx        *Transaction[T]
	publish   func(Message[T])
}

// NewManager creates a manager invoking publish for each new message.
// publish is called with the manager lock held, so it must not block and
// must not call back into the manager.
func NewManager[T any](publish func(Message[T])) *Manager[T] {
	if publish == nil {
		publish = func(Message[T]) {}
	}
	empty := Empty[T]()
	return &Manager[T]{
		parent:    map[Axis]AxisValue{},
		local:     map[Axis]AxisValue{},
		transient: map[Axis]AxisValue{},
		current:   Message[T]{Previous: empty, Current: empty},
		publish:   publish,
	}
}

// Current returns the last published message, or an empty message whose
// Previous and Current are the same empty entry.
func (m *Manager[T]) Current() Message[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Update applies updater to the local layer and publishes the result if
// anything changed. Panics raised by updater are not recovered.
func (m *Manager[T]) Update(updater func(b *Builder[T])) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocalLocked(updater)
}

func (m *Manager[T]) updateLocalLocked(updater func(b *Builder[T])) bool {
	b := builderOver[T](m.local)
	updater(b)
	m.local = b.values
	return m.publishLocked(b.dataDetail)
}

// SetParent replaces the parent layer with the inherited axes of entry.
func (m *Manager[T]) SetParent(entry AnyEntry) bool {
	values := make(map[Axis]AxisValue)
	if entry != nil {
		for _, a := range entry.Axes() {
			if a.Inherited() {
				values[a] = entry.Get(a)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.parent = values
	return m.publishLocked(nil)
}

// BeginUpdate opens a transaction. Any previous transaction is superseded
// and its subsequent calls become no-ops. With preservePendingAxes the
// transient values left by an abandoned transaction are kept (so that a
// loading indicator does not flicker), otherwise they are dropped without
// publishing.
func (m *Manager[T]) BeginUpdate(ctx context.Context, preservePendingAxes bool) *Transaction[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tx != nil {
		m.tx.done = true
	}
	if !preservePendingAxes {
		m.transient = map[Axis]AxisValue{}
	}
	tx := &Transaction[T]{m: m, ctx: ctx}
	m.tx = tx
	return tx
}

// PendingAxes returns the axes held by the transient layer.
func (m *Manager[T]) PendingAxes() []Axis {
	m.mu.Lock()
	defer m.mu.Unlock()
	var axes []Axis
	for a := Axis(0); a < axisCount; a++ {
		if _, ok := m.transient[a]; ok {
			axes = append(axes, a)
		}
	}
	return axes
}

func (m *Manager[T]) compose() map[Axis]AxisValue {
	values := make(map[Axis]AxisValue, axisCount)
	for a := Axis(0); a < axisCount; a++ {
		var v AxisValue
		switch {
		case a == AxisData:
			v = m.local[a]
		case a.Inherited():
			v = a.Aggregate(m.parent[a], m.local[a], m.transient[a])
		default:
			if t, ok := m.transient[a]; ok {
				v = t
			} else {
				v = m.local[a]
			}
		}
		if v.IsSet {
			values[a] = v
		}
	}
	return values
}

func (m *Manager[T]) publishLocked(dataDetail any) bool {
	next := newEntry[T](m.compose())
	changes := diff(m.current.Current, next, dataDetail)
	if changes.IsEmpty() {
		return false
	}
	m.current = Message[T]{
		Previous: m.current.Current,
		Current:  next,
		Changes:  changes,
	}
	m.publish(m.current)
	return true
}

// Transaction is a pending update of a manager. Its local changes are
// published only on Commit.
type Transaction[T any] struct {
	m    *Manager[T]
	ctx  context.Context
	done bool
}

func (tx *Transaction[T]) activeLocked() bool {
	return !tx.done && tx.m.tx == tx && tx.ctx.Err() == nil
}

// IsActive reports whether the transaction can still publish.
func (tx *Transaction[T]) IsActive() bool {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	return tx.activeLocked()
}

// TransientUpdate publishes an intermediate message built from the
// transient layer. It returns false if the transaction is no longer
// active or nothing changed.
func (tx *Transaction[T]) TransientUpdate(updater func(b *Builder[T])) bool {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if !tx.activeLocked() {
		return false
	}
	b := builderOver[T](tx.m.transient)
	updater(b)
	delete(b.values, AxisData)
	tx.m.transient = b.values
	return tx.m.publishLocked(nil)
}

// Commit applies updater to the local layer, clears the transient layer
// and publishes the final message. It returns false if the transaction
// is no longer active.
func (tx *Transaction[T]) Commit(updater func(b *Builder[T])) bool {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	if !tx.activeLocked() {
		return false
	}
	tx.done = true
	tx.m.tx = nil
	tx.m.transient = map[Axis]AxisValue{}
	tx.m.updateLocalLocked(updater)
	return true
}

// Dispose abandons the transaction if it was not committed. Nothing is
// published; transient values stay pending until the next transaction
// decides whether to preserve them.
func (tx *Transaction[T]) Dispose() {
	tx.m.mu.Lock()
	defer tx.m.mu.Unlock()
	tx.done = true
	if tx.m.tx == tx {
		tx.m.tx = nil
	}
}
