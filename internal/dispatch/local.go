package dispatch

import "sync"

// Local holds one lazily created value per dispatcher. Dispatchers are
// compared by identity and must be comparable (pointer receivers are).
type Local[T any] struct {
	factory func(Dispatcher) T

	mu     sync.Mutex
	values map[Dispatcher]T
	order  []Dispatcher
}

// NewLocal creates a Local using factory to build the value of a
// dispatcher on first access.
func NewLocal[T any](factory func(Dispatcher) T) *Local[T] {
	return &Local[T]{
		factory: factory,
		values:  make(map[Dispatcher]T),
	}
}

// Value returns the value of d, creating it if needed. The factory runs
// on the calling goroutine, under the lock of l.
func (l *Local[T]) Value(d Dispatcher) T {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.values[d]; ok {
		return v
	}
	v := l.factory(d)
	l.values[d] = v
	l.order = append(l.order, d)
	return v
}

// Lookup returns the value of d if it was already created.
func (l *Local[T]) Lookup(d Dispatcher) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.values[d]
	return v, ok
}

// Delete forgets the value of d and returns it.
func (l *Local[T]) Delete(d Dispatcher) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.values[d]
	if !ok {
		return v, false
	}
	delete(l.values, d)
	for i, o := range l.order {
		if o == d {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return v, true
}

// Len returns the number of created values.
func (l *Local[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values)
}

// Range calls fn for every created value, in creation order, until fn
// returns false. fn runs without the lock held.
func (l *Local[T]) Range(fn func(Dispatcher, T) bool) {
	l.mu.Lock()
	order := append([]Dispatcher(nil), l.order...)
	values := make([]T, len(order))
	for i, d := range order {
		values[i] = l.values[d]
	}
	l.mu.Unlock()

	for i, d := range order {
		if !fn(d, values[i]) {
			return
		}
	}
}
