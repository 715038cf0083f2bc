package message

import (
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/token"
)

// AnyEntry is the untyped view of an entry, used to merge entries of
// feeds with different data types.
type AnyEntry interface {
	// Get returns the value of an axis, Unset if not set.
	Get(axis Axis) AxisValue

	// Axes returns the axes holding a non-zero value.
	Axes() []Axis
}

// Entry is an immutable mapping from axis to value.
// Entries are compared by identity: the Previous entry of a message is
// the very same pointer as the Current entry of the message before it.
type Entry[T any] struct {
	values map[Axis]AxisValue
}

// Empty returns a new entry with no axis set.
func Empty[T any]() *Entry[T] {
	return &Entry[T]{}
}

// newEntry takes ownership of values and drops zero values.
func newEntry[T any](values map[Axis]AxisValue) *Entry[T] {
	for a, v := range values {
		if a.IsZero(v) {
			delete(values, a)
		}
	}
	return &Entry[T]{values: values}
}

// Get returns the value of an axis.
func (e *Entry[T]) Get(axis Axis) AxisValue {
	if e == nil {
		return Unset
	}
	return e.values[axis]
}

// Axes returns the axes holding a value, in declaration order.
func (e *Entry[T]) Axes() []Axis {
	if e == nil {
		return nil
	}
	var axes []Axis
	for a := Axis(0); a < axisCount; a++ {
		if _, ok := e.values[a]; ok {
			axes = append(axes, a)
		}
	}
	return axes
}

// Data returns the value of the data axis.
func (e *Entry[T]) Data() option.Option[T] {
	v := e.Get(AxisData)
	if !v.IsSet {
		return option.Undefined[T]()
	}
	o, ok := option.Unbox[T](v.Value.(option.Option[any]))
	if !ok {
		return option.Undefined[T]()
	}
	return o
}

// Error returns the value of the error axis.
func (e *Entry[T]) Error() error {
	v := e.Get(AxisError)
	if !v.IsSet {
		return nil
	}
	err, _ := v.Value.(error)
	return err
}

// IsTransient reports whether the progress axis is set.
func (e *Entry[T]) IsTransient() bool {
	v := e.Get(AxisProgress)
	b, _ := v.Value.(bool)
	return v.IsSet && b
}

// Pagination returns the value of the pagination axis.
func (e *Entry[T]) Pagination() Pagination {
	p, _ := e.Get(AxisPagination).Value.(Pagination)
	return p
}

// Selection returns the value of the selection axis.
func (e *Entry[T]) Selection() Selection {
	s, _ := e.Get(AxisSelection).Value.(Selection)
	return s
}

// Refresh returns the refresh tokens satisfied by this entry.
func (e *Entry[T]) Refresh() token.Set {
	s, _ := e.Get(AxisRefresh).Value.(token.Set)
	return s
}

func (e *Entry[T]) clone() map[Axis]AxisValue {
	return cloneValues(e.valuesOrNil())
}

func (e *Entry[T]) valuesOrNil() map[Axis]AxisValue {
	if e == nil {
		return nil
	}
	return e.values
}

func cloneValues(values map[Axis]AxisValue) map[Axis]AxisValue {
	out := make(map[Axis]AxisValue, len(values))
	for a, v := range values {
		out[a] = v
	}
	return out
}

// Merge aggregates the inherited axes of several entries, Data excluded.
// It is used to build the parent entry of a dependent feed.
func Merge(entries ...AnyEntry) *Entry[any] {
	values := make(map[Axis]AxisValue)
	for a := Axis(0); a < axisCount; a++ {
		if !a.Inherited() {
			continue
		}
		parts := make([]AxisValue, 0, len(entries))
		for _, e := range entries {
			if e == nil {
				continue
			}
			parts = append(parts, e.Get(a))
		}
		if v := a.Aggregate(parts...); v.IsSet {
			values[a] = v
		}
	}
	return newEntry[any](values)
}
