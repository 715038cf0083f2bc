package message

import (
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/token"
)

// AxisSetter is the untyped write view of a builder. Dependencies use it
// to set non-data axes without knowing the feed's value type.
type AxisSetter interface {
	Get(axis Axis) AxisValue
	Set(axis Axis, value AxisValue)
}

// Builder accumulates axis values for the next message.
type Builder[T any] struct {
	base       *Entry[T]
	values     map[Axis]AxisValue
	dataDetail any
}

func newBuilder[T any](base *Entry[T]) *Builder[T] {
	return &Builder[T]{base: base, values: base.clone()}
}

func builderOver[T any](values map[Axis]AxisValue) *Builder[T] {
	return &Builder[T]{values: cloneValues(values)}
}

// Get returns the value currently held for axis.
func (b *Builder[T]) Get(axis Axis) AxisValue {
	return b.values[axis]
}

// Set sets the raw value of axis. Setting Unset clears it.
func (b *Builder[T]) Set(axis Axis, value AxisValue) {
	if !value.IsSet {
		delete(b.values, axis)
		return
	}
	b.values[axis] = value
}

// Data sets the data axis.
func (b *Builder[T]) Data(o option.Option[T]) *Builder[T] {
	if o.IsUndefined() {
		b.Set(AxisData, Unset)
	} else {
		b.Set(AxisData, Set(o.Box()))
	}
	b.dataDetail = nil
	return b
}

// DataWithChanges sets the data axis along with a detailed description
// of the change, exposed through [Changes.DataDetail].
func (b *Builder[T]) DataWithChanges(o option.Option[T], detail any) *Builder[T] {
	b.Data(o)
	b.dataDetail = detail
	return b
}

// Error sets the error axis. A nil error clears it.
func (b *Builder[T]) Error(err error) *Builder[T] {
	if err == nil {
		b.Set(AxisError, Unset)
	} else {
		b.Set(AxisError, Set(err))
	}
	return b
}

// IsTransient sets the progress axis.
func (b *Builder[T]) IsTransient(transient bool) *Builder[T] {
	if transient {
		b.Set(AxisProgress, Set(true))
	} else {
		b.Set(AxisProgress, Unset)
	}
	return b
}

// Pagination sets the pagination axis.
func (b *Builder[T]) Pagination(p Pagination) *Builder[T] {
	b.Set(AxisPagination, Set(p))
	return b
}

// Selection sets the selection axis.
func (b *Builder[T]) Selection(s Selection) *Builder[T] {
	b.Set(AxisSelection, Set(s))
	return b
}

// Refresh sets the refresh axis.
func (b *Builder[T]) Refresh(tokens token.Set) *Builder[T] {
	b.Set(AxisRefresh, Set(tokens))
	return b
}

// CurrentData returns the data held by the builder.
func (b *Builder[T]) CurrentData() option.Option[T] {
	return (&Entry[T]{values: b.values}).Data()
}

// CurrentError returns the error held by the builder.
func (b *Builder[T]) CurrentError() error {
	return (&Entry[T]{values: b.values}).Error()
}

// Build produces the message following the builder's base entry.
func (b *Builder[T]) Build() Message[T] {
	base := b.base
	if base == nil {
		base = Empty[T]()
	}
	cur := newEntry[T](cloneValues(b.values))
	return Message[T]{
		Previous: base,
		Current:  cur,
		Changes:  diff(base, cur, b.dataDetail),
	}
}
