package message

import (
	"fmt"
	"strings"
)

// Changes is the set of axes that differ between the Previous and the
// Current entry of a message. The data axis may carry a detail payload,
// e.g. a collection change set for list feeds.
type Changes struct {
	mask       uint16
	dataDetail any
}

// Contains reports whether axis changed.
func (c Changes) Contains(axis Axis) bool {
	return c.mask&(1<<axis) != 0
}

// Axes returns the changed axes in declaration order.
func (c Changes) Axes() []Axis {
	var axes []Axis
	for a := Axis(0); a < axisCount; a++ {
		if c.Contains(a) {
			axes = append(axes, a)
		}
	}
	return axes
}

// IsEmpty reports whether nothing changed.
func (c Changes) IsEmpty() bool {
	return c.mask == 0
}

// DataDetail returns the detailed data changes, if any were provided.
func (c Changes) DataDetail() (any, bool) {
	if !c.Contains(AxisData) || c.dataDetail == nil {
		return nil, false
	}
	return c.dataDetail, true
}

// String returns a debug representation.
func (c Changes) String() string {
	axes := c.Axes()
	names := make([]string, len(axes))
	for i, a := range axes {
		names[i] = a.String()
	}
	return "[" + strings.Join(names, ",") + "]"
}

// diff computes the changes between two entries.
func diff(prev, cur AnyEntry, dataDetail any) Changes {
	var c Changes
	for a := Axis(0); a < axisCount; a++ {
		if !a.Equal(prev.Get(a), cur.Get(a)) {
			c.mask |= 1 << a
		}
	}
	if c.Contains(AxisData) {
		c.dataDetail = dataDetail
	}
	return c
}

// Message is one versioned snapshot of a feed's state plus the changes
// relative to the previous snapshot.
type Message[T any] struct {
	Previous *Entry[T]
	Current  *Entry[T]
	Changes  Changes
}

// Initial returns the first message of a chain ending at current.
func Initial[T any](current *Entry[T]) Message[T] {
	prev := Empty[T]()
	if current == nil {
		current = Empty[T]()
	}
	return Message[T]{
		Previous: prev,
		Current:  current,
		Changes:  diff(prev, current, nil),
	}
}

// IsZero reports whether the message was never initialized.
func (m Message[T]) IsZero() bool {
	return m.Current == nil
}

// With starts a builder for the next message in the chain.
func (m Message[T]) With() *Builder[T] {
	return newBuilder(m.Current)
}

// Follows reports whether m directly follows prev in a chain.
func (m Message[T]) Follows(prev Message[T]) bool {
	return m.Previous == prev.Current
}

// String returns a debug representation.
func (m Message[T]) String() string {
	return fmt.Sprintf("Message{data=%v error=%v transient=%v changes=%v}",
		m.Current.Data(), m.Current.Error(), m.Current.IsTransient(), m.Changes)
}
