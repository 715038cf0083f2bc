package tracking

import (
	"fmt"
	"slices"
	"strings"
)

// ChangeKind identifies the kind of a collection change.
type ChangeKind uint8

const (
	// Add inserts NewItems at NewIndex.
	Add ChangeKind = iota

	// Remove deletes OldItems starting at OldIndex.
	Remove

	// Replace overwrites OldItems with NewItems starting at NewIndex.
	Replace

	// Move removes OldItems at OldIndex, then inserts them at NewIndex of
	// the resulting collection.
	Move

	// Reset replaces the whole collection by NewItems.
	Reset
)

// String returns a human-readable representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case Add:
		return "add"
	case Remove:
		return "remove"
	case Replace:
		return "replace"
	case Move:
		return "move"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Change is one primitive collection operation with absolute indices.
type Change[T any] struct {
	Kind     ChangeKind
	OldIndex int
	NewIndex int
	OldItems []T
	NewItems []T
}

// Count returns the number of items touched by the change.
func (c Change[T]) Count() int {
	switch c.Kind {
	case Add:
		return len(c.NewItems)
	case Remove, Move, Replace:
		return len(c.OldItems)
	default:
		return max(len(c.OldItems), len(c.NewItems))
	}
}

// String returns a compact description like "add@3+2".
func (c Change[T]) String() string {
	switch c.Kind {
	case Add:
		return fmt.Sprintf("add@%d+%d", c.NewIndex, len(c.NewItems))
	case Remove:
		return fmt.Sprintf("remove@%d-%d", c.OldIndex, len(c.OldItems))
	case Replace:
		return fmt.Sprintf("replace@%d~%d", c.NewIndex, len(c.NewItems))
	case Move:
		return fmt.Sprintf("move@%d->%d", c.OldIndex, c.NewIndex)
	case Reset:
		return fmt.Sprintf("reset(%d->%d)", len(c.OldItems), len(c.NewItems))
	default:
		return "unknown"
	}
}

// ChangeSet is an ordered list of changes. Replaying it in order against
// the previous snapshot reproduces the new one.
type ChangeSet[T any] []Change[T]

// IsEmpty reports whether the change set has no change.
func (cs ChangeSet[T]) IsEmpty() bool {
	return len(cs) == 0
}

// IsReset reports whether the change set is a single Reset.
func (cs ChangeSet[T]) IsReset() bool {
	return len(cs) == 1 && cs[0].Kind == Reset
}

// Count returns the number of items touched by all changes.
func (cs ChangeSet[T]) Count() int {
	total := 0
	for _, c := range cs {
		total += c.Count()
	}
	return total
}

// Apply replays the changes against prev and returns the resulting
// collection. prev is not modified.
func (cs ChangeSet[T]) Apply(prev []T) ([]T, error) {
	out := slices.Clone(prev)
	for i, c := range cs {
		var err error
		out, err = c.apply(out)
		if err != nil {
			return nil, fmt.Errorf("change %d (%s): %w", i, c, err)
		}
	}
	return out, nil
}

func (c Change[T]) apply(items []T) ([]T, error) {
	switch c.Kind {
	case Add:
		if c.NewIndex < 0 || c.NewIndex > len(items) {
			return nil, ErrIndexOutOfRange
		}
		return slices.Insert(items, c.NewIndex, c.NewItems...), nil

	case Remove:
		if c.OldIndex < 0 || c.OldIndex+len(c.OldItems) > len(items) {
			return nil, ErrIndexOutOfRange
		}
		return slices.Delete(items, c.OldIndex, c.OldIndex+len(c.OldItems)), nil

	case Replace:
		if c.NewIndex < 0 || c.NewIndex+len(c.NewItems) > len(items) {
			return nil, ErrIndexOutOfRange
		}
		copy(items[c.NewIndex:], c.NewItems)
		return items, nil

	case Move:
		if c.OldIndex < 0 || c.OldIndex+len(c.OldItems) > len(items) {
			return nil, ErrIndexOutOfRange
		}
		items = slices.Delete(items, c.OldIndex, c.OldIndex+len(c.OldItems))
		if c.NewIndex < 0 || c.NewIndex > len(items) {
			return nil, ErrIndexOutOfRange
		}
		return slices.Insert(items, c.NewIndex, c.NewItems...), nil

	case Reset:
		return slices.Clone(c.NewItems), nil

	default:
		return nil, fmt.Errorf("unknown change kind %d", c.Kind)
	}
}

// Offset returns a copy of the change set with every index shifted by n.
// Unused (negative) indices and Reset changes are kept as is.
func (cs ChangeSet[T]) Offset(n int) ChangeSet[T] {
	out := make(ChangeSet[T], len(cs))
	for i, c := range cs {
		if c.Kind != Reset {
			if c.OldIndex >= 0 {
				c.OldIndex += n
			}
			if c.NewIndex >= 0 {
				c.NewIndex += n
			}
		}
		out[i] = c
	}
	return out
}

// String joins the changes, e.g. "[remove@2-1 add@0+3]".
func (cs ChangeSet[T]) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func resetOf[T any](prev, next []T) ChangeSet[T] {
	return ChangeSet[T]{{
		Kind:     Reset,
		OldIndex: -1,
		NewIndex: -1,
		OldItems: slices.Clone(prev),
		NewItems: slices.Clone(next),
	}}
}
