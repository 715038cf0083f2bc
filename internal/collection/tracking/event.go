package tracking

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidEvent is returned when a notification does not match the
	// collection it applies to.
	ErrInvalidEvent = errors.New("invalid collection event")

	// ErrIndexOutOfRange is returned when replaying a change that does
	// not fit the collection.
	ErrIndexOutOfRange = errors.New("change index out of range")
)

// Event is a primitive collection notification, as raised by an
// observable list for a single mutation.
type Event[T any] struct {
	Kind ChangeKind

	// NewItems holds added, replacing or moved items. For Reset it holds
	// the whole new collection.
	NewItems []T

	// OldItems holds removed, replaced or moved items.
	OldItems []T

	// NewStartingIndex is where NewItems land. -1 on Add appends.
	NewStartingIndex int

	// OldStartingIndex is where OldItems were.
	OldStartingIndex int
}

// FromEvent converts a notification raised on prev into a change set.
// Replacements of unchanged items are dropped and a Reset is diffed
// against prev to recover granular changes.
func (a *Analyzer[T]) FromEvent(prev []T, ev Event[T]) (ChangeSet[T], error) {
	n := len(prev)

	switch ev.Kind {
	case Add:
		idx := ev.NewStartingIndex
		if idx == -1 {
			idx = n
		}
		if idx < 0 || idx > n {
			return nil, invalidEvent(ev, "add index %d outside [0,%d]", idx, n)
		}
		if len(ev.NewItems) == 0 {
			return nil, nil
		}
		return ChangeSet[T]{{
			Kind:     Add,
			OldIndex: -1,
			NewIndex: idx,
			NewItems: slices.Clone(ev.NewItems),
		}}, nil

	case Remove:
		idx := ev.OldStartingIndex
		if idx < 0 || idx+len(ev.OldItems) > n {
			return nil, invalidEvent(ev, "remove of %d items at %d in %d", len(ev.OldItems), idx, n)
		}
		if len(ev.OldItems) == 0 {
			return nil, nil
		}
		return ChangeSet[T]{{
			Kind:     Remove,
			OldIndex: idx,
			NewIndex: -1,
			OldItems: slices.Clone(prev[idx : idx+len(ev.OldItems)]),
		}}, nil

	case Replace:
		idx := ev.NewStartingIndex
		if idx < 0 {
			idx = ev.OldStartingIndex
		}
		if len(ev.OldItems) != len(ev.NewItems) {
			return nil, invalidEvent(ev, "replace of %d items by %d", len(ev.OldItems), len(ev.NewItems))
		}
		if idx < 0 || idx+len(ev.NewItems) > n {
			return nil, invalidEvent(ev, "replace of %d items at %d in %d", len(ev.NewItems), idx, n)
		}
		return a.replacements(prev, idx, ev.NewItems), nil

	case Move:
		from, to, count := ev.OldStartingIndex, ev.NewStartingIndex, len(ev.OldItems)
		if from < 0 || from+count > n {
			return nil, invalidEvent(ev, "move of %d items from %d in %d", count, from, n)
		}
		if to < 0 || to > n-count {
			return nil, invalidEvent(ev, "move of %d items to %d in %d", count, to, n)
		}
		if count == 0 || from == to {
			return nil, nil
		}
		items := slices.Clone(prev[from : from+count])
		return ChangeSet[T]{{
			Kind:     Move,
			OldIndex: from,
			NewIndex: to,
			OldItems: items,
			NewItems: items,
		}}, nil

	case Reset:
		return a.GetChanges(prev, ev.NewItems), nil

	default:
		return nil, invalidEvent(ev, "unknown kind")
	}
}

// replacements emits Replace runs for the items of next that differ from
// prev at idx.
func (a *Analyzer[T]) replacements(prev []T, idx int, next []T) ChangeSet[T] {
	var changes ChangeSet[T]
	for start := 0; start < len(next); {
		if a.unchanged(prev[idx+start], next[start]) {
			start++
			continue
		}
		end := start
		for end+1 < len(next) && !a.unchanged(prev[idx+end+1], next[end+1]) {
			end++
		}
		changes = append(changes, Change[T]{
			Kind:     Replace,
			OldIndex: idx + start,
			NewIndex: idx + start,
			OldItems: slices.Clone(prev[idx+start : idx+end+1]),
			NewItems: slices.Clone(next[start : end+1]),
		})
		start = end + 1
	}
	return changes
}

func (a *Analyzer[T]) unchanged(x, y T) bool {
	return a.comparer.sameEntity(x, y) && a.comparer.sameVersion(x, y)
}

func invalidEvent[T any](ev Event[T], format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidEvent, ev.Kind, fmt.Sprintf(format, args...))
}
