package tracking

import "slices"

// FlattenGroupChanges translates changes local to group into changes of
// the flattened view, where counts holds the item count of every group
// before the changes. A Reset of the group becomes a Remove of its old
// items followed by an Add of its new items.
func FlattenGroupChanges[T any](counts []int, group int, cs ChangeSet[T]) ChangeSet[T] {
	offset := 0
	for _, c := range counts[:group] {
		offset += c
	}

	out := make(ChangeSet[T], 0, len(cs))
	for _, c := range cs {
		if c.Kind != Reset {
			out = append(out, ChangeSet[T]{c}.Offset(offset)...)
			continue
		}
		if len(c.OldItems) > 0 {
			out = append(out, Change[T]{Kind: Remove, OldIndex: offset, NewIndex: -1, OldItems: c.OldItems})
		}
		if len(c.NewItems) > 0 {
			out = append(out, Change[T]{Kind: Add, OldIndex: -1, NewIndex: offset, NewItems: c.NewItems})
		}
	}
	return out
}

// Group is a keyed run of items in a grouped collection.
type Group[K comparable, T any] struct {
	Key   K
	Items []T
}

// Flatten concatenates the items of all groups.
func Flatten[K comparable, T any](groups []Group[K, T]) []T {
	var out []T
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}

// GroupedAnalyzer computes changes of the flattened view of grouped
// snapshots. Groups are matched by key; items within a group are diffed
// with the item analyzer.
type GroupedAnalyzer[K comparable, T any] struct {
	items          *Analyzer[T]
	groups         *Analyzer[Group[K, T]]
	resetThreshold int
}

// NewGroupedAnalyzer creates a grouped analyzer. The options apply to
// the whole flattened change set as well as to each group.
func NewGroupedAnalyzer[K comparable, T any](comparer ItemComparer[T], opts ...AnalyzerOption) *GroupedAnalyzer[K, T] {
	items := NewAnalyzer(comparer, opts...)
	byKey := ItemComparer[Group[K, T]]{
		Entity: func(a, b Group[K, T]) bool { return a.Key == b.Key },
		keys: func(groups []Group[K, T]) []any {
			keys := make([]any, len(groups))
			for i, g := range groups {
				keys[i] = g.Key
			}
			return keys
		},
	}
	return &GroupedAnalyzer[K, T]{
		items:          items,
		groups:         NewAnalyzer(byKey, WithResetThreshold(0), WithMaxItems(0)),
		resetThreshold: items.resetThreshold,
	}
}

// GetChanges returns the changes turning Flatten(prev) into Flatten(next).
func (g *GroupedAnalyzer[K, T]) GetChanges(prev, next []Group[K, T]) ChangeSet[T] {
	working := slices.Clone(prev)
	var changes ChangeSet[T]

	groupChanges := g.groups.GetChanges(prev, next)
	if groupChanges.IsReset() {
		return resetOf(Flatten(prev), Flatten(next))
	}
	for _, gc := range groupChanges {
		switch gc.Kind {
		case Remove:
			at := itemOffset(working, gc.OldIndex)
			if items := Flatten(gc.OldItems); len(items) > 0 {
				changes = append(changes, Change[T]{Kind: Remove, OldIndex: at, NewIndex: -1, OldItems: items})
			}
			working = slices.Delete(working, gc.OldIndex, gc.OldIndex+len(gc.OldItems))

		case Add:
			working = slices.Insert(working, gc.NewIndex, gc.NewItems...)
			if items := Flatten(gc.NewItems); len(items) > 0 {
				at := itemOffset(working, gc.NewIndex)
				changes = append(changes, Change[T]{Kind: Add, OldIndex: -1, NewIndex: at, NewItems: items})
			}

		case Move:
			moving := working[gc.OldIndex : gc.OldIndex+len(gc.OldItems)]
			items := Flatten(moving)
			from := itemOffset(working, gc.OldIndex)
			moving = slices.Clone(moving)
			working = slices.Delete(working, gc.OldIndex, gc.OldIndex+len(moving))
			to := itemOffset(working, gc.NewIndex)
			working = slices.Insert(working, gc.NewIndex, moving...)
			if len(items) > 0 && from != to {
				changes = append(changes, Change[T]{Kind: Move, OldIndex: from, NewIndex: to, OldItems: items, NewItems: items})
			}
		}
	}

	// Groups are aligned by key; diff the items of each one.
	for i := range working {
		counts := make([]int, len(working))
		for j, w := range working {
			counts[j] = len(w.Items)
		}
		local := g.items.GetChanges(working[i].Items, next[i].Items)
		changes = append(changes, FlattenGroupChanges(counts, i, local)...)
		working[i].Items = next[i].Items
	}

	if g.resetThreshold > 0 && changes.Count() > g.resetThreshold {
		return resetOf(Flatten(prev), Flatten(next))
	}
	return changes
}

func itemOffset[K comparable, T any](groups []Group[K, T], index int) int {
	n := 0
	for _, g := range groups[:index] {
		n += len(g.Items)
	}
	return n
}
