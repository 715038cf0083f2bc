package tracking

import (
	"slices"
	"sort"
)

// Default limits of an Analyzer.
const (
	// DefaultResetThreshold is the number of touched items above which
	// a change set collapses into a single Reset.
	DefaultResetThreshold = 100

	// DefaultMaxItems is the collection size above which no diff is
	// computed at all.
	DefaultMaxItems = 10000

	// DefaultMaxMemoryMB bounds the memory of one diff.
	DefaultMaxMemoryMB = 100
)

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*analyzerConfig)

type analyzerConfig struct {
	resetThreshold int
	maxItems       int
	maxMemoryMB    int
}

// WithResetThreshold sets the reset threshold. A value <= 0 disables
// collapsing.
func WithResetThreshold(n int) AnalyzerOption {
	return func(c *analyzerConfig) {
		c.resetThreshold = n
	}
}

// WithMaxItems sets the maximum collection size to diff. A value <= 0
// removes the limit.
func WithMaxItems(n int) AnalyzerOption {
	return func(c *analyzerConfig) {
		c.maxItems = n
	}
}

// WithMaxMemoryMB bounds the memory a diff may use. A diff that would
// need more collapses into a Reset. A value <= 0 removes the limit.
func WithMaxMemoryMB(n int) AnalyzerOption {
	return func(c *analyzerConfig) {
		c.maxMemoryMB = n
	}
}

// Analyzer computes change sets between ordered snapshots.
// An Analyzer is immutable and safe for concurrent use.
type Analyzer[T any] struct {
	comparer       ItemComparer[T]
	resetThreshold int
	maxItems       int
	maxEdits       int
}

// NewAnalyzer creates an analyzer using the given comparer.
func NewAnalyzer[T any](comparer ItemComparer[T], opts ...AnalyzerOption) *Analyzer[T] {
	cfg := analyzerConfig{
		resetThreshold: DefaultResetThreshold,
		maxItems:       DefaultMaxItems,
		maxMemoryMB:    DefaultMaxMemoryMB,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// A move costs two edits and touches one item, so an edit script
	// longer than twice the threshold always collapses.
	maxEdits := -1
	if cfg.resetThreshold > 0 {
		maxEdits = 2 * cfg.resetThreshold
	}
	if cfg.maxMemoryMB > 0 {
		if limit := maxEditsForMemory(cfg.maxMemoryMB); maxEdits < 0 || limit < maxEdits {
			maxEdits = limit
		}
	}

	return &Analyzer[T]{
		comparer:       comparer,
		resetThreshold: cfg.resetThreshold,
		maxItems:       cfg.maxItems,
		maxEdits:       maxEdits,
	}
}

// Comparer returns the item comparer of the analyzer.
func (a *Analyzer[T]) Comparer() ItemComparer[T] {
	return a.comparer
}

// GetChanges returns the changes turning prev into next.
//
// Changes are emitted in this order: removals (descending), moves
// (ascending target), additions (ascending), then replacements of items
// whose version changed. Replaying them in order reproduces next.
func (a *Analyzer[T]) GetChanges(prev, next []T) ChangeSet[T] {
	if a.maxItems > 0 && (len(prev) > a.maxItems || len(next) > a.maxItems) {
		return resetOf(prev, next)
	}

	changes, ok := a.diff(prev, next)
	if !ok || (a.resetThreshold > 0 && changes.Count() > a.resetThreshold) {
		return resetOf(prev, next)
	}
	return changes
}

// slot is an item of the working collection, tagged with its index in
// the new snapshot.
type slot[T any] struct {
	item     T
	newIndex int
}

func (a *Analyzer[T]) diff(prev, next []T) (ChangeSet[T], bool) {
	sameEntity := func(i, j int) bool { return a.comparer.sameEntity(prev[i], next[j]) }
	var (
		ops []editOp
		ok  bool
	)
	if a.comparer.keys != nil {
		prevKeys, nextKeys := a.comparer.keys(prev), a.comparer.keys(next)
		ops, ok = editScript(prevKeys, nextKeys, func(x, y any) bool { return x == y }, a.maxEdits)
		sameEntity = func(i, j int) bool { return prevKeys[i] == nextKeys[j] }
	} else {
		ops, ok = editScript(prev, next, a.comparer.sameEntity, a.maxEdits)
	}
	if !ok {
		return nil, false
	}

	// oldToNew maps every kept old item to its new index, -1 if removed.
	oldToNew := make([]int, len(prev))
	for i := range oldToNew {
		oldToNew[i] = -1
	}
	added := make([]bool, len(next))
	moved := make([]bool, len(next))

	var deletes, inserts []int
	for _, op := range ops {
		switch op.kind {
		case opEqual:
			oldToNew[op.oldIndex] = op.newIndex
		case opDelete:
			deletes = append(deletes, op.oldIndex)
		case opInsert:
			inserts = append(inserts, op.newIndex)
		}
	}

	// Pair deleted and inserted items of the same entity into moves.
	paired := make([]bool, len(inserts))
	for _, oldIdx := range deletes {
		for j, newIdx := range inserts {
			if !paired[j] && sameEntity(oldIdx, newIdx) {
				paired[j] = true
				oldToNew[oldIdx] = newIdx
				moved[newIdx] = true
				break
			}
		}
	}
	for j, newIdx := range inserts {
		if !paired[j] {
			added[newIdx] = true
		}
	}

	var changes ChangeSet[T]

	// Removals, highest index first so earlier indices stay valid.
	var removed []int
	working := make([]slot[T], 0, len(prev))
	for i, item := range prev {
		if oldToNew[i] < 0 {
			removed = append(removed, i)
			continue
		}
		working = append(working, slot[T]{item: item, newIndex: oldToNew[i]})
	}
	for end := len(removed) - 1; end >= 0; {
		start := end
		for start > 0 && removed[start-1] == removed[start]-1 {
			start--
		}
		first, last := removed[start], removed[end]
		changes = append(changes, Change[T]{
			Kind:     Remove,
			OldIndex: first,
			NewIndex: -1,
			OldItems: slices.Clone(prev[first : last+1]),
		})
		end = start - 1
	}

	// Moves, ascending target index. Each moved item lands right after
	// the kept item preceding it in next.
	kept := make([]int, 0, len(working))
	for _, s := range working {
		kept = append(kept, s.newIndex)
	}
	sort.Ints(kept)
	for _, target := range kept {
		if !moved[target] {
			continue
		}
		from := indexOfSlot(working, target)
		s := working[from]
		working = slices.Delete(working, from, from+1)

		to := 0
		if p := sort.SearchInts(kept, target); p > 0 {
			to = indexOfSlot(working, kept[p-1]) + 1
		}
		working = slices.Insert(working, to, s)
		if from == to {
			continue
		}
		changes = append(changes, Change[T]{
			Kind:     Move,
			OldIndex: from,
			NewIndex: to,
			OldItems: []T{s.item},
			NewItems: []T{s.item},
		})
	}

	// Additions, ascending: every lower index is final when a run lands.
	for start := 0; start < len(next); {
		if !added[start] {
			start++
			continue
		}
		end := start
		for end+1 < len(next) && added[end+1] {
			end++
		}
		changes = append(changes, Change[T]{
			Kind:     Add,
			OldIndex: -1,
			NewIndex: start,
			NewItems: slices.Clone(next[start : end+1]),
		})
		start = end + 1
	}

	// Replacements of kept entities whose version changed. The working
	// collection is now aligned with next, except for added items.
	current := make([]T, len(next))
	changed := make([]bool, len(next))
	for _, s := range working {
		current[s.newIndex] = s.item
		changed[s.newIndex] = !a.comparer.sameVersion(s.item, next[s.newIndex])
	}
	for start := 0; start < len(next); {
		if !changed[start] {
			start++
			continue
		}
		end := start
		for end+1 < len(next) && changed[end+1] {
			end++
		}
		changes = append(changes, Change[T]{
			Kind:     Replace,
			OldIndex: start,
			NewIndex: start,
			OldItems: slices.Clone(current[start : end+1]),
			NewItems: slices.Clone(next[start : end+1]),
		})
		start = end + 1
	}

	return changes, true
}

func indexOfSlot[T any](working []slot[T], newIndex int) int {
	for i, s := range working {
		if s.newIndex == newIndex {
			return i
		}
	}
	return -1
}
