package tracking

import (
	"golang.org/x/text/cases"

	"github.com/dshills/feedcore/internal/option"
)

// ItemComparer compares collection items on two levels. Entity reports
// whether two items denote the same logical element; Version reports
// whether two items of the same entity carry the same content. A nil
// Version treats every matching entity as unchanged.
type ItemComparer[T any] struct {
	Entity  func(a, b T) bool
	Version func(a, b T) bool

	// keys returns the identity of each item when Entity compares
	// derived keys, so that the analyzer derives them once per diff.
	keys func(items []T) []any
}

func (c ItemComparer[T]) sameEntity(a, b T) bool {
	if c.Entity == nil {
		return option.ValuesEqual(a, b)
	}
	return c.Entity(a, b)
}

func (c ItemComparer[T]) sameVersion(a, b T) bool {
	if c.Version == nil {
		return true
	}
	return c.Version(a, b)
}

// Equality compares items with ==: items are either the same or not
// related at all, so no Replace is ever produced.
func Equality[T comparable]() ItemComparer[T] {
	eq := func(a, b T) bool { return a == b }
	return ItemComparer[T]{Entity: eq, Version: eq}
}

// ByKey identifies items by key. If version is nil, items with the same
// key are compared with option.ValuesEqual.
func ByKey[T any, K comparable](key func(T) K, version func(a, b T) bool) ItemComparer[T] {
	if version == nil {
		version = func(a, b T) bool { return option.ValuesEqual(a, b) }
	}
	return ItemComparer[T]{
		Entity:  func(a, b T) bool { return key(a) == key(b) },
		Version: version,
		keys: func(items []T) []any {
			keys := make([]any, len(items))
			for i, item := range items {
				keys[i] = key(item)
			}
			return keys
		},
	}
}

// FoldedStrings identifies strings case-insensitively using Unicode case
// folding. A change of case only is reported as a Replace.
func FoldedStrings() ItemComparer[string] {
	return ItemComparer[string]{
		Entity: func(a, b string) bool {
			// Casers are stateful and must not be shared.
			fold := cases.Fold()
			return fold.String(a) == fold.String(b)
		},
		Version: func(a, b string) bool { return a == b },
		keys: func(items []string) []any {
			fold := cases.Fold()
			keys := make([]any, len(items))
			for i, s := range items {
				keys[i] = fold.String(s)
			}
			return keys
		},
	}
}
