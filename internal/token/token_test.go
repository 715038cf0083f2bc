package token

import (
	"testing"

	"github.com/google/uuid"
)

func TestSequencer(t *testing.T) {
	root := uuid.New()
	s := NewSequencer(KindRefresh, "feed-a", root)

	if !s.Current().IsZero() {
		t.Errorf("expected zero current token, got %v", s.Current())
	}

	first := s.Next()
	second := s.Next()

	if first.Sequence != 1 || second.Sequence != 2 {
		t.Errorf("expected sequences 1 and 2, got %d and %d", first.Sequence, second.Sequence)
	}
	if s.Current() != second {
		t.Errorf("expected current %v, got %v", second, s.Current())
	}
	if first.RootContextID != root || first.Source != "feed-a" || first.Kind != KindRefresh {
		t.Errorf("unexpected token identity %+v", first)
	}
}

func TestSet(t *testing.T) {
	root := uuid.New()
	a := NewSequencer(KindRefresh, "a", root)
	b := NewSequencer(KindRefresh, "b", root)

	a1, a2 := a.Next(), a.Next()
	b1 := b.Next()

	t.Run("keeps highest per key", func(t *testing.T) {
		set := NewSet(a2, a1, b1)
		if set.Len() != 2 {
			t.Fatalf("expected 2 tokens, got %d", set.Len())
		}
		if !set.Contains(a1) || !set.Contains(a2) {
			t.Error("set with a2 should satisfy both a1 and a2")
		}
	})

	t.Run("contains is key scoped", func(t *testing.T) {
		set := NewSet(a1)
		if set.Contains(b1) {
			t.Error("set should not contain a token of another source")
		}
		if set.Contains(a2) {
			t.Error("set with a1 should not satisfy a2")
		}
	})

	t.Run("merge", func(t *testing.T) {
		merged := Merge(NewSet(a1), NewSet(b1), NewSet(a2))
		if !merged.Equal(NewSet(a2, b1)) {
			t.Errorf("unexpected merge result %v", merged.Tokens())
		}
	})

	t.Run("other root context is distinct", func(t *testing.T) {
		other := NewSequencer(KindRefresh, "a", uuid.New()).Next()
		set := NewSet(a2, other)
		if set.Len() != 2 {
			t.Errorf("expected 2 tokens, got %d", set.Len())
		}
	})

	t.Run("zero tokens are ignored", func(t *testing.T) {
		if !NewSet(Token{}).IsEmpty() {
			t.Error("zero token should not be stored")
		}
		var empty Set
		if !empty.Add(a1).Contains(a1) {
			t.Error("Add on empty set failed")
		}
	})
}
