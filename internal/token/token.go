// Package token provides sequence tokens used to correlate requests
// (refresh, load more items) with the messages that satisfy them.
//
// A [Token] is issued by a [Sequencer] owned by one source (typically a
// feed session) within one root source context. Tokens from different
// sources are aggregated in a [Set], which keeps only the most recent
// token per (kind, source, root context).
package token

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind identifies the family of a token.
type Kind uint8

const (
	// KindRefresh identifies tokens issued for refresh requests.
	KindRefresh Kind = iota + 1

	// KindPage identifies tokens issued for pagination requests.
	KindPage
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRefresh:
		return "refresh"
	case KindPage:
		return "page"
	default:
		return "unknown"
	}
}

// Token is one monotonically increasing sequence number of a source.
type Token struct {
	Kind          Kind
	Source        string
	RootContextID uuid.UUID
	Sequence      uint64
}

// IsZero reports whether the token was never issued.
func (t Token) IsZero() bool {
	return t.Sequence == 0
}

// String returns a debug representation.
func (t Token) String() string {
	return fmt.Sprintf("%s:%s#%d", t.Kind, t.Source, t.Sequence)
}

type key struct {
	kind Kind
	src  string
	root uuid.UUID
}

func (t Token) key() key {
	return key{kind: t.Kind, src: t.Source, root: t.RootContextID}
}

// Sequencer issues tokens for one source.
type Sequencer struct {
	kind   Kind
	source string
	root   uuid.UUID
	seq    atomic.Uint64
}

// NewSequencer creates a sequencer whose first issued token has sequence 1.
func NewSequencer(kind Kind, source string, root uuid.UUID) *Sequencer {
	return &Sequencer{kind: kind, source: source, root: root}
}

// Next issues a new token.
func (s *Sequencer) Next() Token {
	return s.token(s.seq.Add(1))
}

// Current returns the last issued token, or a zero-sequence token.
func (s *Sequencer) Current() Token {
	return s.token(s.seq.Load())
}

func (s *Sequencer) token(n uint64) Token {
	return Token{Kind: s.kind, Source: s.source, RootContextID: s.root, Sequence: n}
}

// Set is an immutable collection holding at most one token per
// (kind, source, root context), the one with the highest sequence.
// The zero value is an empty set.
type Set struct {
	tokens []Token
}

// NewSet builds a set from tokens.
func NewSet(tokens ...Token) Set {
	if len(tokens) == 0 {
		return Set{}
	}
	byKey := make(map[key]Token, len(tokens))
	for _, t := range tokens {
		if t.IsZero() {
			continue
		}
		if cur, ok := byKey[t.key()]; !ok || t.Sequence > cur.Sequence {
			byKey[t.key()] = t
		}
	}
	out := make([]Token, 0, len(byKey))
	for _, t := range byKey {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.RootContextID.String() < b.RootContextID.String()
	})
	return Set{tokens: out}
}

// Merge combines sets, keeping the highest sequence per key.
func Merge(sets ...Set) Set {
	var all []Token
	for _, s := range sets {
		all = append(all, s.tokens...)
	}
	return NewSet(all...)
}

// Add returns a new set including t.
func (s Set) Add(t Token) Set {
	return NewSet(append(append([]Token(nil), s.tokens...), t)...)
}

// Tokens returns a copy of the tokens in the set.
func (s Set) Tokens() []Token {
	return append([]Token(nil), s.tokens...)
}

// Len returns the number of tokens.
func (s Set) Len() int {
	return len(s.tokens)
}

// IsEmpty reports whether the set holds no token.
func (s Set) IsEmpty() bool {
	return len(s.tokens) == 0
}

// Contains reports whether the set holds a token for the same key with a
// sequence at least as recent as t.
func (s Set) Contains(t Token) bool {
	for _, cur := range s.tokens {
		if cur.key() == t.key() {
			return cur.Sequence >= t.Sequence
		}
	}
	return false
}

// Equal reports whether both sets hold the same tokens.
func (s Set) Equal(other Set) bool {
	if len(s.tokens) != len(other.tokens) {
		return false
	}
	for i := range s.tokens {
		if s.tokens[i] != other.tokens[i] {
			return false
		}
	}
	return true
}
