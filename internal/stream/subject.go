package stream

import (
	"context"
	"io"
	"sync/atomic"
)

// Replay selects which values a new subscriber receives.
type Replay uint8

const (
	// ReplayDisabled starts every subscriber at the next published value.
	ReplayDisabled Replay = iota

	// ReplayAll starts every subscriber at the first value ever published.
	// The subject retains every value for its whole lifetime.
	ReplayAll

	// ReplayFirstSubscriberOnly gives the full backlog to the first
	// subscriber only; later subscribers start at the next value. This lets
	// the creator of a stream subscribe without racing its producer.
	ReplayFirstSubscriberOnly
)

// String returns a human-readable representation of the replay policy.
func (r Replay) String() string {
	switch r {
	case ReplayDisabled:
		return "disabled"
	case ReplayAll:
		return "all"
	case ReplayFirstSubscriberOnly:
		return "first-subscriber-only"
	default:
		return "unknown"
	}
}

// node is one slot of the subject's persistent linked list. A node is
// resolved exactly once, by closing ready: either with a value and a next
// node, or as terminal (err is io.EOF on completion).
type node[T any] struct {
	ready chan struct{}
	value T
	next  *node[T]
	err   error
}

func newNode[T any]() *node[T] {
	return &node[T]{ready: make(chan struct{})}
}

// Subject is a single-producer, multi-consumer push sequence.
//
// Writers atomically swap the pending tail for a fresh node and then
// resolve the previous tail, so concurrent writers are linearized without
// locks. Subscribers walk the list at their own pace.
type Subject[T any] struct {
	tail   atomic.Pointer[node[T]]
	head   atomic.Pointer[node[T]]
	latest atomic.Pointer[node[T]]
	replay Replay
}

// SubjectOption configures a Subject.
type SubjectOption func(*subjectConfig)

type subjectConfig struct {
	replay Replay
}

// WithReplay sets the replay policy of the subject.
func WithReplay(r Replay) SubjectOption {
	return func(c *subjectConfig) {
		c.replay = r
	}
}

// NewSubject creates a subject. The default replay policy is
// ReplayDisabled.
func NewSubject[T any](opts ...SubjectOption) *Subject[T] {
	var cfg subjectConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Subject[T]{replay: cfg.replay}
	first := newNode[T]()
	s.tail.Store(first)
	if cfg.replay != ReplayDisabled {
		s.head.Store(first)
	}
	return s
}

// Replay returns the replay policy of the subject.
func (s *Subject[T]) Replay() Replay {
	return s.replay
}

// resolve swaps the tail and resolves the previous one.
// It returns false if the subject is already completed.
func (s *Subject[T]) resolve(value T, err error) bool {
	var next *node[T]
	if err == nil {
		next = newNode[T]()
	}
	for {
		cur := s.tail.Load()
		if cur == nil {
			return false
		}
		if !s.tail.CompareAndSwap(cur, next) {
			continue
		}
		cur.value = value
		cur.next = next
		cur.err = err
		if err == nil {
			s.latest.Store(cur)
		}
		close(cur.ready)
		return true
	}
}

// SetNext publishes a value. It panics with ErrCompleted if the subject
// is completed.
func (s *Subject[T]) SetNext(value T) {
	if !s.resolve(value, nil) {
		panic(ErrCompleted)
	}
}

// TrySetNext publishes a value, returning false if the subject is
// completed.
func (s *Subject[T]) TrySetNext(value T) bool {
	return s.resolve(value, nil)
}

// Complete ends the sequence. Subscribers receive io.EOF once they
// consumed all earlier values. It panics with ErrCompleted if the subject
// is already completed.
func (s *Subject[T]) Complete() {
	if !s.TryComplete() {
		panic(ErrCompleted)
	}
}

// TryComplete ends the sequence, returning false if already completed.
func (s *Subject[T]) TryComplete() bool {
	var zero T
	return s.resolve(zero, io.EOF)
}

// Fail ends the sequence with err. It panics with ErrCompleted if the
// subject is already completed.
func (s *Subject[T]) Fail(err error) {
	if !s.TryFail(err) {
		panic(ErrCompleted)
	}
}

// TryFail ends the sequence with err, returning false if already
// completed.
func (s *Subject[T]) TryFail(err error) bool {
	if err == nil {
		err = io.EOF
	}
	var zero T
	return s.resolve(zero, err)
}

// IsCompleted reports whether the subject was completed or failed.
func (s *Subject[T]) IsCompleted() bool {
	return s.tail.Load() == nil
}

// Subscribe returns a new subscription positioned according to the
// replay policy.
func (s *Subject[T]) Subscribe() *Subscription[T] {
	var start *node[T]
	switch s.replay {
	case ReplayAll:
		start = s.head.Load()
	case ReplayFirstSubscriberOnly:
		start = s.head.Swap(nil)
	}
	if start == nil {
		start = s.startAtTail()
	}
	return &Subscription[T]{cur: start}
}

// SubscribeLatest returns a subscription that first yields the most
// recently published value, if any, then every following value.
func (s *Subject[T]) SubscribeLatest() *Subscription[T] {
	if latest := s.latest.Load(); latest != nil {
		return &Subscription[T]{cur: latest}
	}
	return &Subscription[T]{cur: s.startAtTail()}
}

// startAtTail returns the pending tail, or a terminal node if the subject
// is completed.
func (s *Subject[T]) startAtTail() *node[T] {
	if tail := s.tail.Load(); tail != nil {
		return tail
	}
	done := newNode[T]()
	done.err = io.EOF
	close(done.ready)
	return done
}

// Subscription is a cursor over a subject. It is not safe for concurrent
// use by multiple goroutines.
type Subscription[T any] struct {
	cur *node[T]
}

// Next blocks until the next value is available. It returns io.EOF once
// the subject is completed, the failure error if it failed, or the
// context error.
func (sub *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	n := sub.cur
	select {
	case <-n.ready:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if n.err != nil {
		return zero, n.err
	}
	sub.cur = n.next
	return n.value, nil
}

// TryNext returns the next value without blocking.
func (sub *Subscription[T]) TryNext() (T, bool, error) {
	var zero T
	n := sub.cur
	select {
	case <-n.ready:
	default:
		return zero, false, nil
	}
	if n.err != nil {
		return zero, false, n.err
	}
	sub.cur = n.next
	return n.value, true, nil
}
