package feed

import (
	"context"
	"errors"
	"io"

	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/stream"
)

// State is a feed whose value is updated locally. It belongs to the
// context it was created in and completes when that context is disposed.
type State[T any] struct {
	sc      *SourceContext
	manager *message.Manager[T]
	out     *stream.Subject[message.Message[T]]
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewState creates a state holding initial.
func NewState[T any](sc *SourceContext, initial option.Option[T]) (*State[T], error) {
	s, err := newState[T](sc)
	if err != nil {
		return nil, err
	}
	if !initial.IsUndefined() {
		s.manager.Update(func(b *message.Builder[T]) { b.Data(initial) })
	}
	return s, nil
}

// StateFrom creates a state following source: every message of source
// replaces all axes of the state. Local updates apply until the next
// message of source.
func StateFrom[T any](sc *SourceContext, source Feed[T]) (*State[T], error) {
	s, err := newState[T](sc)
	if err != nil {
		return nil, err
	}
	seq, err := source.Messages(sc)
	if err != nil {
		return nil, err
	}
	go s.follow(s.ctx, seq)
	return s, nil
}

func newState[T any](sc *SourceContext) (*State[T], error) {
	s := &State[T]{
		sc:  sc,
		out: stream.NewSubject[message.Message[T]](),
	}
	s.ctx, s.cancel = context.WithCancel(sc.Context())
	s.manager = message.NewManager(func(msg message.Message[T]) {
		s.out.TrySetNext(msg)
		sc.metrics.MessagePublished()
	})
	if _, err := getOrCreateState(sc, s, func() *State[T] { return s }); err != nil {
		s.cancel()
		return nil, err
	}
	return s, nil
}

func (s *State[T]) follow(ctx context.Context, seq stream.Sequence[message.Message[T]]) {
	for {
		msg, err := seq.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.manager.Update(func(b *message.Builder[T]) { b.Error(err) })
			}
			return
		}
		s.manager.Update(func(b *message.Builder[T]) {
			for _, a := range message.AllAxes() {
				b.Set(a, msg.Current.Get(a))
			}
		})
	}
}

// Messages implements Feed. A state can be read from the context it
// belongs to or any of its descendants.
func (s *State[T]) Messages(sc *SourceContext) (stream.Sequence[message.Message[T]], error) {
	if !s.belongsTo(sc) {
		return nil, errors.New("feed: state used outside of its source context")
	}
	return subscribeMessages(s.out), nil
}

func (s *State[T]) belongsTo(sc *SourceContext) bool {
	for c := sc; c != nil; c = c.parent {
		if c == s.sc {
			return true
		}
	}
	return false
}

// Value returns the current data of the state.
func (s *State[T]) Value() option.Option[T] {
	return s.manager.Current().Current.Data()
}

// Update replaces the data with the result of fn, applied atomically
// relative to other updates.
func (s *State[T]) Update(ctx context.Context, fn func(option.Option[T]) option.Option[T]) error {
	return s.UpdateMessage(ctx, func(b *message.Builder[T]) {
		b.Data(fn(b.CurrentData()))
	})
}

// UpdateMessage applies fn to the axes of the state.
func (s *State[T]) UpdateMessage(ctx context.Context, fn func(b *message.Builder[T])) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.ctx.Err() != nil {
		return ErrContextDisposed
	}
	s.manager.Update(fn)
	return nil
}

// Set replaces the data with Some(v).
func (s *State[T]) Set(ctx context.Context, v T) error {
	return s.Update(ctx, func(option.Option[T]) option.Option[T] {
		return option.Some(v)
	})
}

func (s *State[T]) dispose() {
	s.cancel()
	s.out.TryComplete()
}
