package feed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/stream"
)

// Producer loads the value of a feed for one execution. It should return
// promptly once exec.Context() is done.
type Producer[T any] func(exec *Execution) (option.Option[T], error)

// dynamicFeed is a feed whose sessions run a loader on each execution.
type dynamicFeed[T any] struct {
	load loader[T]
	hook func(*SourceContext) dataHook[T]
}

func newDynamicFeed[T any](load loader[T], hook func(*SourceContext) dataHook[T]) *dynamicFeed[T] {
	return &dynamicFeed[T]{load: load, hook: hook}
}

// Messages implements Feed.
func (f *dynamicFeed[T]) Messages(sc *SourceContext) (stream.Sequence[message.Message[T]], error) {
	s, err := f.session(sc)
	if err != nil {
		return nil, err
	}
	return s.Messages(), nil
}

func (f *dynamicFeed[T]) session(sc *SourceContext) (*Session[T], error) {
	if sc == nil {
		return nil, errors.New("feed: nil source context")
	}
	s, err := getOrCreateState(sc, f, func() *Session[T] {
		var hook dataHook[T]
		if f.hook != nil {
			hook = f.hook(sc)
		}
		return newSession(sc, f.load, hook)
	})
	if err != nil {
		return nil, err
	}
	s.start()
	return s, nil
}

// SessionOf returns the session of f in sc, creating it if needed. f must
// be a feed created by one of the constructors of this package running
// executions (Dynamic, Async, AsyncSequence, Value, List,
// PaginatedByIndex).
func SessionOf[T any](sc *SourceContext, f Feed[T]) (*Session[T], error) {
	df, ok := f.(*dynamicFeed[T])
	if !ok {
		return nil, fmt.Errorf("feed: %T has no session", f)
	}
	return df.session(sc)
}

// Dynamic creates a feed running p on each execution.
func Dynamic[T any](p Producer[T]) Feed[T] {
	return newDynamicFeed(func(exec *Execution, _ func(option.Option[T]) error) (option.Option[T], bool, error) {
		v, err := p(exec)
		return v, err == nil, err
	}, nil)
}

// Async creates a feed running load on each execution.
func Async[T any](load func(ctx context.Context) (option.Option[T], error)) Feed[T] {
	return Dynamic(func(exec *Execution) (option.Option[T], error) {
		return load(exec.Context())
	})
}

// AsyncSequence creates a feed publishing every value of the sequence
// returned by open on each execution.
func AsyncSequence[T any](open func(exec *Execution) stream.Sequence[option.Option[T]]) Feed[T] {
	return newDynamicFeed(func(exec *Execution, emit func(option.Option[T]) error) (option.Option[T], bool, error) {
		seq := open(exec)
		for {
			v, err := seq.Next(exec.Context())
			if errors.Is(err, io.EOF) {
				return option.Undefined[T](), false, nil
			}
			if err != nil {
				return option.Undefined[T](), false, err
			}
			if err := emit(v); err != nil {
				return option.Undefined[T](), false, err
			}
		}
	}, nil)
}

// Value creates a feed of a constant value.
func Value[T any](v T) Feed[T] {
	return Dynamic(func(*Execution) (option.Option[T], error) {
		return option.Some(v), nil
	})
}
