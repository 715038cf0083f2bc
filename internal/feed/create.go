package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/stream"
)

// Create creates a feed from a custom source of messages. The source is
// opened once per context and must produce a chain: the first message
// starts from an empty entry and each message follows the previous one.
// A broken chain fails the feed with ErrBrokenChain.
func Create[T any](open func(ctx context.Context, sc *SourceContext) stream.Sequence[message.Message[T]]) Feed[T] {
	return &customFeed[T]{open: open}
}

type customFeed[T any] struct {
	open func(ctx context.Context, sc *SourceContext) stream.Sequence[message.Message[T]]
}

type customSession[T any] struct {
	out    *stream.Subject[message.Message[T]]
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Messages implements Feed.
func (f *customFeed[T]) Messages(sc *SourceContext) (stream.Sequence[message.Message[T]], error) {
	cs, err := getOrCreateState(sc, f, func() *customSession[T] {
		ctx, cancel := context.WithCancel(sc.Context())
		return &customSession[T]{out: stream.NewSubject[message.Message[T]](), ctx: ctx, cancel: cancel}
	})
	if err != nil {
		return nil, err
	}
	seq := subscribeMessages(cs.out)
	cs.once.Do(func() {
		go cs.forward(cs.ctx, sc, f.open(cs.ctx, sc))
	})
	return seq, nil
}

func (cs *customSession[T]) forward(ctx context.Context, sc *SourceContext, src stream.Sequence[message.Message[T]]) {
	var prev message.Message[T]
	for {
		msg, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF) || ctx.Err() != nil:
			cs.out.TryComplete()
			return
		case err != nil:
			cs.out.TryFail(err)
			return
		}

		if prev.IsZero() {
			if len(msg.Previous.Axes()) != 0 {
				cs.fail(sc, fmt.Errorf("%w: first message does not start from an empty entry", ErrBrokenChain))
				return
			}
		} else if !msg.Follows(prev) {
			cs.fail(sc, ErrBrokenChain)
			return
		}
		prev = msg
		cs.out.TrySetNext(msg)
		sc.metrics.MessagePublished()
	}
}

func (cs *customSession[T]) fail(sc *SourceContext, err error) {
	sc.log.Error("custom feed: %v", err)
	cs.out.TryFail(err)
}

func (cs *customSession[T]) dispose() {
	cs.cancel()
	cs.out.TryComplete()
}
