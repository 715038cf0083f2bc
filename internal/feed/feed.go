package feed

import (
	"context"

	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/stream"
)

// Feed is a source of messages. A feed has one session per
// SourceContext: every subscriber of the same context shares it.
type Feed[T any] interface {
	// Messages subscribes to the feed in sc. The first message of the
	// returned sequence describes the current state of the feed; each
	// following message follows the previous one.
	Messages(sc *SourceContext) (stream.Sequence[message.Message[T]], error)
}

// messageSequence reads a message subject from its latest value. Its
// first message is rebased onto an empty entry so that every subscriber
// sees a complete chain.
type messageSequence[T any] struct {
	sub     *stream.Subscription[message.Message[T]]
	started bool
}

func subscribeMessages[T any](s *stream.Subject[message.Message[T]]) *messageSequence[T] {
	return &messageSequence[T]{sub: s.SubscribeLatest()}
}

// Next implements stream.Sequence.
func (s *messageSequence[T]) Next(ctx context.Context) (message.Message[T], error) {
	msg, err := s.sub.Next(ctx)
	if err != nil {
		return msg, err
	}
	if !s.started {
		s.started = true
		return message.Initial(msg.Current), nil
	}
	return msg, nil
}

// Await subscribes to f in sc and waits for its first non-transient
// message. It returns the data and the error of that message.
func Await[T any](ctx context.Context, sc *SourceContext, f Feed[T]) (option.Option[T], error) {
	seq, err := f.Messages(sc)
	if err != nil {
		return option.Undefined[T](), err
	}
	for {
		msg, err := seq.Next(ctx)
		if err != nil {
			return option.Undefined[T](), err
		}
		if !msg.Current.IsTransient() {
			return msg.Current.Data(), msg.Current.Error()
		}
	}
}
