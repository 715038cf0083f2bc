// Package stream provides asynchronous push sequences.
//
// [Subject] is a single-producer, multi-consumer broadcast built from a
// persistent linked list of nodes. Each node carries a channel closed once
// its value is set, so any number of subscribers can wait on it. Writers
// swap the tail with a compare-and-swap; publishing never blocks.
//
// Three replay policies control what new subscribers see:
//
//   - [ReplayDisabled]: values published after subscribing
//   - [ReplayAll]: every value ever published
//   - [ReplayFirstSubscriberOnly]: the first subscriber gets the backlog,
//     later subscribers start at the next value
//
// # Usage
//
//	s := stream.NewSubject[int](stream.WithReplay(stream.ReplayFirstSubscriberOnly))
//	s.SetNext(1)
//
//	sub := s.Subscribe()
//	v, err := sub.Next(ctx) // 1
//
//	s.Complete()
//	_, err = sub.Next(ctx)  // io.EOF
//
// [Sequence] is the pull-side abstraction consumed by feeds, with helpers
// such as [Map], [Filter], [ForEach], [Collect] and [All].
package stream
