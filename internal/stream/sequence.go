package stream

import (
	"context"
	"errors"
	"io"
	"iter"
)

// Sequence is an asynchronous sequence of values. Next blocks until a
// value is available and returns io.EOF at the end of the sequence.
type Sequence[T any] interface {
	Next(ctx context.Context) (T, error)
}

// SequenceFunc adapts a function to the Sequence interface.
type SequenceFunc[T any] func(ctx context.Context) (T, error)

// Next calls f.
func (f SequenceFunc[T]) Next(ctx context.Context) (T, error) {
	return f(ctx)
}

// FromSlice returns a sequence yielding the given values.
func FromSlice[T any](values ...T) Sequence[T] {
	i := 0
	return SequenceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if i >= len(values) {
			return zero, io.EOF
		}
		v := values[i]
		i++
		return v, nil
	})
}

// FromChannel returns a sequence reading ch until it is closed.
func FromChannel[T any](ch <-chan T) Sequence[T] {
	return SequenceFunc[T](func(ctx context.Context) (T, error) {
		var zero T
		select {
		case v, ok := <-ch:
			if !ok {
				return zero, io.EOF
			}
			return v, nil
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	})
}

// Map returns a sequence applying fn to every value of src.
func Map[T, R any](src Sequence[T], fn func(T) R) Sequence[R] {
	return SequenceFunc[R](func(ctx context.Context) (R, error) {
		v, err := src.Next(ctx)
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(v), nil
	})
}

// Filter returns a sequence of the values of src matching keep.
func Filter[T any](src Sequence[T], keep func(T) bool) Sequence[T] {
	return SequenceFunc[T](func(ctx context.Context) (T, error) {
		for {
			v, err := src.Next(ctx)
			if err != nil {
				return v, err
			}
			if keep(v) {
				return v, nil
			}
		}
	})
}

// ForEach calls fn for every value until the sequence ends. It returns
// nil at the end of the sequence, otherwise the first error from the
// sequence or fn.
func ForEach[T any](ctx context.Context, src Sequence[T], fn func(T) error) error {
	for {
		v, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// Collect reads the whole sequence into a slice.
func Collect[T any](ctx context.Context, src Sequence[T]) ([]T, error) {
	var out []T
	err := ForEach(ctx, src, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// Take reads at most n values.
func Take[T any](ctx context.Context, src Sequence[T], n int) ([]T, error) {
	out := make([]T, 0, n)
	for len(out) < n {
		v, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// All adapts a sequence for range-over-func loops. Iteration stops at the
// end of the sequence; any other error is yielded once, then iteration
// stops.
//
//	for v, err := range stream.All(ctx, seq) {
//	    if err != nil { ... }
//	}
func All[T any](ctx context.Context, src Sequence[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(v, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
