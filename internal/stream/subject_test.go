package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func readN[T any](t *testing.T, sub *Subscription[T], n int) []T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		out = append(out, v)
	}
	return out
}

func TestSubjectReplayPolicies(t *testing.T) {
	t.Run("disabled starts now", func(t *testing.T) {
		s := NewSubject[int]()
		s.SetNext(1)
		sub := s.Subscribe()
		s.SetNext(2)
		s.SetNext(3)

		if diff := cmp.Diff([]int{2, 3}, readN(t, sub, 2)); diff != "" {
			t.Errorf("unexpected values (-want +got):\n%s", diff)
		}
	})

	t.Run("all replays for everyone", func(t *testing.T) {
		s := NewSubject[int](WithReplay(ReplayAll))
		s.SetNext(1)
		s.SetNext(2)
		first := s.Subscribe()
		second := s.Subscribe()
		s.SetNext(3)

		for _, sub := range []*Subscription[int]{first, second} {
			if diff := cmp.Diff([]int{1, 2, 3}, readN(t, sub, 3)); diff != "" {
				t.Errorf("unexpected values (-want +got):\n%s", diff)
			}
		}
	})

	t.Run("first subscriber only", func(t *testing.T) {
		s := NewSubject[int](WithReplay(ReplayFirstSubscriberOnly))
		s.SetNext(1)
		s.SetNext(2)
		first := s.Subscribe()
		s.SetNext(3)
		second := s.Subscribe()
		s.SetNext(4)

		if diff := cmp.Diff([]int{1, 2, 3, 4}, readN(t, first, 4)); diff != "" {
			t.Errorf("first subscriber (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]int{4}, readN(t, second, 1)); diff != "" {
			t.Errorf("second subscriber (-want +got):\n%s", diff)
		}
	})

	t.Run("latest", func(t *testing.T) {
		s := NewSubject[int]()
		s.SetNext(1)
		s.SetNext(2)
		sub := s.SubscribeLatest()
		s.SetNext(3)

		if diff := cmp.Diff([]int{2, 3}, readN(t, sub, 2)); diff != "" {
			t.Errorf("unexpected values (-want +got):\n%s", diff)
		}
	})
}

func TestSubjectCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("complete", func(t *testing.T) {
		s := NewSubject[int]()
		sub := s.Subscribe()
		s.SetNext(1)
		s.Complete()

		readN(t, sub, 1)
		if _, err := sub.Next(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("expected io.EOF, got %v", err)
		}
		if !s.IsCompleted() {
			t.Error("subject should be completed")
		}
		if _, err := s.Subscribe().Next(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("late subscriber should see io.EOF, got %v", err)
		}
	})

	t.Run("fail", func(t *testing.T) {
		boom := errors.New("boom")
		s := NewSubject[int]()
		sub := s.Subscribe()
		s.Fail(boom)

		if _, err := sub.Next(ctx); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("try variants are no-ops after completion", func(t *testing.T) {
		s := NewSubject[int]()
		if !s.TryComplete() {
			t.Fatal("first completion should succeed")
		}
		if s.TrySetNext(1) || s.TryComplete() || s.TryFail(errors.New("x")) {
			t.Error("Try* should return false after completion")
		}
	})

	t.Run("strict variants panic after completion", func(t *testing.T) {
		s := NewSubject[int]()
		s.Complete()
		defer func() {
			if r := recover(); r != ErrCompleted {
				t.Errorf("expected ErrCompleted panic, got %v", r)
			}
		}()
		s.SetNext(1)
	})
}

func TestSubjectConcurrentWriters(t *testing.T) {
	const writers, perWriter = 8, 200

	s := NewSubject[int](WithReplay(ReplayAll))
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.SetNext(1)
			}
		}()
	}
	wg.Wait()
	s.Complete()

	values, err := Collect(context.Background(), Sequence[int](s.Subscribe()))
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(values) != writers*perWriter {
		t.Errorf("expected %d values, got %d", writers*perWriter, len(values))
	}
}

func TestSubscriptionContext(t *testing.T) {
	s := NewSubject[int]()
	sub := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	if _, ok, err := sub.TryNext(); ok || err != nil {
		t.Errorf("TryNext on empty subject: ok=%v err=%v", ok, err)
	}
	s.SetNext(5)
	if v, ok, _ := sub.TryNext(); !ok || v != 5 {
		t.Errorf("expected 5, got %v (ok=%v)", v, ok)
	}
}
