package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/feedcore/internal/collection/tracking"
	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/stream"
)

func TestGetFollowsParent(t *testing.T) {
	sc := newTestContext(t)
	parent, err := NewState(sc, option.Some(1))
	if err != nil {
		t.Fatal(err)
	}
	child := Dynamic(func(exec *Execution) (option.Option[int], error) {
		v, err := Get(exec, parent)
		if err != nil {
			return option.Undefined[int](), err
		}
		return option.Map(v, func(n int) int { return n * 10 }), nil
	})

	seq := subscribe(t, sc, child)
	waitFor(t, seq, hasData(10))

	if err := parent.Set(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	waitFor(t, seq, hasData(20))

	t.Run("parent error flows into the child", func(t *testing.T) {
		boom := errors.New("parent failed")
		err := parent.UpdateMessage(context.Background(), func(b *message.Builder[int]) {
			b.Error(boom)
		})
		if err != nil {
			t.Fatal(err)
		}
		msg := waitFor(t, seq, func(m message.Message[int]) bool { return m.Current.Error() != nil })
		if !errors.Is(msg.Current.Error(), boom) {
			t.Errorf("expected parent error, got %v", msg.Current.Error())
		}
		if v, _ := msg.Current.Data().Get(); v != 20 {
			t.Errorf("parent error should not change child data, got %v", msg.Current.Data())
		}
	})
}

func TestListChanges(t *testing.T) {
	sc := newTestContext(t)

	var mu sync.Mutex
	items := []string{"a", "b", "c"}
	f := List(func(*Execution) ([]string, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), items...), nil
	}, tracking.Equality[string]())

	seq := subscribe(t, sc, f)
	first := waitFor(t, seq, func(m message.Message[[]string]) bool { return m.Current.Data().IsSome() })
	prev, _ := first.Current.Data().Get()

	mu.Lock()
	items = []string{"c", "a", "d"}
	mu.Unlock()
	sc.RequestRefresh()

	msg := waitFor(t, seq, func(m message.Message[[]string]) bool { return m.Changes.Contains(message.AxisData) })
	cs, ok := ListChanges(msg)
	if !ok {
		t.Fatal("expected a change set on the data change")
	}
	got, err := cs.Apply(prev)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff([]string{"c", "a", "d"}, got); diff != "" {
		t.Errorf("replay mismatch (-want +got):\n%s", diff)
	}

	t.Run("empty list is none", func(t *testing.T) {
		mu.Lock()
		items = nil
		mu.Unlock()
		sc.RequestRefresh()
		msg := waitFor(t, seq, func(m message.Message[[]string]) bool { return m.Current.Data().IsNone() })
		cs, _ := ListChanges(msg)
		got, err := cs.Apply([]string{"c", "a", "d"})
		if err != nil || len(got) != 0 {
			t.Errorf("expected removal of every item, got %v (%v)", got, err)
		}
	})
}

func TestPaginatedByIndex(t *testing.T) {
	sc := newTestContext(t)
	pages := [][]int{{1, 2}, {3, 4}}
	var requested []PageInfo
	var mu sync.Mutex

	f := PaginatedByIndex(func(_ context.Context, page PageInfo) ([]int, error) {
		mu.Lock()
		requested = append(requested, page)
		mu.Unlock()
		if int(page.Index) < len(pages) {
			return pages[page.Index], nil
		}
		return nil, nil
	}, tracking.Equality[int]())

	seq := subscribe(t, sc, f)
	hasItems := func(n int) func(message.Message[[]int]) bool {
		return func(m message.Message[[]int]) bool {
			v, _ := m.Current.Data().Get()
			return len(v) == n && !m.Current.IsTransient()
		}
	}

	first := waitFor(t, seq, hasItems(2))
	if !first.Current.Pagination().HasMoreItems {
		t.Error("first page should report more items")
	}

	sc.RequestMoreItems(0)
	second := waitFor(t, seq, hasItems(4))
	if !second.Current.Pagination().HasMoreItems {
		t.Error("second page should report more items")
	}
	if second.Current.Pagination().Tokens.IsEmpty() {
		t.Error("page message should carry the page token")
	}
	cs, ok := ListChanges(second)
	if !ok || len(cs) != 1 || cs[0].Kind != tracking.Add || cs[0].NewIndex != 2 {
		t.Errorf("expected one add at index 2, got %v", cs)
	}

	sc.RequestMoreItems(0)
	last := waitFor(t, seq, func(m message.Message[[]int]) bool {
		return !m.Current.Pagination().HasMoreItems && !m.Current.IsTransient()
	})
	if v, _ := last.Current.Data().Get(); len(v) != 4 {
		t.Errorf("empty page should keep the items, got %v", v)
	}

	mu.Lock()
	defer mu.Unlock()
	var indices []uint
	for _, p := range requested {
		indices = append(indices, p.Index)
	}
	if diff := cmp.Diff([]uint{0, 1, 2}, indices); diff != "" {
		t.Errorf("page indices mismatch (-want +got):\n%s", diff)
	}
}

func TestPageRequestRightAfterFirstPage(t *testing.T) {
	for round := 0; round < 20; round++ {
		sc := newTestContext(t)
		var mu sync.Mutex
		var indices []uint
		f := PaginatedByIndex(func(_ context.Context, page PageInfo) ([]int, error) {
			mu.Lock()
			indices = append(indices, page.Index)
			mu.Unlock()
			return []int{int(page.Index)*2 + 1, int(page.Index)*2 + 2}, nil
		}, tracking.Equality[int]())

		seq := subscribe(t, sc, f)
		waitFor(t, seq, func(m message.Message[[]int]) bool {
			v, _ := m.Current.Data().Get()
			return len(v) == 2
		})
		sc.RequestMoreItems(0)
		second := waitFor(t, seq, func(m message.Message[[]int]) bool {
			v, _ := m.Current.Data().Get()
			return len(v) == 4 && !m.Current.IsTransient()
		})
		v, _ := second.Current.Data().Get()
		if diff := cmp.Diff([]int{1, 2, 3, 4}, v); diff != "" {
			t.Errorf("round %d: items mismatch (-want +got):\n%s", round, diff)
		}

		mu.Lock()
		if diff := cmp.Diff([]uint{0, 1}, indices); diff != "" {
			t.Errorf("round %d: page indices mismatch (-want +got):\n%s", round, diff)
		}
		mu.Unlock()
	}
}

func TestState(t *testing.T) {
	sc := newTestContext(t)
	s, err := NewState(sc, option.Some(1))
	if err != nil {
		t.Fatal(err)
	}
	seq := subscribe[int](t, sc, s)
	waitFor(t, seq, hasData(1))

	err = s.Update(context.Background(), func(v option.Option[int]) option.Option[int] {
		return option.Map(v, func(n int) int { return n + 1 })
	})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, seq, hasData(2))
	if v, _ := s.Value().Get(); v != 2 {
		t.Errorf("Value = %v", s.Value())
	}

	t.Run("cancelled update", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Set(ctx, 5); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("foreign context", func(t *testing.T) {
		other := newTestContext(t)
		if _, err := s.Messages(other); err == nil {
			t.Error("state should not be readable from another context")
		}
		child, _ := sc.CreateChild()
		if _, err := s.Messages(child); err != nil {
			t.Errorf("state should be readable from a child context: %v", err)
		}
	})

	t.Run("disposed", func(t *testing.T) {
		sc.Dispose()
		if err := s.Set(context.Background(), 3); !errors.Is(err, ErrContextDisposed) {
			t.Errorf("expected ErrContextDisposed, got %v", err)
		}
	})
}

func TestStateFrom(t *testing.T) {
	sc := newTestContext(t)
	s, err := StateFrom(sc, Value("remote"))
	if err != nil {
		t.Fatal(err)
	}
	seq := subscribe[string](t, sc, s)
	waitFor(t, seq, hasData("remote"))

	if err := s.Set(context.Background(), "local"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, seq, hasData("local"))
}

func TestCreate(t *testing.T) {
	m1 := message.Initial(message.Empty[int]()).With().Data(option.Some(1)).Build()
	m2 := m1.With().Data(option.Some(2)).Build()

	t.Run("valid chain", func(t *testing.T) {
		sc := newTestContext(t)
		f := Create(func(context.Context, *SourceContext) stream.Sequence[message.Message[int]] {
			return stream.FromSlice(m1, m2)
		})
		seq := subscribe(t, sc, f)
		waitFor(t, seq, func(m message.Message[int]) bool {
			v, _ := m.Current.Data().Get()
			return v == 2
		})
	})

	t.Run("broken chain", func(t *testing.T) {
		sc := newTestContext(t)
		stray := m1.With().Data(option.Some(3)).Build()
		f := Create(func(context.Context, *SourceContext) stream.Sequence[message.Message[int]] {
			return stream.FromSlice(m1, m2, stray)
		})
		seq := subscribe(t, sc, f)

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		var err error
		for err == nil {
			_, err = seq.Next(ctx)
		}
		if !errors.Is(err, ErrBrokenChain) {
			t.Errorf("expected ErrBrokenChain, got %v", err)
		}
	})

	t.Run("first message must start empty", func(t *testing.T) {
		sc := newTestContext(t)
		f := Create(func(context.Context, *SourceContext) stream.Sequence[message.Message[int]] {
			return stream.FromSlice(m2)
		})
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		if _, err := subscribe(t, sc, f).Next(ctx); !errors.Is(err, ErrBrokenChain) {
			t.Errorf("expected ErrBrokenChain, got %v", err)
		}
	})
}

func TestAwait(t *testing.T) {
	sc := newTestContext(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	v, err := Await(ctx, sc, Async(func(context.Context) (option.Option[string], error) {
		return option.Some("ok"), nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.Get(); got != "ok" {
		t.Errorf("Await = %v", v)
	}
}
