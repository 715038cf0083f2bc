package message

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/token"
)

func TestBuilderChanges(t *testing.T) {
	initial := Initial(Empty[int]())
	if !initial.Changes.IsEmpty() {
		t.Errorf("initial message of empty entry should have no changes, got %v", initial.Changes)
	}

	m1 := initial.With().Data(option.Some(1)).Build()
	if !m1.Changes.Contains(AxisData) || m1.Changes.Contains(AxisError) {
		t.Errorf("expected only data change, got %v", m1.Changes)
	}
	if m1.Previous != initial.Current {
		t.Error("builder must chain on the current entry")
	}

	t.Run("setting the same value is not a change", func(t *testing.T) {
		m2 := m1.With().Data(option.Some(1)).Build()
		if !m2.Changes.IsEmpty() {
			t.Errorf("expected no changes, got %v", m2.Changes)
		}
	})

	t.Run("unset equals zero", func(t *testing.T) {
		m2 := m1.With().IsTransient(false).Error(nil).Build()
		if !m2.Changes.IsEmpty() {
			t.Errorf("expected no changes, got %v", m2.Changes)
		}
	})

	t.Run("none differs from some zero", func(t *testing.T) {
		m2 := m1.With().Data(option.Some(0)).Build()
		m3 := m2.With().Data(option.None[int]()).Build()
		if !m3.Changes.Contains(AxisData) {
			t.Error("None after Some(0) should be a data change")
		}
		if !m3.Current.Data().IsNone() {
			t.Errorf("expected None, got %v", m3.Current.Data())
		}
	})

	t.Run("error and progress", func(t *testing.T) {
		boom := errors.New("boom")
		m2 := m1.With().Error(boom).IsTransient(true).Build()
		if got := m2.Changes.Axes(); len(got) != 2 {
			t.Errorf("expected error and progress changes, got %v", got)
		}
		if m2.Current.Error() != boom || !m2.Current.IsTransient() {
			t.Errorf("unexpected entry %v", m2)
		}
		if v, _ := m2.Current.Data().Get(); v != 1 {
			t.Error("data should be kept by the builder")
		}
	})

	t.Run("data detail", func(t *testing.T) {
		m2 := m1.With().DataWithChanges(option.Some(2), "detail").Build()
		detail, ok := m2.Changes.DataDetail()
		if !ok || detail != "detail" {
			t.Errorf("expected data detail, got %v %v", detail, ok)
		}
		m3 := m2.With().DataWithChanges(option.Some(2), "ignored").Build()
		if _, ok := m3.Changes.DataDetail(); ok {
			t.Error("detail should be dropped when data did not change")
		}
	})
}

func TestMerge(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	root := uuid.New()
	tokA := token.NewSequencer(token.KindRefresh, "a", root).Next()
	tokB := token.NewSequencer(token.KindRefresh, "b", root).Next()

	a := Initial(Empty[int]()).With().Data(option.Some(1)).Error(errA).Refresh(token.NewSet(tokA)).Build().Current
	b := Initial(Empty[string]()).With().Data(option.Some("x")).IsTransient(true).Error(errB).Refresh(token.NewSet(tokB)).Selection(SelectIndices(1)).Build().Current

	merged := Merge(a, b)

	if merged.Data().IsSome() {
		t.Error("data must never be inherited")
	}
	if !merged.IsTransient() {
		t.Error("progress should be aggregated with OR")
	}
	if err := merged.Error(); !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("errors should be joined, got %v", err)
	}
	if !merged.Refresh().Contains(tokA) || !merged.Refresh().Contains(tokB) {
		t.Errorf("refresh tokens should be merged, got %v", merged.Refresh().Tokens())
	}
	if !merged.Selection().IsEmpty() {
		t.Error("selection is local only")
	}
}

func TestSelectIndices(t *testing.T) {
	s := SelectIndices(5, 1, 2, 3, 3)
	want := []Range{{Start: 1, Length: 3}, {Start: 5, Length: 1}}
	if !s.Equal(Selection{Ranges: want}) {
		t.Errorf("expected %v, got %v", want, s.Ranges)
	}
	if !s.Contains(2) || s.Contains(4) {
		t.Error("unexpected Contains result")
	}
}

func collect[T any](msgs *[]Message[T]) func(Message[T]) {
	return func(m Message[T]) { *msgs = append(*msgs, m) }
}

func assertChain[T any](t *testing.T, msgs []Message[T]) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].Follows(msgs[i-1]) {
			t.Fatalf("message %d does not follow message %d", i, i-1)
		}
	}
}

func TestManagerUpdate(t *testing.T) {
	var msgs []Message[int]
	m := NewManager(collect(&msgs))

	if !m.Update(func(b *Builder[int]) { b.Data(option.Some(1)) }) {
		t.Fatal("expected publication")
	}
	if m.Update(func(b *Builder[int]) { b.Data(option.Some(1)) }) {
		t.Error("no-op update should not publish")
	}
	m.Update(func(b *Builder[int]) { b.Data(option.Some(2)).Error(errors.New("x")) })

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	assertChain(t, msgs)
	if !msgs[0].Previous.Data().IsUndefined() || len(msgs[0].Previous.Axes()) != 0 {
		t.Error("first message should start from an empty entry")
	}
	if m.Current().Current != msgs[1].Current {
		t.Error("Current should return the last published message")
	}
}

func TestManagerTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("transient then commit", func(t *testing.T) {
		var msgs []Message[int]
		m := NewManager(collect(&msgs))

		tx := m.BeginUpdate(ctx, false)
		tx.TransientUpdate(func(b *Builder[int]) { b.IsTransient(true) })
		tx.Commit(func(b *Builder[int]) { b.Data(option.Some(7)) })
		tx.Dispose()

		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		assertChain(t, msgs)
		if !msgs[0].Current.IsTransient() {
			t.Error("first message should be transient")
		}
		last := msgs[1]
		if last.Current.IsTransient() {
			t.Error("commit should clear the transient layer")
		}
		if !last.Changes.Contains(AxisData) || !last.Changes.Contains(AxisProgress) {
			t.Errorf("expected data and progress changes, got %v", last.Changes)
		}
	})

	t.Run("dispose without commit publishes nothing", func(t *testing.T) {
		var msgs []Message[int]
		m := NewManager(collect(&msgs))

		tx := m.BeginUpdate(ctx, false)
		tx.Dispose()
		if tx.Commit(func(b *Builder[int]) { b.Data(option.Some(1)) }) {
			t.Error("commit after dispose should fail")
		}
		if len(msgs) != 0 {
			t.Errorf("expected no messages, got %d", len(msgs))
		}
	})

	t.Run("superseded transaction is inert", func(t *testing.T) {
		var msgs []Message[int]
		m := NewManager(collect(&msgs))

		old := m.BeginUpdate(ctx, false)
		m.BeginUpdate(ctx, false)
		if old.TransientUpdate(func(b *Builder[int]) { b.IsTransient(true) }) {
			t.Error("superseded transaction should not publish")
		}
		if old.IsActive() {
			t.Error("superseded transaction should not be active")
		}
	})

	t.Run("cancelled context is inert", func(t *testing.T) {
		var msgs []Message[int]
		m := NewManager(collect(&msgs))

		cctx, cancel := context.WithCancel(ctx)
		tx := m.BeginUpdate(cctx, false)
		cancel()
		if tx.Commit(func(b *Builder[int]) { b.Data(option.Some(1)) }) {
			t.Error("commit with cancelled context should fail")
		}
	})

	t.Run("preserve pending axes", func(t *testing.T) {
		var msgs []Message[int]
		m := NewManager(collect(&msgs))

		old := m.BeginUpdate(ctx, false)
		old.TransientUpdate(func(b *Builder[int]) {
			b.IsTransient(true).Pagination(Pagination{IsLoadingMoreItems: true})
		})
		old.Dispose()

		next := m.BeginUpdate(ctx, true)
		if got := m.PendingAxes(); len(got) != 2 {
			t.Errorf("expected pending progress and pagination, got %v", got)
		}
		next.Commit(func(b *Builder[int]) { b.Data(option.Some(1)) })

		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}
		if msgs[1].Current.IsTransient() || msgs[1].Current.Pagination().IsLoadingMoreItems {
			t.Error("commit should clear preserved transient values")
		}

		dropped := m.BeginUpdate(ctx, true)
		dropped.TransientUpdate(func(b *Builder[int]) { b.IsTransient(true) })
		dropped.Dispose()
		m.BeginUpdate(ctx, false)
		if got := m.PendingAxes(); len(got) != 0 {
			t.Errorf("pending axes should be dropped, got %v", got)
		}
	})
}

func TestManagerParent(t *testing.T) {
	var msgs []Message[int]
	m := NewManager(collect(&msgs))
	m.Update(func(b *Builder[int]) { b.Data(option.Some(1)) })

	parent := Initial(Empty[string]()).With().Data(option.Some("p")).IsTransient(true).Build().Current
	if !m.SetParent(parent) {
		t.Fatal("parent progress should publish")
	}
	cur := m.Current()
	if !cur.Current.IsTransient() {
		t.Error("parent progress should flow into the message")
	}
	if v, _ := cur.Current.Data().Get(); v != 1 {
		t.Error("parent data must not leak into the message")
	}

	m.SetParent(nil)
	if m.Current().Current.IsTransient() {
		t.Error("clearing the parent should clear inherited progress")
	}
	assertChain(t, msgs)
}

func TestManagerJoinedErrorsAreStable(t *testing.T) {
	var msgs []Message[int]
	m := NewManager(collect(&msgs))
	local, inherited := errors.New("local"), errors.New("inherited")
	m.Update(func(b *Builder[int]) { b.Data(option.Some(1)).Error(local) })

	parent := Initial(Empty[string]()).With().Error(inherited).Build()
	m.SetParent(parent.Current)
	if err := m.Current().Current.Error(); !errors.Is(err, local) || !errors.Is(err, inherited) {
		t.Fatalf("expected both errors, got %v", err)
	}

	loading := parent.With().IsTransient(true).Build()
	if !m.SetParent(loading.Current) {
		t.Fatal("parent progress should publish")
	}
	got := m.Current().Changes
	if !got.Contains(AxisProgress) {
		t.Error("progress change is missing")
	}
	if got.Contains(AxisError) {
		t.Errorf("errors did not change, got changes %v", got)
	}

	if m.SetParent(loading.Current) {
		t.Error("an identical parent should not publish")
	}

	other := errors.New("other")
	m.SetParent(loading.With().Error(other).Build().Current)
	if !m.Current().Changes.Contains(AxisError) {
		t.Error("a new parent error should change the error axis")
	}
	assertChain(t, msgs)
}
