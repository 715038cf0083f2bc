package bindable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/feedcore/internal/collection/tracking"
	"github.com/dshills/feedcore/internal/dispatch"
	"github.com/dshills/feedcore/internal/feed"
	"github.com/dshills/feedcore/internal/metrics"
	"github.com/dshills/feedcore/internal/option"
)

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCollectionViews(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New("test", reg)
	if err != nil {
		t.Fatal(err)
	}
	sc := feed.NewSourceContext(context.Background(), feed.WithMetrics(m))
	defer sc.Dispose()

	state, err := feed.NewState(sc, option.Some([]string{"a", "b"}))
	if err != nil {
		t.Fatal(err)
	}
	source := feed.List(func(exec *feed.Execution) ([]string, error) {
		v, err := feed.Get(exec, state)
		if err != nil {
			return nil, err
		}
		return v.OrElse(nil), nil
	}, tracking.Equality[string]())

	c, err := New(sc, source)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	queue := dispatch.NewQueue(dispatch.WithName("ui"))
	if err := queue.Start(); err != nil {
		t.Fatal(err)
	}
	defer queue.Stop(context.Background())

	eventually(t, func() bool { return len(c.Items()) == 2 })

	immediate := dispatch.NewImmediate(nil)
	fast := c.View(immediate)
	slow := c.View(queue)
	if c.View(queue) != slow {
		t.Error("a dispatcher should have a single view")
	}

	var mu sync.Mutex
	var seen []tracking.ChangeSet[string]
	unsubscribe := slow.Subscribe(func(cs tracking.ChangeSet[string]) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, cs)
	})
	defer unsubscribe()

	if err := state.Set(context.Background(), []string{"b", "c", "a"}); err != nil {
		t.Fatal(err)
	}

	want := []string{"b", "c", "a"}
	eventually(t, func() bool { return cmp.Equal(want, slow.Items()) })
	if diff := cmp.Diff(want, fast.Items()); diff != "" {
		t.Errorf("immediate view mismatch (-want +got):\n%s", diff)
	}

	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	})
	mu.Lock()
	if len(seen) != 1 || seen[0].IsReset() {
		t.Errorf("expected one granular change set, got %v", seen)
	}
	mu.Unlock()

	if n, err := testutil.GatherAndCount(reg, "test_collection_changes_total"); err != nil || n == 0 {
		t.Errorf("expected collection changes to be counted, got %d series (%v)", n, err)
	}

	t.Run("late view starts from the current items", func(t *testing.T) {
		late := c.View(dispatch.NewImmediate(nil))
		if diff := cmp.Diff(want, late.Items()); diff != "" {
			t.Errorf("late view mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestViewResetsAfterRejectedUpdate(t *testing.T) {
	sc := feed.NewSourceContext(context.Background())
	defer sc.Dispose()

	state, err := feed.NewState(sc, option.Some([]string{"a", "b"}))
	if err != nil {
		t.Fatal(err)
	}
	source := feed.List(func(exec *feed.Execution) ([]string, error) {
		v, err := feed.Get(exec, state)
		if err != nil {
			return nil, err
		}
		return v.OrElse(nil), nil
	}, tracking.Equality[string]())

	c, err := New(sc, source)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	eventually(t, func() bool { return len(c.Items()) == 2 })

	queue := dispatch.NewQueue(dispatch.WithQueueSize(1))
	if err := queue.Start(); err != nil {
		t.Fatal(err)
	}
	defer queue.Stop(context.Background())

	// Occupy the worker, then the single slot, so that updates are rejected.
	release := make(chan struct{})
	if err := queue.Enqueue(func() { <-release }); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return queue.QueueDepth() == 0 })
	if err := queue.Enqueue(func() {}); err != nil {
		t.Fatal(err)
	}

	view := c.View(queue)
	var mu sync.Mutex
	var seen []tracking.ChangeSet[string]
	unsubscribe := view.Subscribe(func(cs tracking.ChangeSet[string]) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, cs)
	})
	defer unsubscribe()

	if err := state.Set(context.Background(), []string{"a", "x", "b"}); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return queue.Stats().Dropped > 0 })

	close(release)
	eventually(t, func() bool { return queue.QueueDepth() == 0 })
	if c.View(queue) != view {
		t.Fatal("a rejected update should not replace the view")
	}

	want := []string{"x", "b", "y"}
	if err := state.Set(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return cmp.Equal(want, view.Items()) })

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 || !seen[0].IsReset() {
		t.Fatalf("expected the view to reset first, got %v", seen)
	}
	if diff := cmp.Diff([]string{"a", "b"}, seen[0][0].OldItems); diff != "" {
		t.Errorf("reset should start from the stale items (-want +got):\n%s", diff)
	}
}

func TestCollectionStatus(t *testing.T) {
	sc := feed.NewSourceContext(context.Background())
	release := make(chan struct{})
	source := feed.List(func(exec *feed.Execution) ([]int, error) {
		select {
		case <-release:
		case <-exec.Context().Done():
			return nil, exec.Context().Err()
		}
		return []int{1}, nil
	}, tracking.Equality[int]())

	c, err := New(sc, source)
	if err != nil {
		t.Fatal(err)
	}
	view := c.View(dispatch.NewImmediate(nil))
	eventually(t, func() bool { return view.Status().Loading })

	close(release)
	eventually(t, func() bool { return !view.Status().Loading && view.Len() == 1 })

	sc.Dispose()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("collection should stop with its context")
	}
	if c.Err() != nil {
		t.Errorf("disposal is not an error: %v", c.Err())
	}
}
