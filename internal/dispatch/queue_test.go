package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueStartStop(t *testing.T) {
	q := NewQueue()

	if err := q.Enqueue(func() {}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning before Start, got %v", err)
	}
	if err := q.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := q.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	if !q.IsRunning() {
		t.Error("queue should be running")
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := q.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning on second Stop, got %v", err)
	}
	if q.TryEnqueue(func() {}) {
		t.Error("TryEnqueue should fail on a stopped queue")
	}
}

func TestQueueOrdering(t *testing.T) {
	q := NewQueue()
	if err := q.Start(); err != nil {
		t.Fatal(err)
	}

	var got []int
	for i := 0; i < 100; i++ {
		if !q.TryEnqueue(func() { got = append(got, i) }) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("item %d ran at position %d", v, i)
		}
	}
	if len(got) != 100 {
		t.Errorf("expected 100 items, got %d", len(got))
	}
	if stats := q.Stats(); stats.Processed != 100 || stats.Enqueued != 100 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(WithQueueSize(1))
	if err := q.Start(); err != nil {
		t.Fatal(err)
	}
	defer q.Stop(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	if err := q.Enqueue(func() { close(started); <-release }); err != nil {
		t.Fatal(err)
	}
	<-started

	if err := q.Enqueue(func() {}); err != nil {
		t.Fatalf("queue should hold one item: %v", err)
	}
	if err := q.Enqueue(func() {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	close(release)

	if q.Stats().Dropped != 1 {
		t.Errorf("expected one dropped item, got %d", q.Stats().Dropped)
	}
}

func TestQueuePanic(t *testing.T) {
	var recovered atomic.Value
	q := NewQueue(WithPanicHandler(func(r any, _ []byte) { recovered.Store(r) }))
	if err := q.Start(); err != nil {
		t.Fatal(err)
	}

	q.TryEnqueue(func() { panic("boom") })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Invoke(ctx, func() {}); err != nil {
		t.Fatalf("queue should survive a panic: %v", err)
	}
	if recovered.Load() != "boom" {
		t.Errorf("expected recovered boom, got %v", recovered.Load())
	}
	if q.Stats().Panicked != 1 {
		t.Errorf("expected one panic, got %d", q.Stats().Panicked)
	}
	_ = q.Stop(context.Background())
}

func TestImmediate(t *testing.T) {
	ran := false
	if !NewImmediate(nil).TryEnqueue(func() { ran = true }) || !ran {
		t.Error("immediate dispatcher should run synchronously")
	}

	var recovered any
	d := NewImmediate(func(r any, _ []byte) { recovered = r })
	d.TryEnqueue(func() { panic("boom") })
	if recovered != "boom" {
		t.Errorf("expected recovered boom, got %v", recovered)
	}
}

func TestLocal(t *testing.T) {
	created := 0
	l := NewLocal(func(d Dispatcher) []string {
		created++
		return []string{"view"}
	})

	a, b := NewImmediate(nil), NewQueue()
	va := l.Value(a)
	if &l.Value(a)[0] != &va[0] {
		t.Error("Value should return the same value for the same dispatcher")
	}
	l.Value(b)
	if created != 2 || l.Len() != 2 {
		t.Errorf("expected 2 values, got created=%d len=%d", created, l.Len())
	}

	var order []Dispatcher
	l.Range(func(d Dispatcher, _ []string) bool {
		order = append(order, d)
		return true
	})
	if len(order) != 2 || order[0] != Dispatcher(a) || order[1] != Dispatcher(b) {
		t.Errorf("unexpected range order: %v", order)
	}

	if _, ok := l.Delete(a); !ok {
		t.Error("Delete should find the value")
	}
	if _, ok := l.Lookup(a); ok {
		t.Error("value should be gone")
	}
}

func TestLocalConcurrent(t *testing.T) {
	var created atomic.Int32
	l := NewLocal(func(Dispatcher) int { return int(created.Add(1)) })
	d := NewImmediate(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Value(d)
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("factory should run once, ran %d times", created.Load())
	}
}
