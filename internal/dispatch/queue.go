package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Queue is a Dispatcher running work items one at a time, in order, on a
// dedicated goroutine. It plays the role of a UI thread: state confined
// to a Queue is only touched by its worker.
type Queue struct {
	name      string
	queueSize int

	mu      sync.RWMutex // guards queue and running against Stop
	queue   chan func()
	running atomic.Bool
	done    chan struct{}

	panicHandler PanicHandler

	enqueued    atomic.Uint64
	processed   atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueSize sets the capacity of the work queue.
func WithQueueSize(size int) QueueOption {
	return func(q *Queue) {
		if size > 0 {
			q.queueSize = size
		}
	}
}

// WithName names the queue, mostly for logs.
func WithName(name string) QueueOption {
	return func(q *Queue) {
		q.name = name
	}
}

// WithPanicHandler sets the handler of panicking work items.
func WithPanicHandler(h PanicHandler) QueueOption {
	return func(q *Queue) {
		q.panicHandler = h
	}
}

// NewQueue creates a stopped queue dispatcher.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		name:      "queue",
		queueSize: 1024,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// Start starts the worker goroutine.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running.Load() {
		return ErrAlreadyRunning
	}

	q.queue = make(chan func(), q.queueSize)
	q.done = make(chan struct{})
	q.running.Store(true)
	go q.worker(q.queue, q.done)
	return nil
}

// Stop stops accepting work and waits for queued items to run, or for
// ctx to be done.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running.Load() {
		q.mu.Unlock()
		return ErrNotRunning
	}
	q.running.Store(false)
	close(q.queue)
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules fn. It returns ErrNotRunning or ErrQueueFull when fn
// was not accepted.
func (q *Queue) Enqueue(fn func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running.Load() {
		return ErrNotRunning
	}

	select {
	case q.queue <- fn:
		q.enqueued.Add(1)
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// TryEnqueue implements Dispatcher.
func (q *Queue) TryEnqueue(fn func()) bool {
	return q.Enqueue(fn) == nil
}

// Invoke runs fn on the queue and waits for it to return.
func (q *Queue) Invoke(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if err := q.Enqueue(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker(queue <-chan func(), done chan<- struct{}) {
	defer close(done)
	for fn := range queue {
		q.run(fn)
	}
}

func (q *Queue) run(fn func()) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			q.panicked.Add(1)
			if q.panicHandler != nil {
				stack := debug.Stack()
				func() {
					defer func() { _ = recover() }()
					q.panicHandler(r, stack)
				}()
			}
		}
		q.processed.Add(1)
		q.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()
	fn()
}

// IsRunning reports whether the queue accepts work.
func (q *Queue) IsRunning() bool {
	return q.running.Load()
}

// QueueDepth returns the number of items waiting to run.
func (q *Queue) QueueDepth() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running.Load() {
		return 0
	}
	return len(q.queue)
}

// Stats returns queue statistics.
func (q *Queue) Stats() QueueStats {
	processed := q.processed.Load()
	totalNs := q.totalTimeNs.Load()

	var avgNs int64
	if processed > 0 {
		avgNs = totalNs / int64(processed)
	}

	return QueueStats{
		Enqueued:      q.enqueued.Load(),
		Processed:     processed,
		Panicked:      q.panicked.Load(),
		Dropped:       q.dropped.Load(),
		QueueDepth:    q.QueueDepth(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// QueueStats contains statistics of a Queue.
type QueueStats struct {
	Enqueued      uint64
	Processed     uint64
	Panicked      uint64
	Dropped       uint64
	QueueDepth    int
	TotalDuration time.Duration
	AvgDuration   time.Duration
}
