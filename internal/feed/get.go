package feed

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/stream"
)

type parentKey struct {
	feed any
}

// Get returns the data of parent in the context of exec, waiting for its
// first non-transient message. The session of exec then depends on
// parent: its inherited axes (error, progress, refresh) flow into the
// session messages, and a change of the parent data re-executes the
// session.
//
// The returned error is only set when the wait was interrupted; errors of
// the parent are reported through the Error axis.
func Get[P any](exec *Execution, parent Feed[P]) (option.Option[P], error) {
	owner := exec.Session()
	d := owner.GetOrAddDependency(parentKey{feed: parent}, func() Dependency {
		return newParentDependency(owner, parent)
	})
	pd, ok := d.(*parentDependency[P])
	if !ok {
		return option.Undefined[P](), errors.New("feed: parent registered with another type")
	}
	return pd.await(exec.Context())
}

type parentDependency[P any] struct {
	owner  Handle
	cancel context.CancelFunc
	ready  chan struct{}
	once   sync.Once

	mu       sync.Mutex
	latest   *message.Entry[P]
	consumed bool
	err      error
}

func newParentDependency[P any](owner Handle, parent Feed[P]) *parentDependency[P] {
	sc := owner.SourceContext()
	ctx, cancel := context.WithCancel(sc.Context())
	d := &parentDependency[P]{
		owner:  owner,
		cancel: cancel,
		ready:  make(chan struct{}),
	}
	seq, err := parent.Messages(sc)
	if err != nil {
		d.fail(err)
		return d
	}
	go d.listen(ctx, seq)
	return d
}

func (d *parentDependency[P]) listen(ctx context.Context, seq stream.Sequence[message.Message[P]]) {
	for {
		msg, err := seq.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				d.owner.Logger().Warn("parent feed failed: %v", err)
			}
			d.fail(err)
			return
		}

		d.owner.UpdateParent(d, msg.Current)

		d.mu.Lock()
		d.latest = msg.Current
		reexecute := d.consumed && msg.Changes.Contains(message.AxisData)
		d.mu.Unlock()

		if !msg.Current.IsTransient() {
			d.once.Do(func() { close(d.ready) })
		}
		if reexecute {
			d.owner.Execute(ExecuteRequest{Issuer: d, Reason: "parent data changed"})
		}
	}
}

func (d *parentDependency[P]) fail(err error) {
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	d.mu.Unlock()
	d.once.Do(func() { close(d.ready) })
}

func (d *parentDependency[P]) await(ctx context.Context) (option.Option[P], error) {
	select {
	case <-d.ready:
	case <-ctx.Done():
		return option.Undefined[P](), ctx.Err()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumed = true
	if d.latest == nil {
		return option.Undefined[P](), d.err
	}
	return d.latest.Data(), nil
}

// OnExecuting implements Dependency.
func (d *parentDependency[P]) OnExecuting(context.Context, *Execution) error {
	return nil
}

// OnExecuted implements Dependency.
func (d *parentDependency[P]) OnExecuted(context.Context, *Execution, ExecutionResult) error {
	return nil
}

// Close stops following the parent.
func (d *parentDependency[P]) Close() error {
	d.cancel()
	return nil
}
