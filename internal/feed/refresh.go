package feed

import (
	"context"
	"sync"

	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/stream"
	"github.com/dshills/feedcore/internal/token"
)

type refreshKey struct{}

// refreshDependency re-executes its session on each RefreshRequest of
// the context and delivers the refresh token with the resulting message.
type refreshDependency struct {
	owner  Handle
	seq    *token.Sequencer
	cancel context.CancelFunc

	mu     sync.Mutex
	latest token.Token
}

func newRefreshDependency(owner Handle) *refreshDependency {
	sc := owner.SourceContext()
	ctx, cancel := context.WithCancel(sc.Context())
	d := &refreshDependency{
		owner:  owner,
		seq:    token.NewSequencer(token.KindRefresh, owner.ID().String(), sc.RootID()),
		cancel: cancel,
	}
	go d.listen(ctx, sc.Requests())
	return d
}

func (d *refreshDependency) listen(ctx context.Context, requests *stream.Subscription[Request]) {
	for {
		req, err := requests.Next(ctx)
		if err != nil {
			return
		}
		if _, ok := req.(RefreshRequest); !ok {
			continue
		}
		d.mu.Lock()
		d.latest = d.seq.Next()
		d.mu.Unlock()
		d.owner.Execute(ExecuteRequest{Issuer: d, Reason: "refresh"})
	}
}

// OnExecuting implements Dependency.
func (d *refreshDependency) OnExecuting(_ context.Context, exec *Execution) error {
	if !exec.HasRequestFrom(d) {
		return nil
	}
	d.mu.Lock()
	tok := d.latest
	d.mu.Unlock()
	exec.Enqueue(func(s message.AxisSetter) {
		s.Set(message.AxisRefresh, message.Set(token.NewSet(tok)))
	})
	return nil
}

// OnExecuted implements Dependency.
func (d *refreshDependency) OnExecuted(context.Context, *Execution, ExecutionResult) error {
	return nil
}

// Close stops listening for requests.
func (d *refreshDependency) Close() error {
	d.cancel()
	return nil
}
