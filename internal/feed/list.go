package feed

import (
	"context"
	"slices"
	"sync"

	"github.com/dshills/feedcore/internal/collection/tracking"
	"github.com/dshills/feedcore/internal/message"
	"github.com/dshills/feedcore/internal/option"
	"github.com/dshills/feedcore/internal/stream"
	"github.com/dshills/feedcore/internal/token"
)

// List creates a feed of items. An empty list is published as None, and
// each data change carries the tracking.ChangeSet from the previous list,
// available through Changes.DataDetail.
func List[T any](load func(exec *Execution) ([]T, error), comparer tracking.ItemComparer[T]) Feed[[]T] {
	return newDynamicFeed(func(exec *Execution, _ func(option.Option[[]T]) error) (option.Option[[]T], bool, error) {
		items, err := load(exec)
		if err != nil {
			return option.Undefined[[]T](), false, err
		}
		return option.Some(items), true, nil
	}, listHook(comparer))
}

func listHook[T any](comparer tracking.ItemComparer[T]) func(*SourceContext) dataHook[[]T] {
	return func(sc *SourceContext) dataHook[[]T] {
		analyzer := tracking.NewAnalyzer(comparer,
			tracking.WithResetThreshold(sc.opts.resetThreshold),
			tracking.WithMaxItems(sc.opts.maxDiffItems))
		return func(b *message.Builder[[]T], v option.Option[[]T]) {
			if items, ok := v.Get(); ok && len(items) == 0 {
				v = option.None[[]T]()
			}
			prev, _ := b.CurrentData().Get()
			next, _ := v.Get()
			b.DataWithChanges(v, analyzer.GetChanges(prev, next))
		}
	}
}

// ListChanges returns the change set carried by a message of a list feed.
func ListChanges[T any](msg message.Message[[]T]) (tracking.ChangeSet[T], bool) {
	detail, ok := msg.Changes.DataDetail()
	if !ok {
		return nil, false
	}
	cs, ok := detail.(tracking.ChangeSet[T])
	return cs, ok
}

// PageInfo describes the page to load.
type PageInfo struct {
	// Index is the zero-based index of the page.
	Index uint

	// DesiredSize is the size hint of the page request, 0 if none.
	DesiredSize uint
}

// PaginatedByIndex creates a list feed loading its items page by page.
// The first execution loads page 0; each PageRequest of the context
// appends the next page. Any other request reloads from page 0.
//
// The Pagination axis reports whether more items can be loaded and is
// flagged as loading while a page request is running.
func PaginatedByIndex[T any](getPage func(ctx context.Context, page PageInfo) ([]T, error), comparer tracking.ItemComparer[T]) Feed[[]T] {
	return newDynamicFeed(func(exec *Execution, _ func(option.Option[[]T]) error) (option.Option[[]T], bool, error) {
		owner := exec.Session()
		d, ok := owner.GetOrAddDependency(paginationKey{}, func() Dependency {
			return newPaginationDependency[T](owner)
		}).(*paginationDependency[T])
		if !ok {
			return option.Undefined[[]T](), false, ErrContextDisposed
		}

		plan := d.plan(exec)
		page, err := getPage(exec.Context(), plan.info)
		if err != nil {
			return option.Undefined[[]T](), false, err
		}

		more := len(page) > 0
		if plan.info.DesiredSize > 0 {
			more = uint(len(page)) >= plan.info.DesiredSize
		}
		items := append(slices.Clone(plan.base), page...)
		d.stage(exec, pageResult[T]{items: items, next: plan.info.Index + 1, more: more})

		pagination := message.Pagination{HasMoreItems: more, Tokens: plan.tokens}
		exec.Enqueue(func(s message.AxisSetter) {
			s.Set(message.AxisPagination, message.Set(pagination))
		})
		return option.Some(items), true, nil
	}, listHook(comparer))
}

type paginationKey struct{}

type pageResult[T any] struct {
	items []T
	next  uint
	more  bool
}

type pagePlan[T any] struct {
	base   []T
	info   PageInfo
	tokens token.Set
}

// paginationDependency listens for page requests and keeps the pages
// adopted by successful executions.
type paginationDependency[T any] struct {
	owner  Handle
	seq    *token.Sequencer
	cancel context.CancelFunc

	mu      sync.Mutex
	loaded  pageResult[T]
	started bool
	desired uint
	latest  token.Token
	pending map[*Execution]pageResult[T]
}

func newPaginationDependency[T any](owner Handle) *paginationDependency[T] {
	sc := owner.SourceContext()
	ctx, cancel := context.WithCancel(sc.Context())
	d := &paginationDependency[T]{
		owner:   owner,
		seq:     token.NewSequencer(token.KindPage, owner.ID().String(), sc.RootID()),
		cancel:  cancel,
		pending: make(map[*Execution]pageResult[T]),
	}
	go d.listen(ctx, sc.Requests())
	return d
}

func (d *paginationDependency[T]) listen(ctx context.Context, requests *stream.Subscription[Request]) {
	for {
		req, err := requests.Next(ctx)
		if err != nil {
			return
		}
		pr, ok := req.(PageRequest)
		if !ok {
			continue
		}

		d.mu.Lock()
		if d.started && !d.loaded.more {
			d.mu.Unlock()
			continue
		}
		d.latest = d.seq.Next()
		d.desired = pr.DesiredPageSize
		d.mu.Unlock()

		d.owner.Execute(ExecuteRequest{
			Issuer:     d,
			Reason:     "load more items",
			AsyncAxis:  message.AxisPagination,
			AsyncValue: message.Set(message.Pagination{HasMoreItems: true, IsLoadingMoreItems: true}),
		})
	}
}

// plan decides which page exec loads: the next one if exec was only
// requested by page requests, the first one otherwise.
func (d *paginationDependency[T]) plan(exec *Execution) pagePlan[T] {
	d.mu.Lock()
	defer d.mu.Unlock()

	onlyPages := len(exec.Requests()) > 0
	for _, r := range exec.Requests() {
		if r.Issuer != d {
			onlyPages = false
			break
		}
	}
	if !onlyPages || !d.started {
		return pagePlan[T]{info: PageInfo{Index: 0, DesiredSize: d.desired}}
	}
	return pagePlan[T]{
		base:   d.loaded.items,
		info:   PageInfo{Index: d.loaded.next, DesiredSize: d.desired},
		tokens: token.NewSet(d.latest),
	}
}

func (d *paginationDependency[T]) stage(exec *Execution, r pageResult[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[exec] = r
}

// OnExecuting implements Dependency.
func (d *paginationDependency[T]) OnExecuting(context.Context, *Execution) error {
	return nil
}

// OnExecuted implements Dependency. The pages loaded by exec become the
// base of the next page request only if exec succeeded.
func (d *paginationDependency[T]) OnExecuted(_ context.Context, exec *Execution, result ExecutionResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.pending[exec]
	delete(d.pending, exec)
	if ok && result == Success {
		d.loaded = r
		d.started = true
	}
	return nil
}

// Close stops listening for requests.
func (d *paginationDependency[T]) Close() error {
	d.cancel()
	return nil
}
