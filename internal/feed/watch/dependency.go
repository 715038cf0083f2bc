package watch

import (
	"context"
	"strings"
	"sync"

	"github.com/dshills/feedcore/internal/feed"
)

type filesKey struct{}

// Files makes the session of exec re-execute when one of paths changes,
// with the default options.
func Files(exec *feed.Execution, paths ...string) error {
	return FilesWithOptions(exec, Options{}, paths...)
}

// FilesWithOptions makes the session of exec re-execute when one of paths
// changes. The options of the first call of a session apply to every
// later call. Paths stay watched until the session is disposed.
func FilesWithOptions(exec *feed.Execution, opts Options, paths ...string) error {
	owner := exec.Session()
	d := owner.GetOrAddDependency(filesKey{}, func() feed.Dependency {
		return &dependency{owner: owner, opts: opts}
	}).(*dependency)
	return d.add(paths)
}

// dependency is the file watching dependency of one session.
type dependency struct {
	owner feed.Handle
	opts  Options

	mu      sync.Mutex
	watcher *Watcher
	closed  bool
}

func (d *dependency) add(paths []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrWatcherClosed
	}
	if d.watcher == nil {
		w, err := NewWatcher(d.opts, d.changed, d.failed)
		if err != nil {
			return err
		}
		d.watcher = w
	}
	for _, p := range paths {
		if err := d.watcher.Add(p); err != nil {
			return err
		}
	}
	return nil
}

func (d *dependency) changed(events []Event) {
	paths := make([]string, len(events))
	for i, e := range events {
		paths[i] = e.Path
	}
	d.owner.Logger().Debug("files changed: %s", strings.Join(paths, ", "))
	d.owner.Execute(feed.ExecuteRequest{
		Issuer: d,
		Reason: "files changed",
	})
}

func (d *dependency) failed(err error) {
	d.owner.Logger().Warn("file watcher: %v", err)
}

// OnExecuting implements feed.Dependency.
func (d *dependency) OnExecuting(context.Context, *feed.Execution) error {
	return nil
}

// OnExecuted implements feed.Dependency.
func (d *dependency) OnExecuted(context.Context, *feed.Execution, feed.ExecutionResult) error {
	return nil
}

// Close stops watching.
func (d *dependency) Close() error {
	d.mu.Lock()
	w := d.watcher
	d.watcher = nil
	d.closed = true
	d.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}
