// Package watch re-executes feeds when files they read change.
//
// A producer declares the files it reads with [Files]:
//
//	config := feed.Dynamic(func(exec *feed.Execution) (option.Option[Settings], error) {
//	    if err := watch.Files(exec, "settings.json"); err != nil {
//	        return option.Undefined[Settings](), err
//	    }
//	    return loadSettings("settings.json")
//	})
//
// Bursts of file events are debounced into a single re-execution.
package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Errors returned by watchers.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// DefaultDebounce is the default quiet period of a watcher.
const DefaultDebounce = 100 * time.Millisecond

// Op is a set of file system operations.
type Op uint32

const (
	// OpCreate indicates a file was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file was removed.
	OpRemove
	// OpRename indicates a file was renamed.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
	{OpChmod, "CHMOD"},
}

// String returns the operations joined with "|".
func (op Op) String() string {
	var names []string
	for _, n := range opNames {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

// Event is the combined operations on one path during a debounce period.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last event before changes
	// are reported. 0 means DefaultDebounce.
	Debounce time.Duration

	// Ops selects the operations reported. 0 means every operation but
	// OpChmod.
	Ops Op
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Ops == 0 {
		o.Ops = OpCreate | OpWrite | OpRemove | OpRename
	}
	return o
}

// Stats reports watcher activity.
type Stats struct {
	WatchedPaths int
	TotalEvents  int64
	TotalBatches int64
	Errors       int64
}

// Watcher reports debounced changes of a set of files and directories.
//
// Files are watched through their parent directory, so that files
// replaced by a rename (as most editors do) are still followed.
type Watcher struct {
	fsw  *fsnotify.Watcher
	opts Options

	onChange func([]Event)
	onError  func(error)

	mu      sync.Mutex
	files   map[string]bool
	trees   map[string]bool
	dirs    map[string]bool
	pending map[string]*Event
	timer   *time.Timer
	closed  bool

	closeCh chan struct{}
	wg      sync.WaitGroup

	totalEvents  atomic.Int64
	totalBatches atomic.Int64
	totalErrors  atomic.Int64
}

// NewWatcher creates a watcher calling onChange with each debounced
// batch of events, sorted by path. onError, if not nil, receives the
// errors of the underlying watcher.
func NewWatcher(opts Options, onChange func([]Event), onError func(error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		opts:     opts.withDefaults(),
		onChange: onChange,
		onError:  onError,
		files:    make(map[string]bool),
		trees:    make(map[string]bool),
		dirs:     make(map[string]bool),
		pending:  make(map[string]*Event),
		closeCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Add watches path. A directory is watched as a whole (not
// recursively); a file is watched even if it does not exist yet, as long
// as its directory exists. Adding a watched path is a no-op.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(abs)
	isDir := false
	if info, err := os.Stat(abs); err == nil {
		isDir = info.IsDir()
	} else if !os.IsNotExist(err) {
		return err
	}
	if isDir {
		dir = abs
	} else if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	if isDir {
		w.trees[abs] = true
	} else {
		w.files[abs] = true
	}
	return nil
}

// Paths returns the watched paths, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.files)+len(w.trees))
	for p := range w.files {
		paths = append(paths, p)
	}
	for p := range w.trees {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Stats returns watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	watched := len(w.files) + len(w.trees)
	w.mu.Unlock()
	return Stats{
		WatchedPaths: watched,
		TotalEvents:  w.totalEvents.Load(),
		TotalBatches: w.totalBatches.Load(),
		Errors:       w.totalErrors.Load(),
	}
}

// Close stops the watcher. Pending events are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]*Event)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.totalErrors.Add(1)
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) handle(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op) & w.opts.Ops
	if op == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.matchLocked(fsEvent.Name) {
		return
	}
	w.totalEvents.Add(1)

	if p, ok := w.pending[fsEvent.Name]; ok {
		p.Op |= op
		p.Timestamp = time.Now()
	} else {
		w.pending[fsEvent.Name] = &Event{Path: fsEvent.Name, Op: op, Timestamp: time.Now()}
	}

	if w.timer == nil {
		w.timer = time.AfterFunc(w.opts.Debounce, w.flush)
	} else {
		w.timer.Reset(w.opts.Debounce)
	}
}

func (w *Watcher) matchLocked(path string) bool {
	return w.files[path] || w.trees[filepath.Dir(path)] || w.trees[path]
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	events := make([]Event, 0, len(w.pending))
	for _, e := range w.pending {
		events = append(events, *e)
	}
	w.pending = make(map[string]*Event)
	w.timer = nil
	w.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	w.totalBatches.Add(1)
	w.onChange(events)
}
