package engine

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/pageforge/pkg/router"
	"github.com/vango-dev/pageforge/pkg/watch"
)

// eventBuffer bounds the channel between the watcher and the invalidation
// task. The watcher queues on its side, so a full buffer only delays
// delivery.
const eventBuffer = 256

// Invalidation describes the work done for one change.
type Invalidation struct {
	Path string
	Op   watch.Op
	At   time.Time

	// Modules lists the module records dropped from the graph: the changed
	// file and every module importing it.
	Modules []string

	RenderCleared      int
	IncrementalCleared int

	// Rescanned is true when the change added or removed a page.
	Rescanned bool
	Err       error
}

// OnInvalidate registers fn to be called after each change is handled.
// Observers run on the invalidation task and should return quickly.
func (e *Engine) OnInvalidate(fn func(Invalidation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// watchSession is one Watch call: the watcher and the task draining it.
type watchSession struct {
	w    *watch.Watcher
	stop chan struct{}
	done chan struct{}

	once sync.Once
	err  error
}

// halt stops the watcher. Closing stop first unblocks a watcher handler
// waiting to send.
func (s *watchSession) halt() error {
	s.once.Do(func() {
		close(s.stop)
		s.err = s.w.Stop()
	})
	return s.err
}

// Watch starts the filesystem watcher and the invalidation task. Events
// flow from the watcher over a channel to the task. When ctx is done the
// task stops the watcher and Watch may be called again; Close stops both.
// Calling Watch while a watcher runs is an error.
func (e *Engine) Watch(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.session != nil {
		return errors.New("engine: already watching")
	}

	events := make(chan watch.Event, eventBuffer)
	s := &watchSession{stop: make(chan struct{}), done: make(chan struct{})}
	opts := e.opts.Watch
	opts.Recursive = true
	if opts.Logger == nil {
		opts.Logger = e.logger
	}

	w, err := watch.Start(e.opts.WatchRoot, func(ev watch.Event) {
		select {
		case events <- ev:
		case <-s.stop:
		}
	}, opts)
	if err != nil {
		return err
	}

	s.w = w
	e.session = s
	go e.invalidationTask(ctx, events, s)
	return nil
}

func (e *Engine) invalidationTask(ctx context.Context, events <-chan watch.Event, s *watchSession) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			if err := s.halt(); err != nil {
				e.logger.Warn("stop watcher", "error", err)
			}
			e.mu.Lock()
			if e.session == s {
				e.session = nil
			}
			e.mu.Unlock()
			return
		case <-s.stop:
			return
		case ev := <-events:
			e.HandleChange(ev)
		}
	}
}

// HandleChange applies one filesystem change: the render cache is cleared
// wholesale, the changed module and its importers are dropped from the
// graph, their incremental entries are invalidated, and the route table is
// rebuilt when a page appeared or disappeared. A directory path covers
// every module beneath it.
func (e *Engine) HandleChange(ev watch.Event) Invalidation {
	e.metrics.WatchEvent(ev.Op.String())
	path := ev.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	inv := Invalidation{Path: path, Op: ev.Op, At: ev.Time}
	inv.RenderCleared = e.render.Clear()

	inv.Modules = e.graph.Invalidate(path)
	if !slices.Contains(inv.Modules, path) {
		inv.Modules = append(inv.Modules, path)
	}
	// The cache indexes modules on its own; match directories there too.
	prefix := path + string(filepath.Separator)
	for _, m := range e.incremental.Modules() {
		if strings.HasPrefix(m, prefix) && !slices.Contains(inv.Modules, m) {
			inv.Modules = append(inv.Modules, m)
		}
	}
	for _, m := range inv.Modules {
		inv.IncrementalCleared += e.incremental.InvalidateModule(m)
	}

	if e.affectsRoutes(path, ev.Op) {
		inv.Err = e.Rescan()
		inv.Rescanned = inv.Err == nil
	}

	e.logger.Debug("change handled",
		"path", path,
		"op", ev.Op.String(),
		"modules", len(inv.Modules),
		"render_cleared", inv.RenderCleared,
		"incremental_cleared", inv.IncrementalCleared,
		"rescanned", inv.Rescanned)

	e.mu.Lock()
	observers := slices.Clone(e.observers)
	e.mu.Unlock()
	for _, fn := range observers {
		fn(inv)
	}
	return inv
}

// affectsRoutes reports whether a change under the pages root can change
// the route table: a page or directory was created, removed or renamed.
func (e *Engine) affectsRoutes(path string, op watch.Op) bool {
	if op&(watch.Create|watch.Remove|watch.Rename) == 0 {
		return false
	}
	rel, err := filepath.Rel(e.opts.PagesDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return true
	}
	exts := e.opts.Extensions
	if len(exts) == 0 {
		exts = router.DefaultExtensions
	}
	return slices.Contains(exts, ext)
}
