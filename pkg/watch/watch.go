// Package watch reports filesystem changes under a directory.
//
// Raw notifications from the backend are coalesced per path over a short
// debounce window and queued; a single dispatcher drains the queue into the
// handler so a slow handler never stalls the backend.
//
//	w, err := watch.Start("pages", func(ev watch.Event) {
//	    log.Println(ev.Op, ev.Path)
//	}, watch.Options{Recursive: true})
//	defer w.Stop()
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Op is a set of change kinds.
type Op uint8

const (
	Create Op = 1 << iota
	Write
	Remove
	Rename
)

func (op Op) String() string {
	var parts []string
	if op&Create != 0 {
		parts = append(parts, "CREATE")
	}
	if op&Write != 0 {
		parts = append(parts, "WRITE")
	}
	if op&Remove != 0 {
		parts = append(parts, "REMOVE")
	}
	if op&Rename != 0 {
		parts = append(parts, "RENAME")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Has reports whether op includes every bit of other.
func (op Op) Has(other Op) bool { return op&other == other }

// Event is one coalesced change.
type Event struct {
	// Path is absolute.
	Path string
	// Op merges every change seen for Path during the debounce window.
	Op Op
	// Time is when the first change of the window was observed.
	Time time.Time
}

// Handler receives events. It must not call Stop.
type Handler func(Event)

// Backend selects how changes are detected.
type Backend string

const (
	// BackendNotify uses OS notifications through fsnotify.
	BackendNotify Backend = "fsnotify"
	// BackendPoll rescans the tree on an interval and compares mtimes.
	BackendPoll Backend = "poll"
)

// DefaultDebounce is the coalescing window.
const DefaultDebounce = 50 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Recursive watches subdirectories, including ones created later.
	Recursive bool

	// Debounce is the per-path coalescing window. Defaults to DefaultDebounce.
	Debounce time.Duration

	// Backend defaults to BackendNotify.
	Backend Backend

	// PollInterval is used by BackendPoll. Defaults to 100ms.
	PollInterval time.Duration

	// Ignore lists patterns matched against paths relative to the root.
	// Nil means DefaultIgnore; an empty non-nil slice ignores nothing.
	Ignore []string

	Logger *slog.Logger
}

// ErrUnknownBackend is returned by Start for an unrecognized backend.
var ErrUnknownBackend = errors.New("watch: unknown backend")

// backend delivers raw changes through emit until close is called.
type backend interface {
	run(emit func(path string, op Op))
	close() error
}

type pending struct {
	op    Op
	first time.Time
	timer *time.Timer
}

// Watcher watches one root directory.
type Watcher struct {
	root    string
	opts    Options
	handler Handler
	logger  *slog.Logger
	backend backend

	mu      sync.Mutex
	pending map[string]*pending
	queue   []Event

	wake     chan struct{}
	done     chan struct{}
	stopped  atomic.Bool
	callMu   sync.RWMutex
	stopOnce sync.Once
	stopErr  error
	wg       sync.WaitGroup
}

// Start begins watching root, creating it when missing.
func Start(root string, handler Handler, opts Options) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch: nil handler")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("watch: create root: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore
	}
	if opts.Backend == "" {
		opts.Backend = BackendNotify
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		root:    abs,
		opts:    opts,
		handler: handler,
		logger:  logger.With("component", "watch", "root", abs),
		pending: make(map[string]*pending),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	switch opts.Backend {
	case BackendNotify:
		w.backend, err = newNotifyBackend(w)
	case BackendPoll:
		w.backend = newPollBackend(w)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.backend.run(w.observe)
	}()
	go func() {
		defer w.wg.Done()
		w.dispatch()
	}()

	w.logger.Info("watcher started", "backend", string(opts.Backend), "recursive", opts.Recursive)
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string { return w.root }

// Stop releases the backend and waits for an in-flight handler call to
// return. No handler call starts after Stop returns. Stop is idempotent.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		close(w.done)
		w.stopErr = w.backend.close()

		w.mu.Lock()
		for _, p := range w.pending {
			p.timer.Stop()
		}
		w.pending = make(map[string]*pending)
		w.queue = nil
		w.mu.Unlock()

		w.callMu.Lock()
		w.callMu.Unlock()
		w.wg.Wait()
		w.logger.Info("watcher stopped")
	})
	return w.stopErr
}

// observe records a raw change and (re)arms the path's debounce timer.
func (w *Watcher) observe(path string, op Op) {
	if w.stopped.Load() || w.ignored(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped.Load() {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.op |= op
		p.timer.Reset(w.opts.Debounce)
		return
	}
	w.pending[path] = &pending{
		op:    op,
		first: time.Now(),
		timer: time.AfterFunc(w.opts.Debounce, func() { w.flush(path) }),
	}
}

// flush moves a settled path from pending to the dispatch queue.
func (w *Watcher) flush(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok || w.stopped.Load() {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.queue = append(w.queue, Event{Path: path, Op: p.op, Time: p.first})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) dispatch() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}
		for {
			ev, ok := w.pop()
			if !ok {
				break
			}
			w.call(ev)
		}
	}
}

func (w *Watcher) pop() (Event, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return Event{}, false
	}
	ev := w.queue[0]
	w.queue = w.queue[1:]
	return ev, true
}

func (w *Watcher) call(ev Event) {
	w.callMu.RLock()
	defer w.callMu.RUnlock()
	if w.stopped.Load() {
		return
	}
	w.logger.Debug("change", "path", ev.Path, "op", ev.Op.String())
	w.handler(ev)
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	return shouldIgnore(w.opts.Ignore, rel)
}
