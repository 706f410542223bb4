// Package engine wires the route matcher, module graph, caches and watcher
// into one object owned by a server instance.
//
// Nothing here is global: two engines over different pages directories can
// run side by side in one process.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pageforge/pkg/cache"
	"github.com/vango-dev/pageforge/pkg/compilecache"
	"github.com/vango-dev/pageforge/pkg/jsx"
	"github.com/vango-dev/pageforge/pkg/module"
	"github.com/vango-dev/pageforge/pkg/router"
	"github.com/vango-dev/pageforge/pkg/watch"
)

const tracerName = "github.com/vango-dev/pageforge/pkg/engine"

// Defaults for cache capacities.
const (
	DefaultRenderCapacity      = 512
	DefaultIncrementalCapacity = 1024
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine: closed")

// Options configures an Engine.
type Options struct {
	// PagesDir is the pages root. Required.
	PagesDir string

	// Extensions are the recognized page file extensions.
	// Defaults to router.DefaultExtensions.
	Extensions []string

	RenderCapacity      int
	IncrementalCapacity int

	// CoalesceRegeneration runs at most one regeneration per stale key at a
	// time. Off by default: concurrent readers of a stale key each
	// regenerate and the last write wins.
	CoalesceRegeneration bool

	// Compiler transforms page sources. Nil uses the JSX compiler with
	// default options unless DisableCompile is set.
	Compiler       module.Compiler
	DisableCompile bool

	// CodeStore caches compiled output. Optional.
	CodeStore compilecache.Store
	CacheSalt string

	// Runner executes page logic. Required by Serve.
	Runner PageRunner

	// WatchRoot is the directory watched by Watch. Defaults to PagesDir.
	// Point it at the project root to pick up component edits outside the
	// pages tree.
	WatchRoot string
	Watch     watch.Options

	// RescanEachRequest rebuilds the route table and clears the render
	// cache before every Serve. For development without a watcher. It
	// implies CheckStale.
	RescanEachRequest bool

	// CheckStale makes the module graph re-hash files on every load. A file
	// whose content changed is reloaded, and its incremental entries and
	// those of its importers are dropped.
	CheckStale bool

	Metrics Metrics
	Clock   cache.Clock
	Logger  *slog.Logger
}

// Engine is the composition root.
type Engine struct {
	opts    Options
	logger  *slog.Logger
	metrics Metrics
	tracer  trace.Tracer

	matcher     *router.Matcher
	graph       *module.Graph
	render      *cache.LRU
	incremental *cache.Incremental

	mu        sync.Mutex
	closed    bool
	session   *watchSession
	observers []func(Invalidation)
}

// New builds the route table and empty caches.
func New(opts Options) (*Engine, error) {
	if opts.PagesDir == "" {
		return nil, errors.New("engine: PagesDir is required")
	}
	pages, err := filepath.Abs(opts.PagesDir)
	if err != nil {
		return nil, err
	}
	opts.PagesDir = pages
	if opts.WatchRoot == "" {
		opts.WatchRoot = pages
	}
	if opts.RenderCapacity <= 0 {
		opts.RenderCapacity = DefaultRenderCapacity
	}
	if opts.IncrementalCapacity <= 0 {
		opts.IncrementalCapacity = DefaultIncrementalCapacity
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock
	}
	if opts.RescanEachRequest {
		opts.CheckStale = true
	}
	if opts.Compiler == nil && !opts.DisableCompile {
		opts.Compiler = jsx.New(jsx.DefaultOptions())
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	e := &Engine{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		tracer:  otel.Tracer(tracerName),
	}

	start := time.Now()
	e.matcher, err = router.NewMatcher(pages, router.BuildOptions{
		Extensions: opts.Extensions,
		Logger:     logger,
	})
	e.metrics.Rescan(routeCount(e.matcher), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	e.render, err = cache.NewLRU(opts.RenderCapacity,
		cache.WithName("render"), cache.WithMetrics(opts.Metrics))
	if err != nil {
		return nil, err
	}
	e.incremental, err = cache.NewIncremental(opts.IncrementalCapacity,
		cache.WithName("incremental"),
		cache.WithMetrics(opts.Metrics),
		cache.WithClock(opts.Clock),
		cache.WithCoalescing(opts.CoalesceRegeneration))
	if err != nil {
		return nil, err
	}

	var compiler module.Compiler
	if !opts.DisableCompile {
		compiler = opts.Compiler
	}
	e.graph = module.NewGraph(module.Options{
		Compiler:   compiler,
		CodeStore:  opts.CodeStore,
		CacheSalt:  opts.CacheSalt,
		CheckStale: opts.CheckStale,
		OnReplace:  e.moduleReplaced,
		Logger:     logger,
	})

	logger.Info("engine ready", "pages", pages, "routes", e.matcher.Table().Len())
	return e, nil
}

// moduleReplaced drops incremental output built from modules whose source
// changed since they were loaded.
func (e *Engine) moduleReplaced(paths []string) {
	n := 0
	for _, p := range paths {
		n += e.incremental.InvalidateModule(p)
	}
	e.logger.Debug("modules changed on disk", "modules", len(paths), "incremental_cleared", n)
}

func routeCount(m *router.Matcher) int {
	if m == nil {
		return 0
	}
	return m.Table().Len()
}

// PagesDir returns the absolute pages root.
func (e *Engine) PagesDir() string { return e.opts.PagesDir }

// Routes returns the current route table snapshot.
func (e *Engine) Routes() *router.Table { return e.matcher.Table() }

// Graph returns the module graph.
func (e *Engine) Graph() *module.Graph { return e.graph }

// RenderCache returns the render cache.
func (e *Engine) RenderCache() *cache.LRU { return e.render }

// IncrementalCache returns the incremental cache.
func (e *Engine) IncrementalCache() *cache.Incremental { return e.incremental }

// Match resolves a request path against the current route table.
func (e *Engine) Match(path string) (router.Match, bool) {
	m, ok := e.matcher.Match(path)
	e.metrics.Match(ok)
	return m, ok
}

// Rescan rebuilds the route table and swaps it in. On error the previous
// table keeps serving.
func (e *Engine) Rescan() error {
	start := time.Now()
	t, err := e.matcher.Rescan()
	n := 0
	if t != nil {
		n = t.Len()
	}
	e.metrics.Rescan(n, time.Since(start), err)
	if err != nil {
		e.logger.Error("rescan failed", "error", err)
		return err
	}
	return nil
}

// InvalidateModule drops every incremental cache entry produced by the
// module at path and returns how many were removed.
func (e *Engine) InvalidateModule(path string) int {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return e.incremental.InvalidateModule(path)
}

// Clear empties both caches and the module index.
func (e *Engine) Clear() {
	r := e.render.Clear()
	i := e.incremental.Clear()
	e.logger.Info("caches cleared", "render", r, "incremental", i)
}

// CheckResult is the outcome of loading one page in Check.
type CheckResult struct {
	Route *router.Entry
	Err   error
}

// Check loads every routed page through the module graph and reports
// boundary violations, compile errors and missing imports per page.
func (e *Engine) Check(ctx context.Context) []CheckResult {
	routes := e.matcher.Table().Routes()
	out := make([]CheckResult, 0, len(routes))
	for _, r := range routes {
		_, err := e.graph.Load(ctx, r.FilePath)
		out = append(out, CheckResult{Route: r, Err: err})
	}
	return out
}

// Close stops the watcher and the invalidation task.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	s := e.session
	e.session = nil
	e.mu.Unlock()

	if s == nil {
		return nil
	}
	err := s.halt()
	<-s.done
	return err
}
