// Package module keeps an arena of loaded page and component sources and
// enforces the client/server import boundary.
//
// Each file is read once per content hash into a Record carrying its
// directive tag, compiled code and resolved imports. Load validates that no
// "use client" module reaches a "use server" module through its imports
// before handing the record back. Invalidate drops a record together with
// every record that imports it, so edits are retagged on the next Load.
package module

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/vango-dev/pageforge/pkg/compilecache"
	"github.com/vango-dev/pageforge/pkg/directive"
)

const tracerName = "github.com/vango-dev/pageforge/pkg/module"

// DefaultCompileExtensions are the files passed through the compiler.
var DefaultCompileExtensions = []string{".js", ".jsx", ".tsx"}

// Compiler turns module source into loadable code.
type Compiler interface {
	Compile(src string) (string, error)
}

// Options configures a Graph.
type Options struct {
	// Compiler rewrites source before import scanning. Nil leaves source as is.
	Compiler Compiler

	// CodeStore caches compiled output by path and content hash. Optional.
	CodeStore compilecache.Store

	// CacheSalt is mixed into compile cache keys so different compiler
	// settings never share entries.
	CacheSalt string

	// CompileExtensions selects which files are compiled.
	// Defaults to DefaultCompileExtensions.
	CompileExtensions []string

	// ResolveExtensions are tried for extensionless imports. Files with
	// these extensions are also the only ones scanned for imports.
	// Defaults to DefaultResolveExtensions.
	ResolveExtensions []string

	// CheckStale re-hashes a loaded file on every Load and reloads it when
	// the content changed. Use when no watcher drives Invalidate.
	CheckStale bool

	// OnReplace is called after a changed file replaces its record, with
	// the file and every module importing it, sorted.
	OnReplace func(paths []string)

	Logger *slog.Logger
}

// Record is one loaded module. Fields are fixed once the record is
// published; a changed file produces a new Record.
type Record struct {
	Path    string
	Tag     directive.Tag
	Hash    uint64
	Code    string
	Imports []Import

	validated atomic.Bool
}

// Validated reports whether the record's import graph has passed the
// boundary check.
func (r *Record) Validated() bool { return r.validated.Load() }

// Graph is the module arena. It is safe for concurrent use.
type Graph struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
	group  singleflight.Group

	mu        sync.RWMutex
	records   map[string]*Record
	importers map[string]map[string]struct{}
}

// NewGraph creates an empty graph.
func NewGraph(opts Options) *Graph {
	if len(opts.CompileExtensions) == 0 {
		opts.CompileExtensions = DefaultCompileExtensions
	}
	if len(opts.ResolveExtensions) == 0 {
		opts.ResolveExtensions = DefaultResolveExtensions
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		opts:      opts,
		logger:    logger.With("component", "module"),
		tracer:    otel.Tracer(tracerName),
		records:   make(map[string]*Record),
		importers: make(map[string]map[string]struct{}),
	}
}

// Load returns the record for path after making sure it and everything it
// imports is loaded and the client/server boundary holds across its graph.
// A violation returns a *BoundaryError; the offending records stay loaded
// but unvalidated.
func (g *Graph) Load(ctx context.Context, path string) (*Record, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if !g.opts.CheckStale {
		if rec, ok := g.Get(path); ok && rec.Validated() {
			return rec, nil
		}
	}

	ctx, span := g.tracer.Start(ctx, "module.Load",
		trace.WithAttributes(attribute.String("pageforge.module", path)))
	defer span.End()

	rec, err := g.load(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("pageforge.directive", rec.Tag.String()))
	span.SetStatus(codes.Ok, "")
	return rec, nil
}

func (g *Graph) load(ctx context.Context, path string) (*Record, error) {
	c := &collector{
		graph:   g,
		seen:    make(map[string]*Record),
		onStack: make(map[string]bool),
	}
	if err := c.walk(ctx, path); err != nil {
		return nil, err
	}
	if err := g.guard(c.seen, c.order); err != nil {
		return nil, err
	}
	for _, rec := range c.seen {
		rec.validated.Store(true)
	}
	return c.seen[path], nil
}

// collector performs a depth-first walk of one load. Cycles are allowed:
// a module already on the stack is not walked twice.
type collector struct {
	graph   *Graph
	seen    map[string]*Record
	order   []string
	onStack map[string]bool
}

func (c *collector) walk(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := c.seen[path]; ok {
		if c.onStack[path] {
			c.graph.logger.Debug("import cycle", "module", path)
		}
		return nil
	}

	rec, err := c.graph.record(ctx, path)
	if err != nil {
		return err
	}
	c.seen[path] = rec
	c.order = append(c.order, path)

	c.onStack[path] = true
	defer delete(c.onStack, path)
	for _, imp := range rec.Imports {
		if imp.External {
			continue
		}
		if err := c.walk(ctx, imp.Path); err != nil {
			return err
		}
	}
	return nil
}

// guard checks every client record in the load for a path to a server
// record. Records are visited in walk order so the reported violation is
// deterministic.
func (g *Graph) guard(seen map[string]*Record, order []string) error {
	for _, p := range order {
		rec := seen[p]
		if rec.Tag != directive.Client || rec.Validated() {
			continue
		}
		if err := findServer(rec, seen); err != nil {
			g.logger.Warn("boundary violation",
				"client", err.Client, "server", err.Server, "specifier", err.Specifier)
			return err
		}
	}
	return nil
}

// findServer runs a breadth-first search from a client record so the
// reported chain is the shortest one.
func findServer(client *Record, seen map[string]*Record) *BoundaryError {
	parent := map[string]string{client.Path: ""}
	queue := []string{client.Path}

	for len(queue) > 0 {
		cur := seen[queue[0]]
		queue = queue[1:]
		for _, imp := range cur.Imports {
			if imp.External {
				continue
			}
			if _, ok := parent[imp.Path]; ok {
				continue
			}
			parent[imp.Path] = cur.Path
			dep, ok := seen[imp.Path]
			if !ok {
				continue
			}
			if dep.Tag == directive.Server {
				chain := []string{dep.Path}
				for at := cur.Path; at != ""; at = parent[at] {
					chain = append(chain, at)
				}
				slices.Reverse(chain)
				return &BoundaryError{
					Client:    client.Path,
					Server:    dep.Path,
					Importer:  cur.Path,
					Specifier: imp.Specifier,
					Line:      imp.Line,
					Chain:     chain,
				}
			}
			queue = append(queue, imp.Path)
		}
	}
	return nil
}

// record returns the current record for path, parsing it when missing or,
// with CheckStale, when the file content changed.
func (g *Graph) record(ctx context.Context, path string) (*Record, error) {
	existing, ok := g.Get(path)
	if ok && !g.opts.CheckStale {
		return existing, nil
	}

	v, err, _ := g.group.Do(path, func() (any, error) {
		src, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &NotFoundError{Specifier: path}
			}
			return nil, &LoadError{Path: path, Err: err}
		}
		hash := compilecache.ContentHash(src)
		if cur, ok := g.Get(path); ok && cur.Hash == hash {
			return cur, nil
		}
		rec, err := g.parse(ctx, path, src, hash)
		if err != nil {
			return nil, err
		}
		if replaced := g.publish(rec); len(replaced) > 0 && g.opts.OnReplace != nil {
			g.opts.OnReplace(replaced)
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

func (g *Graph) parse(ctx context.Context, path string, src []byte, hash uint64) (*Record, error) {
	rec := &Record{Path: path, Hash: hash, Code: string(src)}
	ext := filepath.Ext(path)
	if !slices.Contains(g.opts.ResolveExtensions, ext) {
		return rec, nil
	}

	rec.Tag = directive.DetectBytes(src)
	if g.opts.Compiler != nil && slices.Contains(g.opts.CompileExtensions, ext) {
		code, err := g.compile(ctx, path, rec.Code, hash)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		rec.Code = code
	}

	// Imports come from the source so reported lines match the file on disk.
	source := string(src)
	for _, found := range scanImports(source) {
		resolved, external, err := g.resolve(path, found.specifier)
		if err != nil {
			return nil, err
		}
		rec.Imports = append(rec.Imports, Import{
			Specifier: found.specifier,
			Path:      resolved,
			External:  external,
			Line:      lineAt(source, found.offset),
		})
	}

	g.logger.Debug("module loaded",
		"path", path, "directive", rec.Tag.String(), "imports", len(rec.Imports))
	return rec, nil
}

func (g *Graph) compile(ctx context.Context, path, src string, hash uint64) (string, error) {
	key := compilecache.Key(path, hash, g.opts.CacheSalt)
	if g.opts.CodeStore != nil {
		if data, err := g.opts.CodeStore.Get(ctx, key); err == nil {
			return string(data), nil
		} else if !errors.Is(err, compilecache.ErrNotFound) {
			g.logger.Warn("compile cache read failed", "path", path, "error", err)
		}
	}

	_, span := g.tracer.Start(ctx, "module.Compile",
		trace.WithAttributes(attribute.String("pageforge.module", path)))
	code, err := g.opts.Compiler.Compile(src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return "", err
	}
	span.End()

	if g.opts.CodeStore != nil {
		if err := g.opts.CodeStore.Put(ctx, key, []byte(code)); err != nil {
			g.logger.Warn("compile cache write failed", "path", path, "error", err)
		}
	}
	return code, nil
}

// publish installs rec, replacing any previous record for its path along
// with that record's outgoing edges. When a record was replaced it returns
// the path and its transitive importers.
func (g *Graph) publish(rec *Record) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var replaced []string
	if old, ok := g.records[rec.Path]; ok {
		g.unlink(old)
		replaced = g.revalidate(rec.Path)
	}
	g.records[rec.Path] = rec
	for _, imp := range rec.Imports {
		if imp.External {
			continue
		}
		set, ok := g.importers[imp.Path]
		if !ok {
			set = make(map[string]struct{})
			g.importers[imp.Path] = set
		}
		set[rec.Path] = struct{}{}
	}
	return replaced
}

// revalidate clears the validated flag on every transitive importer of
// path so their next Load runs the boundary check again. It returns path
// and the importers, sorted. Caller holds g.mu.
func (g *Graph) revalidate(path string) []string {
	visited := map[string]bool{path: true}
	stack := []string{path}
	out := []string{path}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for imp := range g.importers[p] {
			if visited[imp] {
				continue
			}
			visited[imp] = true
			out = append(out, imp)
			if rec, ok := g.records[imp]; ok {
				rec.validated.Store(false)
			}
			stack = append(stack, imp)
		}
	}
	sort.Strings(out)
	return out
}

// unlink removes rec's outgoing edges. Caller holds g.mu.
func (g *Graph) unlink(rec *Record) {
	for _, imp := range rec.Imports {
		if set, ok := g.importers[imp.Path]; ok {
			delete(set, rec.Path)
			if len(set) == 0 {
				delete(g.importers, imp.Path)
			}
		}
	}
}

// Invalidate drops the record for path and, transitively, every record
// that imports it. It returns the dropped paths, sorted. A path with no
// record still cascades to its known importers. A directory covers every
// module beneath it, so a removed or renamed directory drops its contents.
func (g *Graph) Invalidate(path string) []string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	visited := map[string]bool{path: true}
	stack := []string{path}
	prefix := path + string(filepath.Separator)
	for p := range g.records {
		if strings.HasPrefix(p, prefix) && !visited[p] {
			visited[p] = true
			stack = append(stack, p)
		}
	}
	for p := range g.importers {
		if strings.HasPrefix(p, prefix) && !visited[p] {
			visited[p] = true
			stack = append(stack, p)
		}
	}
	var dropped []string
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for imp := range g.importers[p] {
			if !visited[imp] {
				visited[imp] = true
				stack = append(stack, imp)
			}
		}
		if rec, ok := g.records[p]; ok {
			g.unlink(rec)
			delete(g.records, p)
			dropped = append(dropped, p)
		}
	}
	sort.Strings(dropped)
	if len(dropped) > 0 {
		g.logger.Debug("modules invalidated", "path", path, "dropped", len(dropped))
	}
	return dropped
}

// Importers returns the paths of loaded records that import path directly.
func (g *Graph) Importers(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.importers[path]))
	for p := range g.importers[path] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Get returns the current record for an absolute path.
func (g *Graph) Get(path string) (*Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.records[path]
	return rec, ok
}

// Records returns every loaded record sorted by path.
func (g *Graph) Records() []*Record {
	g.mu.RLock()
	out := make([]*Record, 0, len(g.records))
	for _, rec := range g.records {
		out = append(out, rec)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of loaded records.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Clear drops every record.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = make(map[string]*Record)
	g.importers = make(map[string]map[string]struct{})
}

func (r *Record) String() string {
	return fmt.Sprintf("%s [%s] %016x", r.Path, r.Tag, r.Hash)
}
