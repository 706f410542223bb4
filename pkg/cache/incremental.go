package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// SystemClock is the wall clock.
var SystemClock Clock = time.Now

// WithClock sets the clock used for freshness checks.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithCoalescing makes concurrent regenerations of the same key share one
// run of the generator. Without it, concurrent readers of a stale key each
// regenerate and the last write wins.
func WithCoalescing(enabled bool) Option {
	return func(o *options) { o.coalesce = enabled }
}

// Entry is a snapshot of one incremental cache entry.
type Entry struct {
	Module      string
	Key         string
	Value       string
	GeneratedAt time.Time

	// TTL is the revalidation interval. Zero means the entry never goes
	// stale and lives until evicted or invalidated.
	TTL time.Duration
}

// Fresh reports whether the entry may be served at now.
func (e Entry) Fresh(now time.Time) bool {
	return e.TTL <= 0 || now.Sub(e.GeneratedAt) < e.TTL
}

// Generated is what a Generator produces.
type Generated struct {
	Value string
	TTL   time.Duration
}

// Generator runs page logic to produce a fresh value for one key.
type Generator func(ctx context.Context) (Generated, error)

// Status describes how a GetOrRegenerate call was served.
type Status uint8

const (
	// StatusHit means a fresh entry was served without running page logic.
	StatusHit Status = iota
	// StatusMiss means no entry existed and one was generated.
	StatusMiss
	// StatusStale means an expired entry was replaced by a regenerated one.
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "HIT"
	case StatusMiss:
		return "MISS"
	case StatusStale:
		return "STALE"
	default:
		return "UNKNOWN"
	}
}

// Result is returned by GetOrRegenerate.
type Result struct {
	Entry
	Status Status
}

// Incremental is a bounded cache whose entries go stale after a TTL.
// Freshness is evaluated lazily on read. Every key is recorded against the
// module that produced it so InvalidateModule drops exactly that module's
// entries. Removing a key from the cache and from the module index happen
// under the same lock.
//
// A regeneration that was running when its module was invalidated, or the
// cache cleared, returns its value to the caller but does not write it back.
type Incremental struct {
	name     string
	metrics  Metrics
	clock    Clock
	coalesce bool
	group    singleflight.Group

	mu    sync.Mutex
	lru   *simplelru.LRU[string, Entry]
	index map[string]map[string]struct{}

	// epoch advances on Clear; modEpochs on InvalidateModule.
	epoch     uint64
	modEpochs map[string]uint64
}

// stamp identifies the invalidation state a regeneration started from.
type stamp struct {
	epoch, module uint64
}

// NewIncremental creates an incremental cache holding at most capacity entries.
func NewIncremental(capacity int, opts ...Option) (*Incremental, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	o := buildOptions("incremental", opts)
	c := &Incremental{
		name:      o.name,
		metrics:   o.metrics,
		clock:     o.clock,
		coalesce:  o.coalesce,
		index:     make(map[string]map[string]struct{}),
		modEpochs: make(map[string]uint64),
	}

	// Runs for evictions, removals and purges, always with c.mu held.
	l, err := simplelru.NewLRU[string, Entry](capacity, func(key string, e Entry) {
		c.unindex(e.Module, key)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// GetOrRegenerate serves key if it holds a fresh entry. Otherwise it runs
// gen without holding the cache lock and writes the result back. A failed
// generation returns the error and leaves any existing entry untouched.
func (c *Incremental) GetOrRegenerate(ctx context.Context, module, key string, gen Generator) (Result, error) {
	c.mu.Lock()
	e, ok := c.lru.Get(key)
	c.mu.Unlock()

	status := StatusMiss
	if ok {
		if e.Fresh(c.clock()) {
			c.metrics.Hit(c.name)
			return Result{Entry: e, Status: StatusHit}, nil
		}
		status = StatusStale
		c.metrics.Stale(c.name)
	} else {
		c.metrics.Miss(c.name)
	}

	var fresh Entry
	var err error
	if c.coalesce {
		var v any
		v, err, _ = c.group.Do(key, func() (any, error) {
			return c.regenerate(ctx, module, key, gen)
		})
		if err == nil {
			fresh = v.(Entry)
		}
	} else {
		fresh, err = c.regenerate(ctx, module, key, gen)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Entry: fresh, Status: status}, nil
}

func (c *Incremental) regenerate(ctx context.Context, module, key string, gen Generator) (Entry, error) {
	c.mu.Lock()
	st := c.stampLocked(module)
	c.mu.Unlock()

	start := c.clock()
	g, err := gen(ctx)
	c.metrics.Regenerate(c.name, c.clock().Sub(start), err)
	if err != nil {
		return Entry{}, err
	}
	e, _ := c.set(module, key, g.Value, g.TTL, &st)
	return e, nil
}

// stampLocked returns the current invalidation state of module. Caller
// holds c.mu.
func (c *Incremental) stampLocked(module string) stamp {
	return stamp{epoch: c.epoch, module: c.modEpochs[module]}
}

// Get returns a fresh entry without regenerating. Stale entries are
// reported as absent but stay in the cache.
func (c *Incremental) Get(key string) (Entry, bool) {
	c.mu.Lock()
	e, ok := c.lru.Get(key)
	c.mu.Unlock()

	if !ok || !e.Fresh(c.clock()) {
		return Entry{}, false
	}
	return e, true
}

// Peek returns the entry for key, fresh or not, without touching recency.
func (c *Incremental) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Set writes an entry generated now and records key under module.
func (c *Incremental) Set(module, key, value string, ttl time.Duration) Entry {
	e, _ := c.set(module, key, value, ttl, nil)
	return e
}

// set writes the entry unless since is given and module was invalidated or
// the cache cleared after it was taken. It reports whether it wrote.
func (c *Incremental) set(module, key, value string, ttl time.Duration, since *stamp) (Entry, bool) {
	e := Entry{Module: module, Key: key, Value: value, GeneratedAt: c.clock(), TTL: ttl}

	c.mu.Lock()
	if since != nil && c.stampLocked(module) != *since {
		c.mu.Unlock()
		return e, false
	}
	if old, ok := c.lru.Peek(key); ok && old.Module != module {
		c.unindex(old.Module, key)
	}
	evicted := c.lru.Add(key, e)
	keys := c.index[module]
	if keys == nil {
		keys = make(map[string]struct{})
		c.index[module] = keys
	}
	keys[key] = struct{}{}
	n := c.lru.Len()
	c.mu.Unlock()

	if evicted {
		c.metrics.Evict(c.name)
	}
	c.metrics.Size(c.name, n)
	return e, true
}

// Erase removes one key and reports whether it was present.
func (c *Incremental) Erase(key string) bool {
	c.mu.Lock()
	ok := c.lru.Remove(key)
	n := c.lru.Len()
	c.mu.Unlock()

	if ok {
		c.metrics.Invalidate(c.name, 1)
		c.metrics.Size(c.name, n)
	}
	return ok
}

// InvalidateModule removes every entry recorded for module and returns how
// many were removed. Entries of other modules are untouched.
func (c *Incremental) InvalidateModule(module string) int {
	c.mu.Lock()
	keys := make([]string, 0, len(c.index[module]))
	for k := range c.index[module] {
		keys = append(keys, k)
	}
	removed := 0
	for _, k := range keys {
		if c.lru.Remove(k) {
			removed++
		}
	}
	delete(c.index, module)
	c.modEpochs[module]++
	n := c.lru.Len()
	c.mu.Unlock()

	if removed > 0 {
		c.metrics.Invalidate(c.name, removed)
		c.metrics.Size(c.name, n)
	}
	return removed
}

// Clear empties the cache and the module index.
func (c *Incremental) Clear() int {
	c.mu.Lock()
	n := c.lru.Len()
	c.lru.Purge()
	c.index = make(map[string]map[string]struct{})
	c.epoch++
	c.mu.Unlock()

	c.metrics.Invalidate(c.name, n)
	c.metrics.Size(c.name, 0)
	return n
}

// Len returns the number of entries.
func (c *Incremental) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// KeysFor returns the sorted keys recorded for module.
func (c *Incremental) KeysFor(module string) []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.index[module]))
	for k := range c.index[module] {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Modules returns the sorted module paths that currently own entries.
func (c *Incremental) Modules() []string {
	c.mu.Lock()
	mods := make([]string, 0, len(c.index))
	for m := range c.index {
		mods = append(mods, m)
	}
	c.mu.Unlock()

	sort.Strings(mods)
	return mods
}

// unindex drops key from module's set. Caller holds c.mu.
func (c *Incremental) unindex(module, key string) {
	keys, ok := c.index[module]
	if !ok {
		return
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(c.index, module)
	}
}
