package cache

import (
	"errors"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// ErrInvalidCapacity is returned when a cache is created with capacity < 1.
var ErrInvalidCapacity = errors.New("cache: capacity must be positive")

// LRU is a bounded least-recently-used cache of rendered output.
// Get promotes the entry; Set inserts or replaces it and evicts the least
// recently touched entry when capacity is exceeded.
type LRU struct {
	name    string
	metrics Metrics

	mu  sync.Mutex
	lru *simplelru.LRU[string, string]
}

// Option configures a cache.
type Option func(*options)

type options struct {
	name     string
	metrics  Metrics
	clock    Clock
	coalesce bool
}

// WithName sets the name passed to Metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func buildOptions(defaultName string, opts []Option) options {
	o := options{name: defaultName, metrics: NoopMetrics{}, clock: SystemClock}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewLRU creates a render cache holding at most capacity entries.
func NewLRU(capacity int, opts ...Option) (*LRU, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	o := buildOptions("render", opts)
	l, err := simplelru.NewLRU[string, string](capacity, nil)
	if err != nil {
		return nil, err
	}
	return &LRU{name: o.name, metrics: o.metrics, lru: l}, nil
}

// Get returns the cached value and promotes it to most recently used.
func (c *LRU) Get(key string) (string, bool) {
	c.mu.Lock()
	v, ok := c.lru.Get(key)
	c.mu.Unlock()

	if ok {
		c.metrics.Hit(c.name)
	} else {
		c.metrics.Miss(c.name)
	}
	return v, ok
}

// Set inserts or replaces key and marks it most recently used.
func (c *LRU) Set(key, value string) {
	c.mu.Lock()
	evicted := c.lru.Add(key, value)
	n := c.lru.Len()
	c.mu.Unlock()

	if evicted {
		c.metrics.Evict(c.name)
	}
	c.metrics.Size(c.name, n)
}

// Erase removes key and reports whether it was present.
func (c *LRU) Erase(key string) bool {
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

// Clear removes every entry and returns how many there were.
func (c *LRU) Clear() int {
	c.mu.Lock()
	n := c.lru.Len()
	c.lru.Purge()
	c.mu.Unlock()

	c.metrics.Invalidate(c.name, n)
	c.metrics.Size(c.name, 0)
	return n
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the cached keys from least to most recently used.
func (c *LRU) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}
