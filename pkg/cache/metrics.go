package cache

import "time"

// Metrics receives cache lifecycle events. name identifies the cache
// ("render" or "incremental").
type Metrics interface {
	// Hit is called when a lookup is served from the cache.
	Hit(name string)

	// Miss is called when a lookup finds nothing.
	Miss(name string)

	// Stale is called when a lookup finds an expired incremental entry.
	Stale(name string)

	// Evict is called when capacity pressure removes an entry.
	Evict(name string)

	// Invalidate is called with the number of entries dropped by an
	// explicit erase, module invalidation, or clear.
	Invalidate(name string, n int)

	// Regenerate is called after page logic ran to refill an entry.
	Regenerate(name string, took time.Duration, err error)

	// Size reports the entry count after a mutation.
	Size(name string, n int)
}

// NoopMetrics ignores every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)                              {}
func (NoopMetrics) Miss(string)                             {}
func (NoopMetrics) Stale(string)                            {}
func (NoopMetrics) Evict(string)                            {}
func (NoopMetrics) Invalidate(string, int)                  {}
func (NoopMetrics) Regenerate(string, time.Duration, error) {}
func (NoopMetrics) Size(string, int)                        {}
