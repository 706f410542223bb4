package engine

import (
	"time"

	"github.com/vango-dev/pageforge/pkg/cache"
)

// Metrics receives engine measurements in addition to cache events.
type Metrics interface {
	cache.Metrics

	// Match records a route lookup.
	Match(matched bool)

	// Rescan records a route table build.
	Rescan(routes int, d time.Duration, err error)

	// ModuleLoad records a module graph load.
	ModuleLoad(d time.Duration, err error)

	// Serve records a completed request and how it was served.
	Serve(mode Mode, status string, d time.Duration, err error)

	// WatchEvent records a filesystem change delivered to the engine.
	WatchEvent(op string)
}

// NoopMetrics discards everything.
type NoopMetrics struct {
	cache.NoopMetrics
}

func (NoopMetrics) Match(bool)                               {}
func (NoopMetrics) Rescan(int, time.Duration, error)         {}
func (NoopMetrics) ModuleLoad(time.Duration, error)          {}
func (NoopMetrics) Serve(Mode, string, time.Duration, error) {}
func (NoopMetrics) WatchEvent(string)                        {}
