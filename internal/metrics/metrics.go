// Package metrics exports engine and cache measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/pageforge/pkg/engine"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "pageforge").
	Namespace string

	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors. Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// Gatherer backs Handler. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
}

// Option configures Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) { c.Buckets = buckets }
}

// WithRegistry registers into reg and serves from it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = reg
		c.Gatherer = reg
	}
}

// Collector implements engine.Metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	cacheLookups   *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheDropped   *prometheus.CounterVec
	cacheEntries   *prometheus.GaugeVec
	regenerations  *prometheus.CounterVec
	regenDuration  *prometheus.HistogramVec

	matches        *prometheus.CounterVec
	routes         prometheus.Gauge
	rescans        *prometheus.CounterVec
	rescanDuration prometheus.Histogram

	moduleLoads    *prometheus.CounterVec
	moduleDuration prometheus.Histogram

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	watchEvents *prometheus.CounterVec
}

var _ engine.Metrics = (*Collector)(nil)

// New creates and registers the collectors. Registering twice into the
// same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := Config{
		Namespace: "pageforge",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
		Gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}
	histogram := func(subsystem, name, help string) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}
	}

	return &Collector{
		gatherer: config.Gatherer,

		cacheLookups:   counter("cache", "lookups_total", "Cache lookups by cache and result", "cache", "result"),
		cacheEvictions: counter("cache", "evictions_total", "Entries evicted by capacity pressure", "cache"),
		cacheDropped:   counter("cache", "invalidated_total", "Entries dropped by erase, module invalidation or clear", "cache"),
		cacheEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Current number of cache entries",
			ConstLabels: config.ConstLabels,
		}, []string{"cache"}),
		regenerations: counter("cache", "regenerations_total", "Page regenerations by cache and status", "cache", "status"),
		regenDuration: factory.NewHistogramVec(histogram("cache", "regeneration_duration_seconds", "Time spent regenerating an entry"), []string{"cache"}),

		matches: counter("router", "matches_total", "Route lookups by result", "result"),
		routes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "router",
			Name:        "routes",
			Help:        "Routes in the current table",
			ConstLabels: config.ConstLabels,
		}),
		rescans:        counter("router", "rescans_total", "Route table builds by status", "status"),
		rescanDuration: factory.NewHistogram(histogram("router", "rescan_duration_seconds", "Route table build duration")),

		moduleLoads:    counter("module", "loads_total", "Module graph loads by status", "status"),
		moduleDuration: factory.NewHistogram(histogram("module", "load_duration_seconds", "Module graph load duration")),

		requests:        counter("engine", "requests_total", "Served requests by mode and cache status", "mode", "cache"),
		requestDuration: factory.NewHistogramVec(histogram("engine", "request_duration_seconds", "Serve duration"), []string{"mode"}),

		watchEvents: counter("watch", "events_total", "Filesystem changes handled by operation", "op"),
	}
}

// Handler serves the gatherer in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) Hit(name string)   { c.cacheLookups.WithLabelValues(name, "hit").Inc() }
func (c *Collector) Miss(name string)  { c.cacheLookups.WithLabelValues(name, "miss").Inc() }
func (c *Collector) Stale(name string) { c.cacheLookups.WithLabelValues(name, "stale").Inc() }
func (c *Collector) Evict(name string) { c.cacheEvictions.WithLabelValues(name).Inc() }

func (c *Collector) Invalidate(name string, n int) {
	c.cacheDropped.WithLabelValues(name).Add(float64(n))
}

func (c *Collector) Regenerate(name string, took time.Duration, err error) {
	c.regenerations.WithLabelValues(name, status(err)).Inc()
	c.regenDuration.WithLabelValues(name).Observe(took.Seconds())
}

func (c *Collector) Size(name string, n int) {
	c.cacheEntries.WithLabelValues(name).Set(float64(n))
}

func (c *Collector) Match(matched bool) {
	result := "miss"
	if matched {
		result = "hit"
	}
	c.matches.WithLabelValues(result).Inc()
}

func (c *Collector) Rescan(routes int, d time.Duration, err error) {
	c.rescans.WithLabelValues(status(err)).Inc()
	c.rescanDuration.Observe(d.Seconds())
	if err == nil {
		c.routes.Set(float64(routes))
	}
}

func (c *Collector) ModuleLoad(d time.Duration, err error) {
	c.moduleLoads.WithLabelValues(status(err)).Inc()
	c.moduleDuration.Observe(d.Seconds())
}

func (c *Collector) Serve(mode engine.Mode, cacheStatus string, d time.Duration, err error) {
	if err != nil {
		cacheStatus = "ERROR"
	} else if cacheStatus == "" {
		cacheStatus = "NONE"
	}
	c.requests.WithLabelValues(mode.String(), cacheStatus).Inc()
	c.requestDuration.WithLabelValues(mode.String()).Observe(d.Seconds())
}

func (c *Collector) WatchEvent(op string) {
	c.watchEvents.WithLabelValues(op).Inc()
}
