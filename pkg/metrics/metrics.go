// Package metrics exposes Prometheus metrics for Facebook Marketing syncs.
//
// Metrics are package-level vectors registered with the default registry:
//
//	metrics.RecordsEmitted.WithLabelValues("campaigns").Inc()
//	metrics.BatchExecutions.WithLabelValues("ad_creatives").Inc()
//
// A Collector keeps a per-connector snapshot of the same numbers so that
// callers without a Prometheus scrape can still report progress.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsEmitted counts records yielded per stream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_fbmarketing_records_emitted_total",
			Help: "Records emitted by Facebook Marketing streams",
		},
		[]string{"stream"},
	)

	// BatchExecutions counts Graph API batch calls, including residue retries
	BatchExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_fbmarketing_batch_executions_total",
			Help: "Graph API batch requests executed",
		},
		[]string{"stream"},
	)

	// BatchRequestsDropped counts per-request batch failures that produced no record
	BatchRequestsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_fbmarketing_batch_requests_dropped_total",
			Help: "Requests inside a batch that failed and were dropped",
		},
		[]string{"stream"},
	)

	// ThumbnailFetches counts thumbnail downloads by outcome
	ThumbnailFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_fbmarketing_thumbnail_fetches_total",
			Help: "Ad creative thumbnail downloads",
		},
		[]string{"status"},
	)

	// HTTPRequests counts Graph API HTTP calls by method and status class
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nebula_fbmarketing_http_requests_total",
			Help: "HTTP requests issued to the Graph API",
		},
		[]string{"method", "status"},
	)

	// HTTPLatency tracks Graph API request latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_fbmarketing_http_request_duration_seconds",
			Help:    "Graph API request latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"method"},
	)

	// StreamDuration tracks how long a full stream read takes
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nebula_fbmarketing_stream_duration_seconds",
			Help:    "Duration of a stream read",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"stream"},
	)
)

// Timer measures elapsed time
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveTo records the elapsed seconds on o and returns the duration
func (t *Timer) ObserveTo(o prometheus.Observer) time.Duration {
	d := time.Since(t.start)
	o.Observe(d.Seconds())
	return d
}

// Collector keeps per-connector counters alongside the global vectors
type Collector struct {
	name      string
	startTime time.Time

	mu       sync.RWMutex
	counters map[string]int64
}

// NewCollector creates a collector for the named component
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
		counters:  make(map[string]int64),
	}
}

// Add increments a named counter
func (c *Collector) Add(name string, delta int64) {
	c.mu.Lock()
	c.counters[name] += delta
	c.mu.Unlock()
}

// Get returns a named counter
func (c *Collector) Get(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Snapshot returns all counters plus component and uptime
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]interface{}, len(c.counters)+2)
	for k, v := range c.counters {
		out[k] = v
	}
	out["component"] = c.name
	out["uptime_seconds"] = time.Since(c.startTime).Seconds()
	return out
}
