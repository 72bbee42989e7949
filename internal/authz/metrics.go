package authz

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheStats is a point-in-time view of cache counters for the inspection
// report.
type CacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Degraded      int64 `json:"degraded"`
	Invalidations int64 `json:"invalidations"`
}

// CacheMetrics tracks decision-cache outcomes, exported to Prometheus and
// mirrored in atomics so the report endpoint can read them back.
type CacheMetrics struct {
	hits          atomic.Int64
	misses        atomic.Int64
	degraded      atomic.Int64
	invalidations atomic.Int64

	events *prometheus.CounterVec
}

// NewCacheMetrics builds cache metrics and registers them when reg is
// non-nil.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wardbook_authz_cache_events_total",
		Help: "Decision cache events by outcome.",
	}, []string{"event"})
	if reg != nil {
		reg.MustRegister(events)
	}
	return &CacheMetrics{events: events}
}

func (m *CacheMetrics) hit() {
	if m == nil {
		return
	}
	m.hits.Add(1)
	m.events.WithLabelValues("hit").Inc()
}

func (m *CacheMetrics) miss() {
	if m == nil {
		return
	}
	m.misses.Add(1)
	m.events.WithLabelValues("miss").Inc()
}

func (m *CacheMetrics) degrade() {
	if m == nil {
		return
	}
	m.degraded.Add(1)
	m.events.WithLabelValues("degraded").Inc()
}

func (m *CacheMetrics) invalidate() {
	if m == nil {
		return
	}
	m.invalidations.Add(1)
	m.events.WithLabelValues("invalidation").Inc()
}

// Snapshot returns the current counter values.
func (m *CacheMetrics) Snapshot() CacheStats {
	if m == nil {
		return CacheStats{}
	}
	return CacheStats{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Degraded:      m.degraded.Load(),
		Invalidations: m.invalidations.Load(),
	}
}
