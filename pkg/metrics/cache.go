package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics records hit/miss/fail-open behavior per cache domain.
type CacheMetrics struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	failOpen *prometheus.CounterVec
}

// NewCacheMetrics registers the cache metrics on the provided registerer.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache hits by domain.",
	}, []string{"domain"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache misses by domain.",
	}, []string{"domain"})
	failOpen := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_fail_open_total",
		Help: "Cache backend errors answered by falling through to the store.",
	}, []string{"domain"})
	reg.MustRegister(hits, misses, failOpen)
	return &CacheMetrics{
		hits:     hits,
		misses:   misses,
		failOpen: failOpen,
	}
}

// IncHit increments the hit counter for the domain.
func (c *CacheMetrics) IncHit(domain string) {
	if c == nil || c.hits == nil {
		return
	}
	c.hits.WithLabelValues(normalizeLabel(domain)).Inc()
}

// IncMiss increments the miss counter for the domain.
func (c *CacheMetrics) IncMiss(domain string) {
	if c == nil || c.misses == nil {
		return
	}
	c.misses.WithLabelValues(normalizeLabel(domain)).Inc()
}

// IncFailOpen increments the fail-open counter for the domain.
func (c *CacheMetrics) IncFailOpen(domain string) {
	if c == nil || c.failOpen == nil {
		return
	}
	c.failOpen.WithLabelValues(normalizeLabel(domain)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
