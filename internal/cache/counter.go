package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// Counter tallies cache hits and misses across compilations.
type Counter struct {
	hits   *xsync.Counter
	misses *xsync.Counter

	hitMetric  prometheus.Counter
	missMetric prometheus.Counter
}

// NewCounter creates a zeroed counter.
func NewCounter() *Counter {
	return &Counter{hits: xsync.NewCounter(), misses: xsync.NewCounter()}
}

// Export mirrors future hits and misses into the given metrics.
func (c *Counter) Export(hits, misses prometheus.Counter) *Counter {
	c.hitMetric, c.missMetric = hits, misses
	return c
}

// Record counts one lookup.
func (c *Counter) Record(hit bool) {
	if hit {
		c.Hit()
	} else {
		c.Miss()
	}
}

func (c *Counter) Hit() {
	c.hits.Inc()
	if c.hitMetric != nil {
		c.hitMetric.Inc()
	}
}

func (c *Counter) Miss() {
	c.misses.Inc()
	if c.missMetric != nil {
		c.missMetric.Inc()
	}
}

func (c *Counter) Hits() int64   { return c.hits.Value() }
func (c *Counter) Misses() int64 { return c.misses.Value() }

// Ratio returns hits over total lookups, or zero before any lookup.
func (c *Counter) Ratio() float64 {
	h, m := c.Hits(), c.Misses()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}
