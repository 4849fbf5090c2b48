package qtable

import "fmt"

// Counters collects access instrumentation for a table. The struct is owned
// by whoever passed it to New — typically the training loop — so multiple
// tables can share one set or keep them separate, and nothing is global.
type Counters struct {
	TotalAccesses uint64
	CacheHits     uint64
	CacheMisses   uint64
	BatchOps      uint64
	SIMDOps       uint64
}

// HitRatio returns hits/(hits+misses), or 0 when no cache access happened.
func (c *Counters) HitRatio() float64 {
	total := c.CacheHits + c.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(c.CacheHits) / float64(total)
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	*c = Counters{}
}

func (c *Counters) String() string {
	return fmt.Sprintf("accesses=%d hits=%d misses=%d hit_ratio=%.2f%% batch_ops=%d simd_ops=%d",
		c.TotalAccesses, c.CacheHits, c.CacheMisses, c.HitRatio()*100, c.BatchOps, c.SIMDOps)
}
