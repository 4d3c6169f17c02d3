package cache

// Stats is a point-in-time snapshot of cache counters.
//
// Evictions counts policy evictions only; expirations are reported
// separately in Expired. HitRate is Hits/(Hits+Misses), 0 with no lookups.
type Stats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Writes      uint64  `json:"writes"`
	Evictions   uint64  `json:"evictions"`
	Expired     uint64  `json:"expired"`
	HitRate     float64 `json:"hitRate"`
	Entries     int     `json:"entries"`
	MaxEntries  int     `json:"maxEntries"`
	StoredBytes int     `json:"storedBytes"`
}

// Stats returns the current counters plus memory occupancy.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Writes:      c.writes,
		Evictions:   c.evictions,
		Expired:     c.expired,
		Entries:     len(c.m),
		MaxEntries:  c.opt.MaxEntries,
		StoredBytes: c.storedBytesLocked(),
	}
	if lookups := c.hits + c.misses; lookups > 0 {
		s.HitRate = float64(c.hits) / float64(lookups)
	}
	return s
}
