package governor

import (
	"time"
)

// CacheEntry is one cached decision. An entry is live while ValidUntil is
// zero or in the future; dead entries are skipped on lookup and reclaimed
// on insert.
type CacheEntry struct {
	CodeHash   string
	Response   Response
	Threat     ThreatLevel
	CachedAt   time.Time
	ValidUntil time.Time
	HitCount   int
}

// CacheStats counts cache activity.
type CacheStats struct {
	Hits      int
	Misses    int
	Evictions int
	Entries   int
}

// decisionCache maps code hashes to at most one live decision each, with a
// fixed capacity and least-recently-used replacement by CachedAt. A hit
// refreshes CachedAt.
type decisionCache struct {
	entries  map[string]*CacheEntry
	capacity int
	enabled  bool
	stats    CacheStats
	now      func() time.Time
}

func newDecisionCache(capacity int, now func() time.Time) *decisionCache {
	return &decisionCache{
		entries:  make(map[string]*CacheEntry, capacity),
		capacity: capacity,
		enabled:  true,
		now:      now,
	}
}

// lookup returns the live entry for hash, counting a hit or miss.
func (c *decisionCache) lookup(hash string) (*CacheEntry, bool) {
	if !c.enabled {
		return nil, false
	}
	e, ok := c.entries[hash]
	if !ok || !c.live(e) {
		c.stats.Misses++
		return nil, false
	}
	e.HitCount++
	e.CachedAt = c.now()
	c.stats.Hits++
	return e, true
}

func (c *decisionCache) live(e *CacheEntry) bool {
	return e.ValidUntil.IsZero() || c.now().Before(e.ValidUntil)
}

// store inserts a decision, evicting first any dead entry, then the least
// recently used one if still at capacity.
func (c *decisionCache) store(e *CacheEntry) {
	if !c.enabled || c.capacity <= 0 {
		return
	}
	if _, ok := c.entries[e.CodeHash]; !ok && len(c.entries) >= c.capacity {
		c.evictOne()
	}
	c.entries[e.CodeHash] = e
}

func (c *decisionCache) evictOne() {
	victim := ""
	var oldest time.Time
	for hash, e := range c.entries {
		if !c.live(e) {
			victim = hash
			break
		}
		if victim == "" || e.CachedAt.Before(oldest) {
			victim = hash
			oldest = e.CachedAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}

// invalidate drops the entry for hash, if any.
func (c *decisionCache) invalidate(hash string) bool {
	if _, ok := c.entries[hash]; !ok {
		return false
	}
	delete(c.entries, hash)
	return true
}

// clear drops every entry. Counters survive.
func (c *decisionCache) clear() {
	c.entries = make(map[string]*CacheEntry, c.capacity)
}
