package simulation

import (
	"context"
	"fmt"
	"math"
	"sync"

	"cricket-sim/models"
)

// DefaultCacheCapacity bounds the over cache
const DefaultCacheCapacity = 100

// CacheStats is a point-in-time view of cache usage
type CacheStats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// Cache is a bounded least-recently-used store of simulated overs. Eviction
// scans every entry for the oldest access, which is fine at this size.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]models.OverSimulationResult
	lastUsed map[string]uint64
	clock    uint64
	hits     uint64
	misses   uint64
}

// NewCache creates a cache holding at most capacity overs
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]models.OverSimulationResult, capacity),
		lastUsed: make(map[string]uint64, capacity),
	}
}

// Lookup reports whether key is cached, counting a miss when it is not. A
// present key is left for Get to count and touch.
func (c *Cache) Lookup(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	if !ok {
		c.misses++
	}
	return ok
}

// Get returns a copy of the cached over and marks it recently used
func (c *Cache) Get(key string) (models.OverSimulationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[key]
	if !ok {
		c.misses++
		return models.OverSimulationResult{}, false
	}
	c.hits++
	c.clock++
	c.lastUsed[key] = c.clock
	return r.Clone(), true
}

// Put stores an over, evicting the least recently used entry when full
func (c *Cache) Put(key string, r models.OverSimulationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.clock++
	c.entries[key] = r.Clone()
	c.lastUsed[key] = c.clock
}

func (c *Cache) evictOldest() {
	oldestKey := ""
	oldest := uint64(math.MaxUint64)
	for k, t := range c.lastUsed {
		if t < oldest {
			oldestKey, oldest = k, t
		}
	}
	delete(c.entries, oldestKey)
	delete(c.lastUsed, oldestKey)
}

// Len returns the number of cached overs
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counters with the current size
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.entries), Capacity: c.capacity}
}

// Fingerprint keys situations that are close enough to share a simulated over
func Fingerprint(c CricketContext) string {
	return fmt.Sprintf("%d|%s|%s|%s|%d|%d|%d|%d",
		c.Over,
		c.Striker.Name,
		c.Bowler.Name,
		c.Phase,
		int(math.Round(c.Pressure.RequiredRunRate)),
		c.Pressure.WicketsInHand,
		int(math.Floor(c.Momentum.Batting/4)),
		int(math.Floor(c.Momentum.Bowling/4)),
	)
}

// CacheStrategy replays an over simulated earlier for an equivalent situation
type CacheStrategy struct {
	cache *Cache
}

// NewCacheStrategy creates the cache lookup strategy
func NewCacheStrategy(cache *Cache) *CacheStrategy {
	return &CacheStrategy{cache: cache}
}

func (s *CacheStrategy) Name() string  { return StrategyCache }
func (s *CacheStrategy) Priority() int { return 1 }

func (s *CacheStrategy) CanHandle(c CricketContext) bool {
	return s.cache.Lookup(Fingerprint(c))
}

func (s *CacheStrategy) Simulate(_ context.Context, c CricketContext) (models.OverSimulationResult, error) {
	r, ok := s.cache.Get(Fingerprint(c))
	if !ok {
		return models.OverSimulationResult{}, ErrCacheMiss
	}

	r.Outcomes = legalLimit(r.Outcomes, c.BallsLeftInOver())
	r.Commentary = "[Cached] " + r.Commentary
	r.Cached = true
	r.Cost = 0
	r.Strategy = StrategyCache
	return r, nil
}
