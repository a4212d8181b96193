package qa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clauselens/web/types"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

const sweepInterval = 5 * time.Minute

// CacheStats is a point-in-time snapshot of cache behavior.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hit_rate"`
}

type cacheEntry struct {
	clauses   []types.Clause
	expiresAt time.Time
}

// ClauseCache is a TTL layer over an LRU of per-document clause sets. Expired
// entries are dropped lazily on read and swept periodically in the
// background.
type ClauseCache struct {
	lru    *lru.Cache
	ttl    time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
}

func NewClauseCache(maxEntries int, ttl time.Duration, logger *zap.Logger) (*ClauseCache, error) {
	c := &ClauseCache{ttl: ttl, logger: logger}
	inner, err := lru.NewWithEvict(maxEntries, func(key, _ any) {
		c.mu.Lock()
		c.evictions++
		c.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner
	return c, nil
}

func cacheKey(docID uuid.UUID) string {
	return fmt.Sprintf("clauses:%s", docID)
}

// Get returns the cached clause set if present and unexpired.
func (c *ClauseCache) Get(docID uuid.UUID) ([]types.Clause, bool) {
	key := cacheKey(docID)
	value, ok := c.lru.Get(key)
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	entry := value.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.clauses, true
}

// Put stores a document's clauses with a fresh TTL.
func (c *ClauseCache) Put(docID uuid.UUID, clauses []types.Clause) {
	c.lru.Add(cacheKey(docID), cacheEntry{
		clauses:   clauses,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Invalidate drops a document's cached clauses.
func (c *ClauseCache) Invalidate(docID uuid.UUID) {
	c.lru.Remove(cacheKey(docID))
}

// Stats snapshots the counters.
func (c *ClauseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.lru.Len(),
		HitRate:   rate,
	}
}

// StartSweeper runs the periodic expiry sweep until ctx is cancelled.
func (c *ClauseCache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *ClauseCache) sweep() {
	now := time.Now()
	removed := 0
	for _, key := range c.lru.Keys() {
		if value, ok := c.lru.Peek(key); ok {
			if entry, ok := value.(cacheEntry); ok && now.After(entry.expiresAt) {
				c.lru.Remove(key)
				removed++
			}
		}
	}
	if removed > 0 {
		c.logger.Debug("Swept expired cache entries", zap.Int("removed", removed))
	}
}
