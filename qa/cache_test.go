package qa

import (
	"testing"
	"time"

	"clauselens/web/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestClauseCacheHitAndMiss(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cache, err := NewClauseCache(10, time.Minute, logger)
	if err != nil {
		t.Fatalf("NewClauseCache() error = %v", err)
	}

	docID := uuid.New()
	if _, ok := cache.Get(docID); ok {
		t.Error("Get() on empty cache = hit, want miss")
	}

	cache.Put(docID, []types.Clause{{Order: 1}, {Order: 2}})
	clauses, ok := cache.Get(docID)
	if !ok {
		t.Fatal("Get() after Put = miss, want hit")
	}
	if len(clauses) != 2 {
		t.Errorf("Get() = %d clauses, want 2", len(clauses))
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", stats.HitRate)
	}
}

func TestClauseCacheTTLExpiry(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cache, err := NewClauseCache(10, 10*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewClauseCache() error = %v", err)
	}

	docID := uuid.New()
	cache.Put(docID, []types.Clause{{Order: 1}})
	time.Sleep(20 * time.Millisecond)

	if _, ok := cache.Get(docID); ok {
		t.Error("Get() after TTL = hit, want miss")
	}
	if cache.Stats().Size != 0 {
		t.Errorf("size = %d after lazy expiry, want 0", cache.Stats().Size)
	}
}

func TestClauseCacheInvalidate(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cache, _ := NewClauseCache(10, time.Minute, logger)

	docID := uuid.New()
	cache.Put(docID, []types.Clause{{Order: 1}})
	cache.Invalidate(docID)

	if _, ok := cache.Get(docID); ok {
		t.Error("Get() after Invalidate = hit, want miss")
	}
}

func TestClauseCacheEvictionCount(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cache, _ := NewClauseCache(2, time.Minute, logger)

	cache.Put(uuid.New(), nil)
	cache.Put(uuid.New(), nil)
	cache.Put(uuid.New(), nil)

	stats := cache.Stats()
	if stats.Size != 2 {
		t.Errorf("size = %d, want 2", stats.Size)
	}
	if stats.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", stats.Evictions)
	}
}

func TestClauseCacheSweep(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cache, _ := NewClauseCache(10, 5*time.Millisecond, logger)

	cache.Put(uuid.New(), []types.Clause{{Order: 1}})
	cache.Put(uuid.New(), []types.Clause{{Order: 1}})
	time.Sleep(10 * time.Millisecond)

	cache.sweep()
	if got := cache.Stats().Size; got != 0 {
		t.Errorf("size after sweep = %d, want 0", got)
	}
}
