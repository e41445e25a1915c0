package services

import (
	"sync"
	"time"

	"github.com/desertthunder/shelfreq/internal/models"
)

// CatalogCache holds the most recent catalog snapshot for a limited time.
//
// It is safe for concurrent use. Callers receive copies of the stored slice.
type CatalogCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	items     []models.CatalogEntry
	fetchedAt time.Time
	now       func() time.Time
}

// NewCatalogCache creates an empty cache whose snapshots expire after ttl.
func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{ttl: ttl, now: time.Now}
}

// Set replaces the snapshot.
func (c *CatalogCache) Set(items []models.CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]models.CatalogEntry(nil), items...)
	c.fetchedAt = c.now()
}

// Get returns the snapshot and when it was taken, or false when empty or expired.
func (c *CatalogCache) Get() ([]models.CatalogEntry, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || (c.ttl > 0 && c.now().Sub(c.fetchedAt) > c.ttl) {
		return nil, time.Time{}, false
	}
	return append([]models.CatalogEntry(nil), c.items...), c.fetchedAt, true
}

// Invalidate drops the snapshot.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.fetchedAt = time.Time{}
}
