package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"commute/internal/types"
)

// Key identifies a cached snapshot: origin, destination and the arrival-time bucket.
type Key struct {
	Origin      types.Coordinate
	Destination types.Coordinate
	Bucket      int64 // unix seconds of the bucket start
}

// NewKey buckets arrival to the given width.
func NewKey(origin, destination types.Coordinate, arrival time.Time, bucket time.Duration) Key {
	return Key{
		Origin:      origin,
		Destination: destination,
		Bucket:      arrival.UTC().Truncate(bucket).Unix(),
	}
}

// String renders the key with coordinates at ~11 m precision.
func (k Key) String() string {
	return fmt.Sprintf("snapshot:%.4f,%.4f:%.4f,%.4f:%d",
		k.Origin.Lat, k.Origin.Lng, k.Destination.Lat, k.Destination.Lng, k.Bucket)
}

// Entry is a cached snapshot with its insertion time. Freshness is decided by the reader.
type Entry struct {
	Snapshot Snapshot  `json:"snapshot"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache stores snapshot entries. Get reports ok=false for a missing key.
type Cache interface {
	Get(ctx context.Context, key Key) (Entry, bool, error)
	Put(ctx context.Context, key Key, e Entry) error
}

// MemoryCache is an in-process Cache. Entries older than maxAge are dropped on write.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	maxAge  time.Duration
	clock   types.Clock
}

func NewMemoryCache(maxAge time.Duration, clock types.Clock) *MemoryCache {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryCache{entries: make(map[string]Entry), maxAge: maxAge, clock: clock}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	return e, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key Key, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = e
	if c.maxAge > 0 {
		now := c.clock.Now()
		for k, v := range c.entries {
			if now.Sub(v.StoredAt) > c.maxAge {
				delete(c.entries, k)
			}
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
