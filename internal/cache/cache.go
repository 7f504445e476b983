// Package cache stores scalar query results keyed by the semantic content of
// an intent rather than by SQL text.
package cache

import (
	"slices"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"metricgate/internal/domain"
)

const (
	DefaultTTL        = 300 * time.Second
	DefaultMaxEntries = 512
)

// Key returns the canonical cache key for an intent and the metric version it
// resolved to. Dimension and filter order does not affect the key.
func Key(in *domain.Intent, version domain.MetricVersion) string {
	dims := make([]string, 0, len(in.Dimensions))
	for _, d := range in.Dimensions {
		dims = append(dims, string(d))
	}
	slices.Sort(dims)

	filters := make([]string, 0, len(in.RequestedFilters))
	for _, f := range in.RequestedFilters {
		filters = append(filters, string(f))
	}
	slices.Sort(filters)

	var tr domain.TimeRange
	if in.TimeRange != nil {
		tr = *in.TimeRange
	}

	var b strings.Builder
	b.WriteString(string(in.Metric))
	b.WriteByte(':')
	b.WriteString(string(version))
	b.WriteByte('|')
	b.WriteString(string(tr))
	b.WriteString("|dims=")
	b.WriteString(strings.Join(dims, ","))
	b.WriteString("|filters=")
	b.WriteString(strings.Join(filters, ","))
	return b.String()
}

// Cache is a TTL and capacity bounded result cache. When full, the least
// recently used entry is evicted. It is safe for concurrent use.
type Cache struct {
	items *ttlcache.Cache[string, float64]
}

// New creates a Cache and starts its expiry loop. Non-positive arguments use
// the defaults. Call Stop to release the loop.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	items := ttlcache.New(
		ttlcache.WithTTL[string, float64](ttl),
		ttlcache.WithCapacity[string, float64](uint64(maxEntries)),
		ttlcache.WithDisableTouchOnHit[string, float64](),
	)
	go items.Start()

	return &Cache{items: items}
}

// Get returns the cached value for key. Expired entries are never returned.
func (c *Cache) Get(key string) (float64, bool) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return 0, false
	}
	return item.Value(), true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value float64) {
	c.items.Set(key, value, ttlcache.DefaultTTL)
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *Cache) Len() int { return c.items.Len() }

// Stop ends the expiry loop.
func (c *Cache) Stop() { c.items.Stop() }
