package openmeteo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vitisense/vinesentry/internal/domain"
)

// fetcher matches engine.WeatherProvider without importing it.
type fetcher interface {
	FetchDaily(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (map[string]domain.WeatherDay, error)
}

// CachedProvider wraps a weather provider with a TTL cache so manual
// re-analyses between scheduled cycles do not hammer Open-Meteo. One entry
// per distinct location and window.
type CachedProvider struct {
	inner fetcher
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	days      map[string]domain.WeatherDay
	fetchedAt time.Time
}

// NewCachedProvider creates a cache decorator around a weather provider.
func NewCachedProvider(inner fetcher, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		ttl:     ttl,
		clock:   clockwork.NewRealClock(),
		entries: make(map[string]cacheEntry),
	}
}

// FetchDaily serves from cache within the TTL, delegating otherwise. Errors
// are never cached so a failed fetch can be retried immediately.
func (c *CachedProvider) FetchDaily(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (map[string]domain.WeatherDay, error) {
	key := fmt.Sprintf("%.4f,%.4f|%d|%d", lat, lon, pastDays, forecastDays)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.clock.Since(entry.fetchedAt) < c.ttl {
		return entry.days, nil
	}

	days, err := c.inner.FetchDaily(ctx, lat, lon, pastDays, forecastDays)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{days: days, fetchedAt: c.clock.Now()}
	c.mu.Unlock()
	return days, nil
}
