package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/observability"
)

// WeatherProvider fetches daily weather around today: pastDays of archive
// plus forecastDays ahead, keyed by ISO date.
type WeatherProvider interface {
	FetchDaily(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (map[string]domain.WeatherDay, error)
}

// WeatherStore persists the merged history between runs.
type WeatherStore interface {
	Load(ctx context.Context) (domain.History, error)
	Save(ctx context.Context, h domain.History) error
}

// Refresher keeps the weather history current: load the persisted history,
// fetch fresh days from the provider, merge non-destructively, prune, save.
type Refresher struct {
	provider WeatherProvider
	store    WeatherStore
	logger   *slog.Logger
	metrics  *observability.Metrics

	lat, lon     float64
	pastDays     int
	forecastDays int
	baseTemp     float64
}

// NewRefresher creates a Refresher for one vineyard location.
func NewRefresher(provider WeatherProvider, store WeatherStore, logger *slog.Logger, metrics *observability.Metrics, lat, lon float64, pastDays, forecastDays int, baseTemp float64) *Refresher {
	return &Refresher{
		provider:     provider,
		store:        store,
		logger:       logger,
		metrics:      metrics,
		lat:          lat,
		lon:          lon,
		pastDays:     pastDays,
		forecastDays: forecastDays,
		baseTemp:     baseTemp,
	}
}

// Refresh returns the up-to-date history. A provider failure degrades to the
// cached history rather than erroring out: an analysis on yesterday's data
// beats no analysis at all. Only a failure to load the store is fatal.
func (r *Refresher) Refresh(ctx context.Context) (domain.History, error) {
	h, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weather history: %w", err)
	}
	if h == nil {
		h = domain.History{}
	}

	start := time.Now()
	fetched, err := r.provider.FetchDaily(ctx, r.lat, r.lon, r.pastDays, r.forecastDays)
	r.metrics.WeatherFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.WeatherFetches.WithLabelValues("error").Inc()
		r.logger.Error("weather fetch failed, using cached history", "error", err, "cached_days", len(h))
		return h, nil
	}
	r.metrics.WeatherFetches.WithLabelValues("success").Inc()

	for date, day := range fetched {
		h.Merge(date, day, r.baseTemp)
	}
	h = h.Pruned(domain.Today())
	r.metrics.WeatherDaysKnown.Set(float64(len(h)))

	if err := r.store.Save(ctx, h); err != nil {
		// The merged history is still usable in memory this cycle.
		r.logger.Warn("save weather history failed", "error", err)
	}

	r.logger.Info("weather refreshed", "fetched_days", len(fetched), "known_days", len(h))
	return h, nil
}
