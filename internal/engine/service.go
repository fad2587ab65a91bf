package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/observability"
)

// Service drives the periodic refresh-then-analyze cycle.
type Service struct {
	refresher *Refresher
	analyzer  *Analyzer
	logger    *slog.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	ready     atomic.Bool
}

// NewService creates the analysis loop with the given cycle interval.
func NewService(refresher *Refresher, analyzer *Analyzer, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Service {
	return &Service{
		refresher: refresher,
		analyzer:  analyzer,
		logger:    logger,
		metrics:   metrics,
		interval:  interval,
	}
}

// CheckReadiness returns nil once at least one full analysis cycle has
// completed, or an error describing why the service is not yet ready.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no analysis cycle has completed yet")
	}
	return nil
}

// Run executes an immediate cycle and then one per interval until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("analysis loop started", "interval", s.interval)
	s.metrics.EngineRunning.Set(1)
	defer s.metrics.EngineRunning.Set(0)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("analysis loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// AnalyzeParcelNow refreshes the weather and analyzes one parcel on demand,
// outside the scheduled cycle. The provider's cache absorbs repeated calls.
func (s *Service) AnalyzeParcelNow(ctx context.Context, name string) (domain.Analysis, error) {
	h, err := s.refresher.Refresh(ctx)
	if err != nil {
		return domain.Analysis{}, err
	}
	return s.analyzer.AnalyzeParcel(ctx, name, h)
}

// AnalyzeAllNow refreshes the weather and analyzes every parcel on demand.
func (s *Service) AnalyzeAllNow(ctx context.Context) ([]domain.Analysis, error) {
	h, err := s.refresher.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return s.analyzer.AnalyzeAll(ctx, h)
}

// cycle runs one refresh-then-analyze pass. Failures are logged and the loop
// keeps going: the next tick gets a fresh chance.
func (s *Service) cycle(ctx context.Context) {
	h, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.logger.Error("weather refresh failed", "error", err)
		return
	}

	analyses, err := s.analyzer.AnalyzeAll(ctx, h)
	if err != nil {
		s.logger.Error("analysis cycle failed", "error", err)
		return
	}

	s.ready.Store(true)
	s.logger.Info("analysis cycle complete", "parcels", len(analyses))
}
