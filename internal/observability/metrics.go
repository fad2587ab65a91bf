package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// advisory engine.
type Metrics struct {
	AnalysesCompleted  prometheus.Counter
	AnalysesFailed     prometheus.Counter
	TreatmentsRecorded prometheus.Counter
	EngineRunning      prometheus.Gauge

	// Per-cycle outcome metrics.
	HighUrgencyParcels prometheus.Gauge
	AnalysisDuration   prometheus.Histogram

	// Weather refresh metrics.
	WeatherFetches       *prometheus.CounterVec // labels: outcome={success,error}
	WeatherDaysKnown     prometheus.Gauge
	WeatherFetchDuration prometheus.Histogram
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		AnalysesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vinesentry",
			Name:      "analyses_completed_total",
			Help:      "Total per-parcel analyses completed.",
		}),
		AnalysesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vinesentry",
			Name:      "analyses_failed_total",
			Help:      "Total per-parcel analyses that failed.",
		}),
		TreatmentsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vinesentry",
			Name:      "treatments_recorded_total",
			Help:      "Total treatments appended to the log.",
		}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vinesentry",
			Name:      "engine_running",
			Help:      "1 when the analysis loop is active, 0 when shut down.",
		}),
		HighUrgencyParcels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vinesentry",
			Name:      "high_urgency_parcels",
			Help:      "Parcels flagged haute urgence in the latest cycle.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vinesentry",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a complete all-parcels analysis cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vinesentry",
			Name:      "weather_fetches_total",
			Help:      "Weather provider fetches by outcome.",
		}, []string{"outcome"}),
		WeatherDaysKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vinesentry",
			Name:      "weather_days_known",
			Help:      "Days of weather currently held in the history.",
		}),
		WeatherFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vinesentry",
			Name:      "weather_fetch_duration_seconds",
			Help:      "Open-Meteo request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	prometheus.MustRegister(
		m.AnalysesCompleted,
		m.AnalysesFailed,
		m.TreatmentsRecorded,
		m.EngineRunning,
		m.HighUrgencyParcels,
		m.AnalysisDuration,
		m.WeatherFetches,
		m.WeatherDaysKnown,
		m.WeatherFetchDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		AnalysesCompleted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "vinesentry", Name: "analyses_completed_total"}),
		AnalysesFailed:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "vinesentry", Name: "analyses_failed_total"}),
		TreatmentsRecorded:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "vinesentry", Name: "treatments_recorded_total"}),
		EngineRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vinesentry", Name: "engine_running"}),
		HighUrgencyParcels:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vinesentry", Name: "high_urgency_parcels"}),
		AnalysisDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "vinesentry", Name: "analysis_duration_seconds"}),
		WeatherFetches:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "vinesentry", Name: "weather_fetches_total"}, []string{"outcome"}),
		WeatherDaysKnown:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "vinesentry", Name: "weather_days_known"}),
		WeatherFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "vinesentry", Name: "weather_fetch_duration_seconds"}),
	}
}
