package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/observability"
)

// ErrParcelNotFound is returned when an analysis is requested for an unknown
// parcel name.
var ErrParcelNotFound = errors.New("parcel not found")

// ParcelSource lists the vineyard blocks under management.
type ParcelSource interface {
	Parcels(ctx context.Context) ([]domain.Parcel, error)
	Parcel(ctx context.Context, name string) (domain.Parcel, error)
}

// TreatmentSource reads the append-only treatment log.
type TreatmentSource interface {
	TreatmentsFor(ctx context.Context, parcel string) ([]domain.Treatment, error)
}

// AnalysisRecorder receives the flattened history row after each analysis.
type AnalysisRecorder interface {
	Record(ctx context.Context, rec domain.AnalysisRecord) error
}

// Thresholds are the decision tuning knobs.
type Thresholds struct {
	// RainAlertMM triggers the preventive-treatment alert when at least this
	// much rain is forecast over the next three days with protection below
	// LowProtection.
	RainAlertMM   float64
	LowProtection float64
	// DecisionHigh and DecisionMedium tier the risk-minus-protection score.
	DecisionHigh   float64
	DecisionMedium float64
}

// DefaultThresholds returns the product's standard decision tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RainAlertMM:    10,
		LowProtection:  5,
		DecisionHigh:   5,
		DecisionMedium: 2,
	}
}

// Analyzer runs the full decision chain for parcels: phenology, water
// balance, infection and powdery risks, residual protection, and the final
// treat-or-wait decision.
type Analyzer struct {
	parcels    ParcelSource
	treatments TreatmentSource
	recorder   AnalysisRecorder
	logger     *slog.Logger
	metrics    *observability.Metrics

	thresholds Thresholds
	rfuMaxMM   float64
	baseTemp   float64
}

// NewAnalyzer creates an Analyzer with the given collaborators and tuning.
func NewAnalyzer(parcels ParcelSource, treatments TreatmentSource, recorder AnalysisRecorder, logger *slog.Logger, metrics *observability.Metrics, thresholds Thresholds, rfuMaxMM, baseTemp float64) *Analyzer {
	return &Analyzer{
		parcels:    parcels,
		treatments: treatments,
		recorder:   recorder,
		logger:     logger,
		metrics:    metrics,
		thresholds: thresholds,
		rfuMaxMM:   rfuMaxMM,
		baseTemp:   baseTemp,
	}
}

// AnalyzeAll analyzes every managed parcel against the given weather history.
// A parcel that fails analysis is logged and excluded from the result; the
// remaining parcels still get their reports.
func (a *Analyzer) AnalyzeAll(ctx context.Context, h domain.History) ([]domain.Analysis, error) {
	start := time.Now()
	parcels, err := a.parcels.Parcels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list parcels: %w", err)
	}

	analyses := make([]domain.Analysis, 0, len(parcels))
	highUrgency := 0
	for _, parcel := range parcels {
		analysis, err := a.analyze(ctx, parcel, h)
		if err != nil {
			a.logger.Error("parcel analysis failed", "parcel", parcel.Name, "error", err)
			a.metrics.AnalysesFailed.Inc()
			continue
		}
		if analysis.Decision.Urgency == domain.UrgencyHaute {
			highUrgency++
		}
		analyses = append(analyses, analysis)
	}

	a.metrics.HighUrgencyParcels.Set(float64(highUrgency))
	a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	return analyses, nil
}

// AnalyzeParcel analyzes a single parcel by name.
func (a *Analyzer) AnalyzeParcel(ctx context.Context, name string, h domain.History) (domain.Analysis, error) {
	parcel, err := a.parcels.Parcel(ctx, name)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("parcel %q: %w", name, err)
	}
	analysis, err := a.analyze(ctx, parcel, h)
	if err != nil {
		a.metrics.AnalysesFailed.Inc()
		return domain.Analysis{}, err
	}
	return analysis, nil
}

func (a *Analyzer) analyze(ctx context.Context, parcel domain.Parcel, h domain.History) (domain.Analysis, error) {
	today := domain.Today()
	todayKey := today.Format(domain.DateFormat)

	treatments, err := a.treatments.TreatmentsFor(ctx, parcel.Name)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("treatments for %q: %w", parcel.Name, err)
	}

	stageCoef := domain.RiskCoefficient(parcel.Stage)
	sensitivity := domain.SensitivityAverage(parcel.Varieties)

	window3d := h.Window(today, 3)
	window7d := h.Window(today, 7)

	riskScore, riskLevel := domain.DownyMildewRisk(window3d, stageCoef, sensitivity)
	ipi := domain.EvaluateIPI(window3d, stageCoef)
	powderyScore, powderyLevel := domain.PowderyMildewRisk(window7d, stageCoef)

	protection, err := domain.ComputeProtection(treatments, today, h, parcel.Stage)
	if err != nil {
		return domain.Analysis{}, err
	}

	forecast := rainForecast(h, today, 3)
	decision := a.decide(riskScore, protection.Score, powderyLevel, forecast.TotalMM)

	analysis := domain.Analysis{
		Parcel:       parcel.Name,
		Date:         todayKey,
		Varieties:    parcel.Varieties,
		Stage:        parcel.Stage,
		Phenology:    domain.ComputePhenology(h, parcel, a.baseTemp, today),
		WaterBalance: domain.ComputeWaterBalance(h, parcel, a.rfuMaxMM, today),
		Infection:    domain.InfectionRisk{Score: riskScore, Level: riskLevel, IPI: ipi},
		Powdery:      domain.PowderyRisk{Score: powderyScore, Level: powderyLevel},
		Protection:   protection,
		Decision:     decision,
		Forecast3d:   forecast,
	}
	if day, ok := h[todayKey]; ok {
		analysis.Weather = &day
	}

	if err := a.recorder.Record(ctx, analysis.Record()); err != nil {
		// History is best-effort: the analysis itself is still good.
		a.logger.Warn("record analysis failed", "parcel", parcel.Name, "error", err)
	}

	a.metrics.AnalysesCompleted.Inc()
	a.logger.Info("parcel analyzed",
		"parcel", parcel.Name,
		"stage", parcel.Stage,
		"risk", riskScore,
		"protection", protection.Score,
		"decision", decision.Score,
		"urgency", decision.Urgency,
	)
	return analysis, nil
}

// decide turns risk minus protection into the final recommendation, plus the
// secondary alerts that do not change the urgency tier.
func (a *Analyzer) decide(riskScore, protectionScore float64, powderyLevel domain.RiskLevel, rain3dMM float64) domain.Decision {
	// A well-protected parcel can score below zero; the raw value is kept so
	// the history shows how much margin the protection gives.
	score := math.Round((riskScore-protectionScore)*10) / 10

	d := domain.Decision{Score: score}
	switch {
	case score >= a.thresholds.DecisionHigh:
		d.Urgency = domain.UrgencyHaute
		d.Action = "TRAITER MAINTENANT (Mildiou)"
	case score >= a.thresholds.DecisionMedium:
		d.Urgency = domain.UrgencyMoyenne
		d.Action = "Surveiller - Traiter si pluie annoncée (Mildiou)"
	default:
		d.Urgency = domain.UrgencyFaible
		d.Action = "Pas de traitement Mildiou nécessaire"
	}

	if rain3dMM > a.thresholds.RainAlertMM && protectionScore < a.thresholds.LowProtection {
		d.PreventiveAlert = fmt.Sprintf("Pluie de %.1fmm prévue - Traitement préventif Mildiou recommandé", rain3dMM)
	}

	switch powderyLevel {
	case domain.RiskFort:
		d.PowderyAlert = "RISQUE OÏDIUM FORT - Vérifier protection"
	case domain.RiskMoyen:
		d.PowderyAlert = "Risque Oïdium MOYEN - Surveillance"
	}

	return d
}

// rainForecast sums forecast precipitation over the n days after today.
func rainForecast(h domain.History, today time.Time, n int) domain.RainForecast {
	f := domain.RainForecast{}
	for _, date := range h.FutureDates(today, n) {
		day := h[date]
		f.TotalMM += day.Rain()
		f.Dates = append(f.Dates, date)
	}
	return f
}
