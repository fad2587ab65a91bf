package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitisense/vinesentry/internal/adapter/store"
	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/engine"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AnalysisRunner triggers an on-demand analysis outside the scheduled cycle.
type AnalysisRunner interface {
	AnalyzeParcelNow(ctx context.Context, name string) (domain.Analysis, error)
	AnalyzeAllNow(ctx context.Context) ([]domain.Analysis, error)
}

// TreatmentLog appends and queries the treatment log.
type TreatmentLog interface {
	Append(ctx context.Context, parcel, date, product string, doseKgHa float64) (domain.Treatment, error)
	Between(ctx context.Context, from, to string) ([]domain.Treatment, error)
}

// StageUpdater records a manually observed growth stage.
type StageUpdater interface {
	UpdateStage(ctx context.Context, name string, stage domain.Stage) error
}

// HistorySource queries the persisted campaign history.
type HistorySource interface {
	ListParcel(ctx context.Context, parcel string, limit int) ([]domain.AnalysisRecord, error)
	HighUrgency(ctx context.Context, since string) ([]domain.AnalysisRecord, error)
	Between(ctx context.Context, from, to string) ([]domain.AnalysisRecord, error)
}

// Server exposes the advisory API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	runner     AnalysisRunner
	treatments TreatmentLog
	stages     StageUpdater
	history    HistorySource
	logger     *slog.Logger
}

// NewServer wires all routes.
func NewServer(addr string, ready ReadinessChecker, runner AnalysisRunner, treatments TreatmentLog, stages StageUpdater, history HistorySource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner:     runner,
		treatments: treatments,
		stages:     stages,
		history:    history,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/analyses", s.handleAnalyzeAll)
	mux.HandleFunc("GET /api/v1/parcels/{parcel}/analysis", s.handleAnalyzeParcel)
	mux.HandleFunc("GET /api/v1/parcels/{parcel}/history", s.handleParcelHistory)
	mux.HandleFunc("PUT /api/v1/parcels/{parcel}/stage", s.handleUpdateStage)
	mux.HandleFunc("POST /api/v1/treatments", s.handleAppendTreatment)
	mux.HandleFunc("GET /api/v1/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/v1/ift", s.handleIFT)
	mux.HandleFunc("GET /api/v1/history/export", s.handleExportCSV)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleAnalyzeAll(w http.ResponseWriter, r *http.Request) {
	analyses, err := s.runner.AnalyzeAllNow(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyses)
}

func (s *Server) handleAnalyzeParcel(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.runner.AnalyzeParcelNow(r.Context(), r.PathValue("parcel"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleParcelHistory(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := s.history.ListParcel(r.Context(), r.PathValue("parcel"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type stageRequest struct {
	Stage string `json:"stade"`
}

func (s *Server) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if err := s.stages.UpdateStage(r.Context(), r.PathValue("parcel"), domain.Stage(req.Stage)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "stade": req.Stage})
}

type treatmentRequest struct {
	Parcel   string  `json:"parcelle"`
	Date     string  `json:"date"`
	Product  string  `json:"produit"`
	DoseKgHa float64 `json:"dose_kg_ha"`
}

func (s *Server) handleAppendTreatment(w http.ResponseWriter, r *http.Request) {
	var req treatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.Parcel == "" || req.Date == "" || req.Product == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "parcelle, date, and produit are required"})
		return
	}

	treatment, err := s.treatments.Append(r.Context(), req.Parcel, req.Date, req.Product, req.DoseKgHa)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, treatment)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	if since == "" {
		since = domain.Today().AddDate(0, 0, -7).Format(domain.DateFormat)
	}

	records, err := s.history.HighUrgency(r.Context(), since)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleIFT(w http.ResponseWriter, r *http.Request) {
	from, to, ok := periodParams(w, r)
	if !ok {
		return
	}

	treatments, err := s.treatments.Between(r.Context(), from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ComputeIFT(treatments, from, to))
}

// csvHeader is the campaign-history export column order.
var csvHeader = []string{
	"date", "parcelle", "stade", "gdd_cumul", "stade_estime",
	"bilan_hydrique_pct", "alerte_hydrique",
	"risque_mildiou_score", "risque_mildiou_niveau", "ipi",
	"risque_oidium_score", "risque_oidium_niveau",
	"protection_score", "facteur_limitant", "dernier_traitement",
	"decision_score", "urgence", "action", "pluie_3j",
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := periodParams(w, r)
	if !ok {
		return
	}

	records, err := s.history.Between(r.Context(), from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("historique_%s_%s.csv", from, to)))

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, rec := range records {
		_ = cw.Write(csvRow(rec))
	}
	cw.Flush()
}

func csvRow(rec domain.AnalysisRecord) []string {
	ipi := ""
	if rec.IPI != nil {
		ipi = strconv.Itoa(*rec.IPI)
	}
	return []string{
		rec.Date, rec.Parcel, string(rec.Stage), strconv.Itoa(rec.GDD), string(rec.EstimatedStage),
		formatFloat(rec.WaterPct), string(rec.WaterLevel),
		formatFloat(rec.RiskScore), string(rec.RiskLevel), ipi,
		formatFloat(rec.PowderyScore), string(rec.PowderyLevel),
		formatFloat(rec.ProtectionScore), rec.LimitingFactor, rec.LastTreatmentDate,
		formatFloat(rec.DecisionScore), string(rec.Urgency), rec.Action, formatFloat(rec.Rain3dMM),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// periodParams validates the from/to query pair shared by the IFT and export
// routes. Defaults to the current campaign year when omitted.
func periodParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	year := domain.Today().Year()
	from := r.URL.Query().Get("from")
	if from == "" {
		from = fmt.Sprintf("%d-01-01", year)
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = fmt.Sprintf("%d-12-31", year)
	}

	for _, v := range []string{from, to} {
		if _, err := domain.ParseDate(v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date: " + v})
			return "", "", false
		}
	}
	return from, to, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrParcelNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrUnknownStage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
