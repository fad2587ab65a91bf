package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/vitisense/vinesentry/internal/adapter/http"
	"github.com/vitisense/vinesentry/internal/adapter/store"
	"github.com/vitisense/vinesentry/internal/domain"
	"github.com/vitisense/vinesentry/internal/engine"
)

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRunner struct {
	analysis domain.Analysis
	err      error
}

func (m *mockRunner) AnalyzeParcelNow(_ context.Context, name string) (domain.Analysis, error) {
	if m.err != nil {
		return domain.Analysis{}, m.err
	}
	a := m.analysis
	a.Parcel = name
	return a, nil
}

func (m *mockRunner) AnalyzeAllNow(_ context.Context) ([]domain.Analysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []domain.Analysis{m.analysis}, nil
}

type mockTreatments struct {
	appended   []string
	treatments []domain.Treatment
	err        error
}

func (m *mockTreatments) Append(_ context.Context, parcel, date, product string, doseKgHa float64) (domain.Treatment, error) {
	if m.err != nil {
		return domain.Treatment{}, m.err
	}
	m.appended = append(m.appended, parcel)
	carac, ok := domain.CatalogLookup(product)
	if !ok {
		carac = domain.DefaultFungicide(product)
	}
	if doseKgHa <= 0 {
		doseKgHa = carac.ReferenceDoseKgHa
	}
	return domain.Treatment{Parcel: parcel, Date: date, Product: product, DoseKgHa: doseKgHa, Characteristics: carac}, nil
}

func (m *mockTreatments) Between(_ context.Context, _, _ string) ([]domain.Treatment, error) {
	return m.treatments, m.err
}

type mockStages struct {
	updated map[string]domain.Stage
	err     error
}

func (m *mockStages) UpdateStage(_ context.Context, name string, stage domain.Stage) error {
	if m.err != nil {
		return m.err
	}
	if m.updated == nil {
		m.updated = map[string]domain.Stage{}
	}
	m.updated[name] = stage
	return nil
}

type mockHistory struct {
	records []domain.AnalysisRecord
	err     error
}

func (m *mockHistory) ListParcel(_ context.Context, _ string, _ int) ([]domain.AnalysisRecord, error) {
	return m.records, m.err
}

func (m *mockHistory) HighUrgency(_ context.Context, _ string) ([]domain.AnalysisRecord, error) {
	return m.records, m.err
}

func (m *mockHistory) Between(_ context.Context, _, _ string) ([]domain.AnalysisRecord, error) {
	return m.records, m.err
}

type serverMocks struct {
	ready      *mockReadiness
	runner     *mockRunner
	treatments *mockTreatments
	stages     *mockStages
	history    *mockHistory
}

func newTestServer(m serverMocks) *httpadapter.Server {
	if m.ready == nil {
		m.ready = &mockReadiness{}
	}
	if m.runner == nil {
		m.runner = &mockRunner{}
	}
	if m.treatments == nil {
		m.treatments = &mockTreatments{}
	}
	if m.stages == nil {
		m.stages = &mockStages{}
	}
	if m.history == nil {
		m.history = &mockHistory{}
	}
	return httpadapter.NewServer(":0", m.ready, m.runner, m.treatments, m.stages, m.history, slog.Default())
}

func doRequest(srv *httpadapter.Server, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	srv.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHealthzReturns200(t *testing.T) {
	rec := doRequest(newTestServer(serverMocks{}), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := doRequest(newTestServer(serverMocks{}), http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(serverMocks{ready: &mockReadiness{err: fmt.Errorf("not ready yet")}})
	rec := doRequest(srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(newTestServer(serverMocks{}), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAnalyzeParcel(t *testing.T) {
	runner := &mockRunner{analysis: domain.Analysis{
		Date:     "2026-06-10",
		Stage:    domain.StageFloraison,
		Decision: domain.Decision{Urgency: domain.UrgencyHaute},
	}}
	rec := doRequest(newTestServer(serverMocks{runner: runner}),
		http.MethodGet, "/api/v1/parcels/Le%20Clos/analysis", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var analysis domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, "Le Clos", analysis.Parcel)
	assert.Equal(t, domain.UrgencyHaute, analysis.Decision.Urgency)
}

func TestAnalyzeParcel_NotFound(t *testing.T) {
	runner := &mockRunner{err: engine.ErrParcelNotFound}
	rec := doRequest(newTestServer(serverMocks{runner: runner}),
		http.MethodGet, "/api/v1/parcels/inconnue/analysis", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeAll(t *testing.T) {
	runner := &mockRunner{analysis: domain.Analysis{Parcel: "Le Clos", Date: "2026-06-10"}}
	rec := doRequest(newTestServer(serverMocks{runner: runner}), http.MethodGet, "/api/v1/analyses", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var analyses []domain.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analyses))
	require.Len(t, analyses, 1)
}

func TestAppendTreatment(t *testing.T) {
	treatments := &mockTreatments{}
	body := `{"parcelle":"Le Clos","date":"2026-06-10","produit":"bouillie_bordelaise","dose_kg_ha":2.0}`
	rec := doRequest(newTestServer(serverMocks{treatments: treatments}),
		http.MethodPost, "/api/v1/treatments", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"Le Clos"}, treatments.appended)

	var tr domain.Treatment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, "Bouillie bordelaise", tr.Characteristics.Name)
}

func TestAppendTreatment_MissingFields(t *testing.T) {
	rec := doRequest(newTestServer(serverMocks{}),
		http.MethodPost, "/api/v1/treatments", `{"parcelle":"Le Clos"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateStage(t *testing.T) {
	stages := &mockStages{}
	rec := doRequest(newTestServer(serverMocks{stages: stages}),
		http.MethodPut, "/api/v1/parcels/Le%20Clos/stage", `{"stade":"floraison"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StageFloraison, stages.updated["Le Clos"])
}

func TestUpdateStage_UnknownStage(t *testing.T) {
	stages := &mockStages{err: fmt.Errorf("%w: %q", store.ErrUnknownStage, "pleine_lune")}
	rec := doRequest(newTestServer(serverMocks{stages: stages}),
		http.MethodPut, "/api/v1/parcels/Le%20Clos/stage", `{"stade":"pleine_lune"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIFT(t *testing.T) {
	carac, _ := domain.CatalogLookup("bouillie_bordelaise")
	treatments := &mockTreatments{treatments: []domain.Treatment{{
		Parcel: "Le Clos", Date: "2026-05-10", Product: "bouillie_bordelaise",
		DoseKgHa: 2.0, Characteristics: carac,
	}}}
	rec := doRequest(newTestServer(serverMocks{treatments: treatments}),
		http.MethodGet, "/api/v1/ift?from=2026-03-01&to=2026-08-31", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var summary domain.IFTSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1.0, summary.Total)
	assert.Equal(t, 1, summary.Count)
}

func TestIFT_InvalidDate(t *testing.T) {
	rec := doRequest(newTestServer(serverMocks{}),
		http.MethodGet, "/api/v1/ift?from=03/01/2026", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCSV(t *testing.T) {
	ipi := 45
	history := &mockHistory{records: []domain.AnalysisRecord{{
		Date: "2026-06-10", Parcel: "Le Clos", Stage: domain.StageFloraison,
		GDD: 620, RiskScore: 8.4, RiskLevel: domain.RiskFort, IPI: &ipi,
		Urgency: domain.UrgencyHaute, Action: "TRAITER",
	}}}
	rec := doRequest(newTestServer(serverMocks{history: history}),
		http.MethodGet, "/api/v1/history/export?from=2026-01-01&to=2026-12-31", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "date,parcelle,stade"))
	assert.Contains(t, lines[1], "2026-06-10,Le Clos,floraison,620")
	assert.Contains(t, lines[1], ",45,")
}

func TestAlerts(t *testing.T) {
	history := &mockHistory{records: []domain.AnalysisRecord{
		{Date: "2026-06-10", Parcel: "Le Clos", Urgency: domain.UrgencyHaute},
	}}
	rec := doRequest(newTestServer(serverMocks{history: history}), http.MethodGet, "/api/v1/alerts", "")

	assert.Equal(t, http.StatusOK, rec.Code)

	var records []domain.AnalysisRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	runner := &mockRunner{err: errors.New("sqlite: database is locked")}
	rec := doRequest(newTestServer(serverMocks{runner: runner}), http.MethodGet, "/api/v1/analyses", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sqlite")
}
