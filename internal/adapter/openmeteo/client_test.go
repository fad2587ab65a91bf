package openmeteo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_FetchDaily_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "43.2100", q.Get("latitude"))
		assert.Equal(t, "5.5400", q.Get("longitude"))
		assert.Equal(t, "Europe/Paris", q.Get("timezone"))
		assert.Equal(t, "30", q.Get("past_days"))
		assert.Equal(t, "7", q.Get("forecast_days"))
		assert.Contains(t, q.Get("daily"), "et0_fao_evapotranspiration")

		resp := response{Daily: daily{
			Time:          []string{"2026-06-09", "2026-06-10"},
			TempMax:       []*float64{fp(26.1), fp(24.3)},
			TempMin:       []*float64{fp(15.2), fp(14.8)},
			Precipitation: []*float64{fp(0), fp(6.4)},
			Humidity:      []*float64{fp(55), fp(88)},
			ET0:           []*float64{fp(5.1), fp(3.2)},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	days, err := testClient(srv.URL).FetchDaily(context.Background(), 43.21, 5.54, 30, 7)
	require.NoError(t, err)

	require.Len(t, days, 2)
	day := days["2026-06-10"]
	require.NotNil(t, day.TempMax)
	assert.Equal(t, 24.3, *day.TempMax)
	require.NotNil(t, day.Precipitation)
	assert.Equal(t, 6.4, *day.Precipitation)
	require.NotNil(t, day.ETP)
	assert.Equal(t, 3.2, *day.ETP)
}

func TestClient_FetchDaily_NullValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Open-Meteo nulls sensor gaps instead of omitting the day.
		_, err := w.Write([]byte(`{"daily":{
			"time":["2026-06-10"],
			"temperature_2m_max":[null],
			"temperature_2m_min":[14.8],
			"precipitation_sum":[null],
			"relative_humidity_2m_mean":[88],
			"et0_fao_evapotranspiration":[null]}}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	days, err := testClient(srv.URL).FetchDaily(context.Background(), 43.21, 5.54, 1, 1)
	require.NoError(t, err)

	day := days["2026-06-10"]
	assert.Nil(t, day.TempMax)
	assert.Nil(t, day.Precipitation)
	assert.Nil(t, day.ETP)
	require.NotNil(t, day.TempMin)
	assert.Equal(t, 14.8, *day.TempMin)
}

func TestClient_FetchDaily_ClampsPastDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "90", r.URL.Query().Get("past_days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"daily":{"time":[]}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDaily(context.Background(), 43.21, 5.54, 365, 7)
	require.NoError(t, err)
}

func TestClient_FetchDaily_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":true,"reason":"invalid coordinates"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchDaily(context.Background(), 43.21, 5.54, 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestClient_FetchDaily_ShortParallelArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"daily":{
			"time":["2026-06-09","2026-06-10"],
			"temperature_2m_max":[26.1]}}`))
	}))
	defer srv.Close()

	days, err := testClient(srv.URL).FetchDaily(context.Background(), 43.21, 5.54, 1, 1)
	require.NoError(t, err)

	require.Len(t, days, 2)
	assert.NotNil(t, days["2026-06-09"].TempMax)
	assert.Nil(t, days["2026-06-10"].TempMax)
}
