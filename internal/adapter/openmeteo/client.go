package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vitisense/vinesentry/internal/domain"
)

// maxPastDays is the archive depth Open-Meteo serves on the forecast
// endpoint; larger requests are clamped.
const maxPastDays = 90

// Client implements engine.WeatherProvider using the Open-Meteo forecast API.
// No API key is needed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// FetchDaily fetches pastDays of archive plus forecastDays ahead of daily
// weather for one location, keyed by ISO date.
func (c *Client) FetchDaily(ctx context.Context, lat, lon float64, pastDays, forecastDays int) (map[string]domain.WeatherDay, error) {
	if pastDays > maxPastDays {
		c.logger.Debug("clamping past_days", "requested", pastDays, "max", maxPastDays)
		pastDays = maxPastDays
	}

	params := url.Values{
		"latitude":  {fmt.Sprintf("%.4f", lat)},
		"longitude": {fmt.Sprintf("%.4f", lon)},
		"daily": {"temperature_2m_max,temperature_2m_min,precipitation_sum," +
			"relative_humidity_2m_mean,et0_fao_evapotranspiration"},
		"timezone":      {"Europe/Paris"},
		"past_days":     {strconv.Itoa(pastDays)},
		"forecast_days": {strconv.Itoa(forecastDays)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var omResp response
	if err := json.NewDecoder(resp.Body).Decode(&omResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return omResp.Daily.toDays(), nil
}

// Open-Meteo API response types. The daily block is parallel arrays indexed
// by the time axis; individual values may be null.

type response struct {
	Daily daily `json:"daily"`
}

type daily struct {
	Time          []string   `json:"time"`
	TempMax       []*float64 `json:"temperature_2m_max"`
	TempMin       []*float64 `json:"temperature_2m_min"`
	Precipitation []*float64 `json:"precipitation_sum"`
	Humidity      []*float64 `json:"relative_humidity_2m_mean"`
	ET0           []*float64 `json:"et0_fao_evapotranspiration"`
}

func (d daily) toDays() map[string]domain.WeatherDay {
	days := make(map[string]domain.WeatherDay, len(d.Time))
	for i, date := range d.Time {
		days[date] = domain.WeatherDay{
			TempMin:       at(d.TempMin, i),
			TempMax:       at(d.TempMax, i),
			Precipitation: at(d.Precipitation, i),
			Humidity:      at(d.Humidity, i),
			ETP:           at(d.ET0, i),
		}
	}
	return days
}

// at guards against a parallel array shorter than the time axis.
func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
