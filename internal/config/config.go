package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SQLitePath      string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Vineyard location, decimal degrees.
	Latitude  float64
	Longitude float64

	// Open-Meteo client configuration.
	WeatherBaseURL      string
	WeatherTimeout      time.Duration
	WeatherPastDays     int
	WeatherForecastDays int
	WeatherCacheTTL     time.Duration

	AnalysisInterval time.Duration

	// Kafka history publishing (feature-flagged via KAFKA_ENABLED).
	KafkaBrokers       []string
	KafkaAnalysisTopic string
	KafkaEnabled       bool

	// Model tuning.
	RFUMaxMM               float64
	BaseTempGDD            float64
	RainAlertMM            float64
	LowProtectionThreshold float64
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is folded in first without
// overriding already-exported variables.
func Load() (*Config, error) {
	// Ignore a missing .env: exported variables are the normal path in
	// deployment, the file is a development convenience.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	weatherTimeout, err := parseDuration("WEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("WEATHER_CACHE_TTL", "30m")
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration("ANALYSIS_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}

	lat, err := parseFloat("LATITUDE", "43.21")
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat("LONGITUDE", "5.54")
	if err != nil {
		return nil, err
	}
	rfuMax, err := parseFloat("RFU_MAX_MM", "100")
	if err != nil {
		return nil, err
	}
	baseTemp, err := parseFloat("BASE_TEMP_GDD", "10")
	if err != nil {
		return nil, err
	}
	rainAlert, err := parseFloat("RAIN_ALERT_MM", "10")
	if err != nil {
		return nil, err
	}
	lowProtection, err := parseFloat("LOW_PROTECTION_THRESHOLD", "5")
	if err != nil {
		return nil, err
	}

	pastDays, err := parseInt("WEATHER_PAST_DAYS", "90")
	if err != nil {
		return nil, err
	}
	forecastDays, err := parseInt("WEATHER_FORECAST_DAYS", "7")
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		SQLitePath:      envOrDefault("SQLITE_PATH", "vinesentry.db"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Latitude:  lat,
		Longitude: lon,

		WeatherBaseURL:      envOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherTimeout:      weatherTimeout,
		WeatherPastDays:     pastDays,
		WeatherForecastDays: forecastDays,
		WeatherCacheTTL:     cacheTTL,

		AnalysisInterval: interval,

		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAnalysisTopic: envOrDefault("KAFKA_ANALYSIS_TOPIC", "vineyard-analyses"),
		KafkaEnabled:       kafkaEnabled,

		RFUMaxMM:               rfuMax,
		BaseTempGDD:            baseTemp,
		RainAlertMM:            rainAlert,
		LowProtectionThreshold: lowProtection,
	}

	if cfg.Latitude < -90 || cfg.Latitude > 90 {
		return nil, errors.New("LATITUDE out of range")
	}
	if cfg.Longitude < -180 || cfg.Longitude > 180 {
		return nil, errors.New("LONGITUDE out of range")
	}
	if cfg.WeatherPastDays < 1 {
		return nil, errors.New("WEATHER_PAST_DAYS must be positive")
	}
	if cfg.WeatherForecastDays < 1 {
		return nil, errors.New("WEATHER_FORECAST_DAYS must be positive")
	}
	if cfg.RFUMaxMM <= 0 {
		return nil, errors.New("RFU_MAX_MM must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
