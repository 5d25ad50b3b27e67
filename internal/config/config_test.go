package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FORECAST_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Source.Driver)
	assert.Equal(t, "weewx.sdb", cfg.Source.SQLitePath)
	assert.Equal(t, 60, cfg.Forecast.LookbackDays)
	assert.Equal(t, 5*time.Minute, cfg.Forecast.Cadence)
	assert.Equal(t, time.Hour, cfg.Forecast.Window)
	assert.Equal(t, 24*time.Hour, cfg.Forecast.Horizon)
	assert.Equal(t, 500, cfg.Forecast.MinTrainingRows)
	assert.Equal(t, 150, cfg.Forecast.Trees)
	assert.Equal(t, 0.2, cfg.Forecast.TestFraction)
	assert.Equal(t, "weather_multi_model.zst", cfg.Storage.ModelPath)
	assert.Equal(t, "forecasts/forecasts.json", cfg.Storage.ForecastsPath)
	assert.Equal(t, "0 6 * * *", cfg.Scheduler.ForecastCron)
	assert.Equal(t, 3, cfg.CircuitBreaker.Threshold)

	assert.False(t, cfg.Seeded())
	assert.Equal(t, 60*24*time.Hour, cfg.Lookback())
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SOURCE_DRIVER", "http")
	t.Setenv("SOURCE_HTTP_URL", "http://station.local/api/archive")
	t.Setenv("FORECAST_SEED", "42")
	t.Setenv("FORECAST_TREES", "25")
	t.Setenv("FORECAST_TIMEZONE", "America/Chicago")
	t.Setenv("CIRCUIT_BREAKER_THRESHOLD", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Source.Driver)
	assert.Equal(t, "http://station.local/api/archive", cfg.Source.HTTPURL)
	assert.True(t, cfg.Seeded())
	assert.Equal(t, int64(42), cfg.Forecast.Seed)
	assert.Equal(t, 25, cfg.Forecast.Trees)
	assert.Equal(t, 5, cfg.CircuitBreaker.Threshold)
	assert.Equal(t, "America/Chicago", cfg.Location.String())
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"SOURCE_DRIVER": "postgres"}},
		{"http without url", map[string]string{"SOURCE_DRIVER": "http"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"test fraction out of range", map[string]string{"FORECAST_TEST_FRACTION": "1.5"}},
		{"seed below unseeded", map[string]string{"FORECAST_SEED": "-2"}},
		{"unknown time zone", map[string]string{"FORECAST_TIMEZONE": "Mars/Olympus"}},
		{"unparseable duration", map[string]string{"FORECAST_WINDOW": "an hour"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
