package store

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weather-predictor/internal/models"
)

func record(date string, maxTemp float64) *models.ForecastRecord {
	return &models.ForecastRecord{
		Date:                  date,
		PredictedMaxTemp:      models.Round1(maxTemp),
		PredictedMaxTempRange: models.FormatRange(models.Round1(maxTemp-1), models.Round1(maxTemp+1)),
		AIForecast:            "Clear",
		AIWindForecast:        "Calm",
		ChanceOfRain:          models.Round1(12.5),
	}
}

func TestUpsertReplacesSameDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecasts", "forecasts.json")
	s := NewForecastStore(path, zap.NewNop())

	require.NoError(t, s.Upsert(record("2025-06-01", 20)))
	require.NoError(t, s.Upsert(record("2025-06-02", 21)))
	require.NoError(t, s.Upsert(record("2025-06-01", 25)))

	dates, err := s.Dates()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2025-06-01", "2025-06-02"}, dates)

	got, ok, err := s.Get("2025-06-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Decimal(25), got.PredictedMaxTemp)
	assert.Equal(t, "24.0 to 26.0", got.PredictedMaxTempRange)

	_, ok, err = s.Get("2025-06-03")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertPreservesForeignEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecasts.json")
	existing := `{
    "2024-12-31": {"date": "2024-12-31", "predicted_mean_temp": 4.2, "ai_forecast": "Rain"}
}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	s := NewForecastStore(path, zap.NewNop())
	require.NoError(t, s.Upsert(record("2025-01-01", 5)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var all map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &all))
	require.Len(t, all, 2)
	assert.Equal(t, 4.2, all["2024-12-31"]["predicted_mean_temp"])
	assert.Equal(t, "Rain", all["2024-12-31"]["ai_forecast"])
	assert.Equal(t, "2025-01-01", all["2025-01-01"]["date"])
	assert.Contains(t, string(data), "\n    \"2025-01-01\"")
}

func TestUpsertWritesNullForNonFinite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecasts.json")
	s := NewForecastStore(path, zap.NewNop())

	rec := record("2025-01-01", 0)
	rec.PredictedMinTempConfidence = models.Decimal(math.Inf(-1))
	require.NoError(t, s.Upsert(rec))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var all map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &all))
	v, ok := all["2025-01-01"]["predicted_min_temp_confidence"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestUpsertRejectsMissingDate(t *testing.T) {
	s := NewForecastStore(filepath.Join(t.TempDir(), "f.json"), zap.NewNop())
	assert.Error(t, s.Upsert(&models.ForecastRecord{}))
}

func TestCorruptFileIsNotOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecasts.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewForecastStore(path, zap.NewNop())
	assert.Error(t, s.Upsert(record("2025-01-01", 5)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestUpsertIntoNullFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecasts.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

	s := NewForecastStore(path, zap.NewNop())
	require.NoError(t, s.Upsert(record("2025-01-01", 5)))

	dates, err := s.Dates()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01"}, dates)
}
