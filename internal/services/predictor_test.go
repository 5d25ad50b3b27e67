package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"weather-predictor/internal/artifact"
	"weather-predictor/internal/ensemble"
	"weather-predictor/internal/models"
)

func leaves(kind ensemble.Kind, classes []string, values ...[]float64) *ensemble.Forest {
	f := &ensemble.Forest{Kind: kind, Classes: classes, Features: models.NumFeatures}
	for _, v := range values {
		f.Trees = append(f.Trees, &ensemble.Tree{Nodes: []ensemble.Node{{Feature: -1, Value: v}}})
	}
	return f
}

func handBuiltBundle() *artifact.Bundle {
	conditions := []string{"Clear", "Cloudy", "Rain", "Storm"}
	return artifact.NewBundle(time.Now(), map[string]*ensemble.Forest{
		artifact.ModelWeather: leaves(ensemble.Classification, conditions,
			[]float64{1, 0, 0, 0},
			[]float64{0, 0, 1, 0},
			[]float64{0, 0, 0, 1},
			[]float64{0, 0, 1, 0}),
		artifact.ModelWind: leaves(ensemble.Classification, []string{"Calm", "Light Breeze"},
			[]float64{0, 1},
			[]float64{0, 1},
			[]float64{1, 0}),
		artifact.ModelMaxTemp: leaves(ensemble.Regression, nil,
			[]float64{68}, []float64{70}, []float64{72}, []float64{74}),
		artifact.ModelMinTemp: leaves(ensemble.Regression, nil,
			[]float64{32}, []float64{32}, []float64{32}, []float64{32}),
	})
}

func TestPredict(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPredictor(time.UTC, zap.New(core))

	now := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	rec, err := p.Predict(handBuiltBundle(), models.FeatureVector{Timestamp: now}, now)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-01", rec.Date)
	assert.Equal(t, "Rain", rec.AIForecast)
	assert.Equal(t, "Light Breeze", rec.AIWindForecast)

	assert.Equal(t, models.Decimal(75), rec.ChanceOfRain)
	assert.Equal(t, models.Decimal(75), rec.ChanceOfRainConfidence)
	assert.Equal(t, models.Decimal(25), rec.ChanceOfLightning)
	assert.Equal(t, models.Decimal(75), rec.ChanceOfLightningConfidence)

	assert.Equal(t, models.Decimal(21.7), rec.PredictedMaxTemp)
	assert.Equal(t, models.Decimal(1.2), rec.PredictedMaxTempError)
	assert.Equal(t, "20.4 to 22.9", rec.PredictedMaxTempRange)
	assert.Equal(t, models.Decimal(88.5), rec.PredictedMaxTempConfidence)

	assert.Equal(t, models.Decimal(0), rec.PredictedMinTemp)
	assert.Equal(t, models.Decimal(0), rec.PredictedMinTempError)
	assert.Equal(t, "0.0 to 0.0", rec.PredictedMinTempRange)
	assert.True(t, math.IsNaN(float64(rec.PredictedMinTempConfidence)))

	warnings := logs.FilterMessage("Temperature confidence out of range").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "min_temp", warnings[0].ContextMap()["target"])
}

func TestPredictUsesLocationForDate(t *testing.T) {
	loc := time.FixedZone("UTC-6", -6*60*60)
	p := NewPredictor(loc, zap.NewNop())

	now := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)
	rec, err := p.Predict(handBuiltBundle(), models.FeatureVector{}, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", rec.Date)
}

func TestPredictRejectsIncompleteBundle(t *testing.T) {
	b := handBuiltBundle()
	delete(b.Models, artifact.ModelWind)

	_, err := NewPredictor(time.UTC, zap.NewNop()).Predict(b, models.FeatureVector{}, time.Now())
	assert.ErrorContains(t, err, "model bundle "+b.RunID+" has no wind model")
}

func TestTemperatureConfidence(t *testing.T) {
	tests := []struct {
		name   string
		point  float64
		margin float64
		want   float64
	}{
		{"typical", 20, 1, 90},
		{"no spread", 15, 0, 100},
		{"spread larger than point", 0.5, 1, -300},
		{"negative point", -5, 1, 140},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TemperatureConfidence(tt.point, tt.margin), 1e-9)
		})
	}

	assert.True(t, math.IsInf(TemperatureConfidence(0, 1), -1))
	assert.True(t, math.IsNaN(TemperatureConfidence(0, 0)))
}

func TestDecisionConfidence(t *testing.T) {
	assert.InDelta(t, 50.0, DecisionConfidence(0.5), 1e-9)
	assert.InDelta(t, 70.0, DecisionConfidence(0.3), 1e-9)
	assert.InDelta(t, 90.0, DecisionConfidence(0.9), 1e-9)
	assert.InDelta(t, 100.0, DecisionConfidence(0), 1e-9)
}

func TestFahrenheitToCelsius(t *testing.T) {
	assert.InDelta(t, 0.0, FahrenheitToCelsius(32), 1e-12)
	assert.InDelta(t, 100.0, FahrenheitToCelsius(212), 1e-12)
	assert.InDelta(t, -40.0, FahrenheitToCelsius(-40), 1e-12)
}
