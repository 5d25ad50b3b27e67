package services

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"weather-predictor/internal/artifact"
	"weather-predictor/internal/models"
)

type Predictor struct {
	location *time.Location
	logger   *zap.Logger
}

func NewPredictor(location *time.Location, logger *zap.Logger) *Predictor {
	if location == nil {
		location = time.Local
	}
	return &Predictor{location: location, logger: logger}
}

// TemperatureEstimate is a regressor's per-tree summary in Celsius.
type TemperatureEstimate struct {
	Point      float64
	Margin     float64
	Confidence float64
}

// Predict scores v against every model in the bundle. now picks the record's
// calendar date in the predictor's location.
func (p *Predictor) Predict(bundle *artifact.Bundle, v models.FeatureVector, now time.Time) (*models.ForecastRecord, error) {
	for _, name := range artifact.RequiredModels {
		if bundle.Model(name) == nil {
			return nil, fmt.Errorf("model bundle %s has no %s model", bundle.RunID, name)
		}
	}
	x := v.Slice()

	weather := bundle.Model(artifact.ModelWeather)
	proba := weather.PredictProba(x)
	pStorm := weather.Probability(proba, string(models.ConditionStorm))
	pRain := weather.Probability(proba, string(models.ConditionRain)) + pStorm

	maxTemp := p.estimate("max_temp", bundle, artifact.ModelMaxTemp, x)
	minTemp := p.estimate("min_temp", bundle, artifact.ModelMinTemp, x)

	rec := &models.ForecastRecord{
		Date:                        now.In(p.location).Format(time.DateOnly),
		PredictedMinTemp:            models.Round1(minTemp.Point),
		PredictedMinTempError:       models.Round1(minTemp.Margin),
		PredictedMinTempRange:       rangeOf(minTemp),
		PredictedMinTempConfidence:  models.Round1(minTemp.Confidence),
		PredictedMaxTemp:            models.Round1(maxTemp.Point),
		PredictedMaxTempError:       models.Round1(maxTemp.Margin),
		PredictedMaxTempRange:       rangeOf(maxTemp),
		PredictedMaxTempConfidence:  models.Round1(maxTemp.Confidence),
		AIForecast:                  weather.PredictClass(x),
		AIWindForecast:              bundle.Model(artifact.ModelWind).PredictClass(x),
		ChanceOfRain:                models.Round1(100 * pRain),
		ChanceOfRainConfidence:      models.Round1(DecisionConfidence(pRain)),
		ChanceOfLightning:           models.Round1(100 * pStorm),
		ChanceOfLightningConfidence: models.Round1(DecisionConfidence(pStorm)),
	}

	p.logger.Info("Forecast generated",
		zap.String("date", rec.Date),
		zap.Time("features_at", v.Timestamp),
		zap.String("condition", rec.AIForecast),
		zap.String("wind", rec.AIWindForecast),
		zap.Float64("chance_of_rain", float64(rec.ChanceOfRain)),
		zap.Float64("chance_of_lightning", float64(rec.ChanceOfLightning)),
		zap.String("min_temp_range", rec.PredictedMinTempRange),
		zap.String("max_temp_range", rec.PredictedMaxTempRange))
	return rec, nil
}

func (p *Predictor) estimate(target string, bundle *artifact.Bundle, model string, x []float64) TemperatureEstimate {
	meanF, stdF := bundle.Model(model).Spread(x)
	est := TemperatureEstimate{
		Point:  FahrenheitToCelsius(meanF),
		Margin: stdF * 5 / 9,
	}
	est.Confidence = TemperatureConfidence(est.Point, est.Margin)

	if c := est.Confidence; math.IsNaN(c) || math.IsInf(c, 0) || c < 0 || c > 100 {
		warning := &models.DegenerateConfidenceWarning{
			Target:     target,
			Point:      est.Point,
			Margin:     est.Margin,
			Confidence: c,
		}
		p.logger.Warn("Temperature confidence out of range",
			zap.String("target", target),
			zap.Error(warning))
	}
	return est
}

func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// TemperatureConfidence treats twice the spread as a relative error against
// the point estimate. It is unstable near 0°C and is not clamped.
func TemperatureConfidence(point, margin float64) float64 {
	return 100 * (1 - 2*margin/point)
}

// DecisionConfidence is how far p leans from a coin flip, as a percentage.
func DecisionConfidence(p float64) float64 {
	return 100 * math.Max(p, 1-p)
}

func rangeOf(e TemperatureEstimate) string {
	return models.FormatRange(models.Round1(e.Point-e.Margin), models.Round1(e.Point+e.Margin))
}
