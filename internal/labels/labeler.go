// Package labels builds training targets by looking ahead over the forecast
// horizon.
package labels

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"weather-predictor/internal/models"
)

const (
	StormRainThreshold      = 2.0
	StormWindThreshold      = 20.0
	StormStrikeThreshold    = 1.0
	StormStrikeDistanceKm   = 15.0
	RainThreshold           = 0.2
	CloudyHumidityThreshold = 80.0
	CloudyTempStdThreshold  = 1.0

	DefaultMinRows = 500
)

// Inputs holds everything the condition rules look at for one row.
type Inputs struct {
	Features   models.FeatureVector
	FutureRain float64
	FutureWind float64
	TempStd    float64
}

type Rule struct {
	Condition models.Condition
	Match     func(in Inputs) bool
}

// Rules are evaluated in order; the first match wins and Clear is the fallback.
var Rules = []Rule{
	{
		Condition: models.ConditionStorm,
		Match: func(in Inputs) bool {
			wet := in.FutureRain > StormRainThreshold && in.FutureWind > StormWindThreshold
			strikes := in.Features.Get(models.FeatureLightningCount) > StormStrikeThreshold &&
				in.Features.Get(models.FeatureLightningClosestKm) < StormStrikeDistanceKm
			return wet || strikes
		},
	},
	{
		Condition: models.ConditionRain,
		Match: func(in Inputs) bool {
			return in.FutureRain > RainThreshold
		},
	},
	{
		Condition: models.ConditionCloudy,
		Match: func(in Inputs) bool {
			return in.Features.Get(models.FeatureOutHumidity) > CloudyHumidityThreshold &&
				in.TempStd < CloudyTempStdThreshold
		},
	},
}

func Classify(in Inputs) models.Condition {
	for _, r := range Rules {
		if r.Match(in) {
			return r.Condition
		}
	}
	return models.ConditionClear
}

// WindBandFor bins a mean wind speed (mph) into right-closed bands.
func WindBandFor(speed float64) models.WindBand {
	switch {
	case speed <= 3:
		return models.WindCalm
	case speed <= 5:
		return models.WindLightBreeze
	case speed <= 10:
		return models.WindStiffBreeze
	case speed <= 25:
		return models.WindWindy
	default:
		return models.WindHighWinds
	}
}

type Labeler struct {
	window  int
	horizon int
	minRows int
}

// NewLabeler builds a labeler with a trailing window and a forward horizon,
// both in samples.
func NewLabeler(window, horizon, minRows int) *Labeler {
	return &Labeler{window: window, horizon: horizon, minRows: minRows}
}

func (l *Labeler) Horizon() int {
	return l.horizon
}

// Label joins feature vectors with their look-ahead labels. Rows whose horizon
// runs past the end of obs are dropped.
func (l *Labeler) Label(obs []models.Observation, vectors []models.FeatureVector) ([]models.TrainingRow, error) {
	rain := forwardFill(obs, func(o models.Observation) float64 { return o.Rain })
	wind := forwardFill(obs, func(o models.Observation) float64 { return o.WindSpeed })
	temp := forwardFill(obs, func(o models.Observation) float64 { return o.OutTemp })

	rows := make([]models.TrainingRow, 0, len(vectors))
	for _, v := range vectors {
		labels, ok := l.labelAt(v, rain, wind, temp)
		if !ok {
			continue
		}
		rows = append(rows, models.TrainingRow{Features: v, Labels: labels})
	}

	if len(rows) < l.minRows {
		return nil, &models.InsufficientTrainingDataError{Rows: len(rows), Minimum: l.minRows}
	}
	return rows, nil
}

func (l *Labeler) labelAt(v models.FeatureVector, rain, wind, temp []float64) (models.LabelSet, bool) {
	i := v.Index
	end := i + l.horizon
	if l.horizon < 1 || end >= len(temp) {
		return models.LabelSet{}, false
	}

	futureRain := 0.0
	futureWind := math.Inf(-1)
	maxTemp, minTemp := math.Inf(-1), math.Inf(1)
	for j := i + 1; j <= end; j++ {
		futureRain += rain[j]
		futureWind = math.Max(futureWind, wind[j])
		maxTemp = math.Max(maxTemp, temp[j])
		minTemp = math.Min(minTemp, temp[j])
	}
	if math.IsNaN(futureRain) || math.IsNaN(futureWind) || math.IsNaN(maxTemp) || math.IsNaN(minTemp) {
		return models.LabelSet{}, false
	}

	in := Inputs{
		Features:   v,
		FutureRain: futureRain,
		FutureWind: futureWind,
		TempStd:    l.trailingStd(temp, i),
	}
	return models.LabelSet{
		Condition:  Classify(in),
		Wind:       WindBandFor(v.Get(models.FeatureWindAvg)),
		FutureMaxF: maxTemp,
		FutureMinF: minTemp,
	}, true
}

// trailingStd is the sample standard deviation of the window ending at i.
func (l *Labeler) trailingStd(series []float64, i int) float64 {
	start := i - l.window + 1
	if start < 0 || l.window < 2 {
		return math.NaN()
	}
	return stat.StdDev(series[start:i+1], nil)
}

func forwardFill(obs []models.Observation, field func(models.Observation) float64) []float64 {
	out := make([]float64, len(obs))
	last := math.NaN()
	for i, o := range obs {
		if x := field(o); !math.IsNaN(x) {
			last = x
		}
		out[i] = last
	}
	return out
}
