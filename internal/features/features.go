// Package features derives model inputs from the raw observation stream.
package features

import (
	"iter"
	"math"
	"slices"
	"time"

	"weather-predictor/internal/models"
)

const (
	// NoStrikeDistanceKm stands in for the closest strike when none occurred.
	NoStrikeDistanceKm = 1000.0

	milesToKm = 1.609344
	yearDays  = 365.25
)

// WindowSamples converts a duration into a whole number of samples at cadence.
func WindowSamples(d, cadence time.Duration) int {
	if cadence <= 0 {
		return 0
	}
	n := int(math.Round(float64(d) / float64(cadence)))
	if n < 1 {
		n = 1
	}
	return n
}

type Engineer struct {
	window int
}

// NewEngineer returns an engineer whose deltas and rolling aggregates span
// window samples.
func NewEngineer(window int) *Engineer {
	if window < 1 {
		window = 1
	}
	return &Engineer{window: window}
}

func (e *Engineer) Window() int {
	return e.window
}

// Vectors yields one feature vector per observation, skipping rows that are
// still undefined after forward-fill.
func (e *Engineer) Vectors(obs []models.Observation) iter.Seq[models.FeatureVector] {
	return func(yield func(models.FeatureVector) bool) {
		var filled [models.NumFeatures]float64
		for f := range filled {
			filled[f] = math.NaN()
		}

		for i := range obs {
			raw := e.raw(obs, i)
			for f, x := range raw {
				if !math.IsNaN(x) {
					filled[f] = x
				}
			}

			v := models.FeatureVector{
				Index:     i,
				Timestamp: obs[i].Timestamp,
				Values:    filled,
			}
			if !v.Valid() {
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

func (e *Engineer) Derive(obs []models.Observation) []models.FeatureVector {
	return slices.Collect(e.Vectors(obs))
}

// Latest returns the feature vector for the most recent usable observation.
func (e *Engineer) Latest(obs []models.Observation) (models.FeatureVector, bool) {
	var last models.FeatureVector
	found := false
	for v := range e.Vectors(obs) {
		last = v
		found = true
	}
	return last, found
}

// raw computes the features at i before forward-fill. Undefined inputs give NaN.
func (e *Engineer) raw(obs []models.Observation, i int) [models.NumFeatures]float64 {
	var out [models.NumFeatures]float64
	o := obs[i]

	out[models.FeaturePressure] = o.Pressure
	out[models.FeatureOutTemp] = o.OutTemp
	out[models.FeatureOutHumidity] = o.OutHumidity

	out[models.FeaturePressureChange] = e.delta(obs, i, func(o models.Observation) float64 { return o.Pressure })
	out[models.FeatureTempChange] = e.delta(obs, i, func(o models.Observation) float64 { return o.OutTemp })
	out[models.FeatureHumidityChange] = e.delta(obs, i, func(o models.Observation) float64 { return o.OutHumidity })

	out[models.FeatureRollingRain] = e.rollingSum(obs, i, func(o models.Observation) float64 { return o.Rain })
	out[models.FeatureWindAvg] = e.rollingSum(obs, i, func(o models.Observation) float64 { return o.WindSpeed }) / float64(e.window)

	count, closest := e.lightning(obs, i)
	out[models.FeatureLightningCount] = count
	out[models.FeatureLightningClosestKm] = closest

	month, doy, hour, sin, cos := Calendar(o.Timestamp)
	out[models.FeatureMonth] = month
	out[models.FeatureDayOfYear] = doy
	out[models.FeatureHour] = hour
	out[models.FeatureDoySin] = sin
	out[models.FeatureDoyCos] = cos

	return out
}

func (e *Engineer) delta(obs []models.Observation, i int, field func(models.Observation) float64) float64 {
	if i < e.window {
		return math.NaN()
	}
	return field(obs[i]) - field(obs[i-e.window])
}

// rollingSum needs a full window; any NaN inside it propagates.
func (e *Engineer) rollingSum(obs []models.Observation, i int, field func(models.Observation) float64) float64 {
	start := i - e.window + 1
	if start < 0 {
		return math.NaN()
	}
	sum := 0.0
	for j := start; j <= i; j++ {
		sum += field(obs[j])
	}
	return sum
}

func (e *Engineer) lightning(obs []models.Observation, i int) (count, closestKm float64) {
	count = e.rollingSum(obs, i, func(o models.Observation) float64 { return o.LightningStrikes })
	if math.IsNaN(count) {
		return math.NaN(), math.NaN()
	}

	closestKm = NoStrikeDistanceKm
	seen := false
	for j := i - e.window + 1; j <= i; j++ {
		o := obs[j]
		if o.LightningStrikes <= 0 || math.IsNaN(o.LightningDistance) {
			continue
		}
		km := o.LightningDistance * milesToKm
		if !seen || km < closestKm {
			closestKm = km
			seen = true
		}
	}
	return count, closestKm
}

// Calendar returns month, day of year, hour and the annual sin/cos encoding.
func Calendar(t time.Time) (month, doy, hour, sin, cos float64) {
	d := float64(t.YearDay())
	angle := 2 * math.Pi * d / yearDays
	return float64(t.Month()), d, float64(t.Hour()), math.Sin(angle), math.Cos(angle)
}
