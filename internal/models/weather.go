package models

import (
	"math"
	"time"
)

// Observation is one archive record in station units (°F, inches, mph, miles).
// Missing sensor readings are NaN.
type Observation struct {
	Timestamp         time.Time `json:"timestamp"`
	Pressure          float64   `json:"pressure"`
	OutTemp           float64   `json:"out_temp"`
	OutHumidity       float64   `json:"out_humidity"`
	WindSpeed         float64   `json:"wind_speed"`
	Rain              float64   `json:"rain"`
	LightningStrikes  float64   `json:"lightning_strike_count"`
	LightningDistance float64   `json:"lightning_distance"`
}

// Feature column order shared by training and inference.
const (
	FeaturePressure = iota
	FeaturePressureChange
	FeatureOutTemp
	FeatureTempChange
	FeatureOutHumidity
	FeatureHumidityChange
	FeatureRollingRain
	FeatureWindAvg
	FeatureLightningCount
	FeatureLightningClosestKm
	FeatureMonth
	FeatureDayOfYear
	FeatureHour
	FeatureDoySin
	FeatureDoyCos
	NumFeatures
)

var FeatureNames = [NumFeatures]string{
	"pressure",
	"pressure_change",
	"out_temp",
	"temp_change",
	"out_humidity",
	"humidity_change",
	"rolling_rain",
	"wind_avg",
	"lightning_count_1h",
	"lightning_closest_km",
	"month",
	"day_of_year",
	"hour",
	"doy_sin",
	"doy_cos",
}

// FeatureVector is derived from the observation at Index and its trailing window.
type FeatureVector struct {
	Index     int
	Timestamp time.Time
	Values    [NumFeatures]float64
}

func (v FeatureVector) Get(feature int) float64 {
	return v.Values[feature]
}

// Slice returns a copy suitable for model input.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v.Values[:])
	return out
}

func (v FeatureVector) Valid() bool {
	for _, x := range v.Values {
		if math.IsNaN(x) {
			return false
		}
	}
	return true
}

type Condition string

const (
	ConditionClear  Condition = "Clear"
	ConditionCloudy Condition = "Cloudy"
	ConditionRain   Condition = "Rain"
	ConditionStorm  Condition = "Storm"
)

var Conditions = []Condition{ConditionClear, ConditionCloudy, ConditionRain, ConditionStorm}

type WindBand string

const (
	WindCalm        WindBand = "Calm"
	WindLightBreeze WindBand = "Light Breeze"
	WindStiffBreeze WindBand = "Stiff Breeze"
	WindWindy       WindBand = "Windy"
	WindHighWinds   WindBand = "High Winds"
)

var WindBands = []WindBand{WindCalm, WindLightBreeze, WindStiffBreeze, WindWindy, WindHighWinds}

type LabelSet struct {
	Condition  Condition
	Wind       WindBand
	FutureMaxF float64
	FutureMinF float64
}

// TrainingRow is a feature vector joined with the labels for the same timestamp.
type TrainingRow struct {
	Features FeatureVector
	Labels   LabelSet
}
