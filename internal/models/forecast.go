package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// Decimal is a one-decimal number. Non-finite values encode as null.
type Decimal float64

func Round1(x float64) Decimal {
	r := math.Round(x*10) / 10
	if r == 0 {
		r = 0 // drop negative zero
	}
	return Decimal(r)
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', 1, 64)), nil
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Decimal(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*d = Decimal(f)
	return nil
}

func (d Decimal) String() string {
	return strconv.FormatFloat(float64(d), 'f', 1, 64)
}

// ForecastRecord is one day's forecast as written to forecasts.json.
type ForecastRecord struct {
	Date                        string  `json:"date"`
	PredictedMinTemp            Decimal `json:"predicted_min_temp"`
	PredictedMinTempError       Decimal `json:"predicted_min_temp_error"`
	PredictedMinTempRange       string  `json:"predicted_min_temp_range"`
	PredictedMinTempConfidence  Decimal `json:"predicted_min_temp_confidence"`
	PredictedMaxTemp            Decimal `json:"predicted_max_temp"`
	PredictedMaxTempError       Decimal `json:"predicted_max_temp_error"`
	PredictedMaxTempRange       string  `json:"predicted_max_temp_range"`
	PredictedMaxTempConfidence  Decimal `json:"predicted_max_temp_confidence"`
	AIForecast                  string  `json:"ai_forecast"`
	AIWindForecast              string  `json:"ai_wind_forecast"`
	ChanceOfRain                Decimal `json:"chance_of_rain"`
	ChanceOfRainConfidence      Decimal `json:"chance_of_rain_confidence"`
	ChanceOfLightning           Decimal `json:"chance_of_lightning"`
	ChanceOfLightningConfidence Decimal `json:"chance_of_lightning_confidence"`
}

// FormatRange renders an inclusive range as "{min} to {max}".
func FormatRange(min, max Decimal) string {
	return min.String() + " to " + max.String()
}
