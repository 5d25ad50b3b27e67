// Package testutil builds synthetic station streams for tests.
package testutil

import (
	"math"
	"time"

	"weather-predictor/internal/models"
)

const Cadence = 5 * time.Minute

var Start = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

// Flat returns n dry, calm, moderate-humidity observations at Cadence.
func Flat(n int) []models.Observation {
	obs := make([]models.Observation, n)
	for i := range obs {
		obs[i] = models.Observation{
			Timestamp:         Start.Add(time.Duration(i) * Cadence),
			Pressure:          30.0,
			OutTemp:           68.0,
			OutHumidity:       50.0,
			WindSpeed:         4.0,
			Rain:              0,
			LightningStrikes:  0,
			LightningDistance: math.NaN(),
		}
	}
	return obs
}

// Varied returns n observations with a daily temperature cycle, drifting
// pressure and humidity, and occasional showers, so every label has support.
func Varied(n int) []models.Observation {
	obs := Flat(n)
	perDay := float64(24 * time.Hour / Cadence)
	for i := range obs {
		phase := 2 * math.Pi * float64(i) / perDay
		obs[i].OutTemp = 60 + 12*math.Sin(phase) + 3*math.Sin(phase/3.7)
		obs[i].Pressure = 30 + 0.2*math.Sin(phase/2.3)
		obs[i].OutHumidity = 65 + 25*math.Cos(phase/1.9)
		obs[i].WindSpeed = math.Max(0, 6+5*math.Sin(phase*1.7)+4*math.Sin(phase/4.1))
		if math.Sin(phase/2.9) > 0.8 {
			obs[i].Rain = 0.03
		}
		if math.Sin(phase/5.3) > 0.97 {
			obs[i].Rain = 0.12
			obs[i].WindSpeed += 18
		}
		if math.Sin(phase/3.1) > 0.985 {
			obs[i].LightningStrikes = 2
			obs[i].LightningDistance = 5
		}
	}
	return obs
}
