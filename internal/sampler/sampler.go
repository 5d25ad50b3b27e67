// Package sampler loads the ordered observation stream from the station.
package sampler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"weather-predictor/internal/config"
	"weather-predictor/internal/models"
	"weather-predictor/pkg/client"
)

type Source interface {
	Name() string
	Observations(ctx context.Context, since time.Time) ([]models.Observation, error)
}

// New builds the source selected by cfg.Source.Driver.
func New(cfg *config.Config, logger *zap.Logger) (Source, error) {
	switch cfg.Source.Driver {
	case "sqlite":
		return NewSQLiteSource(cfg.Source.SQLitePath, logger)
	case "http":
		clientConfig := client.ClientConfig{
			Timeout:        cfg.Source.HTTPTimeout,
			MaxRetries:     cfg.Retry.MaxRetries,
			RetryDelay:     cfg.Retry.Delay,
			Multiplier:     cfg.Retry.Multiplier,
			Threshold:      cfg.CircuitBreaker.Threshold,
			BreakerTimeout: cfg.CircuitBreaker.Timeout,
			RateLimit:      cfg.Source.HTTPRateLimit,
			Burst:          cfg.Source.HTTPBurst,
		}
		return NewHTTPSource(client.NewStationClient(cfg.Source.HTTPURL, clientConfig, logger)), nil
	default:
		return nil, fmt.Errorf("unknown source driver %q", cfg.Source.Driver)
	}
}

// Fetch reads observations newer than since and returns them ordered by time.
// Failures and empty results are reported as DataUnavailableError.
func Fetch(ctx context.Context, src Source, since time.Time, logger *zap.Logger) ([]models.Observation, error) {
	startTime := time.Now()

	obs, err := src.Observations(ctx, since)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: src.Name(), Reason: "query failed", Err: err}
	}
	if len(obs) == 0 {
		return nil, &models.DataUnavailableError{Source: src.Name(), Reason: fmt.Sprintf("no observations since %s", since.Format(time.RFC3339))}
	}

	if !slices.IsSortedFunc(obs, compareTimestamps) {
		logger.Warn("Observations out of order, sorting",
			zap.String("source", src.Name()))
		slices.SortStableFunc(obs, compareTimestamps)
	}

	logger.Info("Observations loaded",
		zap.String("source", src.Name()),
		zap.Int("count", len(obs)),
		zap.Time("first", obs[0].Timestamp),
		zap.Time("last", obs[len(obs)-1].Timestamp),
		zap.Duration("duration", time.Since(startTime)))
	return obs, nil
}

func compareTimestamps(a, b models.Observation) int {
	return a.Timestamp.Compare(b.Timestamp)
}

type HTTPSource struct {
	client *client.StationClient
}

func NewHTTPSource(c *client.StationClient) *HTTPSource {
	return &HTTPSource{client: c}
}

func (s *HTTPSource) Name() string {
	return "http"
}

func (s *HTTPSource) Observations(ctx context.Context, since time.Time) ([]models.Observation, error) {
	return s.client.GetObservations(ctx, since)
}
