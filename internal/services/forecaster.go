package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"weather-predictor/internal/artifact"
	"weather-predictor/internal/config"
	"weather-predictor/internal/ensemble"
	"weather-predictor/internal/features"
	"weather-predictor/internal/labels"
	"weather-predictor/internal/models"
	"weather-predictor/internal/sampler"
	"weather-predictor/internal/store"
)

type RunOptions struct {
	// Retrain forces training even when a usable artifact exists.
	Retrain bool
	// LookbackDays overrides the configured history length when positive.
	LookbackDays int
}

// Forecaster runs the pipeline: fetch observations, derive features, load or
// train the model bundle, predict and store the record.
type Forecaster struct {
	source    sampler.Source
	engineer  *features.Engineer
	labeler   *labels.Labeler
	trainer   *Trainer
	predictor *Predictor
	artifacts *artifact.Store
	forecasts *store.ForecastStore
	cache     *ModelCache
	lookback  int
	logger    *zap.Logger
	now       func() time.Time

	mu           sync.RWMutex
	lastRunTime  time.Time
	lastTrained  time.Time
	successCount int
	failureCount int
	retrainCount int
}

func NewForecaster(cfg *config.Config, source sampler.Source, logger *zap.Logger) *Forecaster {
	window := features.WindowSamples(cfg.Forecast.Window, cfg.Forecast.Cadence)
	horizon := features.WindowSamples(cfg.Forecast.Horizon, cfg.Forecast.Cadence)

	params := ensemble.Params{
		Trees:   cfg.Forecast.Trees,
		Workers: cfg.Forecast.Workers,
	}
	if cfg.Seeded() {
		params.Seed = uint64(cfg.Forecast.Seed)
	}

	logger.Info("Forecaster initialized",
		zap.String("source", source.Name()),
		zap.Int("window_samples", window),
		zap.Int("horizon_samples", horizon),
		zap.Int("trees", cfg.Forecast.Trees),
		zap.Bool("seeded", cfg.Seeded()))

	return &Forecaster{
		source:    source,
		engineer:  features.NewEngineer(window),
		labeler:   labels.NewLabeler(window, horizon, cfg.Forecast.MinTrainingRows),
		trainer:   NewTrainer(params, cfg.Seeded(), cfg.Forecast.TestFraction, logger),
		predictor: NewPredictor(cfg.Location, logger),
		artifacts: artifact.NewStore(cfg.Storage.ModelPath, logger),
		forecasts: store.NewForecastStore(cfg.Storage.ForecastsPath, logger),
		cache:     NewModelCache(cfg.Scheduler.ModelCacheTTL, logger),
		lookback:  cfg.Forecast.LookbackDays,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the wall clock used for lookback and record dates.
func (f *Forecaster) SetClock(now func() time.Time) {
	f.now = now
	f.cache.now = now
}

// Run produces and stores today's forecast.
func (f *Forecaster) Run(ctx context.Context, opts RunOptions) (*models.ForecastRecord, error) {
	startTime := time.Now()
	f.mu.Lock()
	f.lastRunTime = f.now()
	f.mu.Unlock()

	rec, err := f.run(ctx, opts)

	f.mu.Lock()
	if err != nil {
		f.failureCount++
	} else {
		f.successCount++
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Error("Forecast run failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
		return nil, err
	}

	f.logger.Info("Forecast run completed",
		zap.String("date", rec.Date),
		zap.Duration("duration", time.Since(startTime)))
	return rec, nil
}

func (f *Forecaster) run(ctx context.Context, opts RunOptions) (*models.ForecastRecord, error) {
	obs, err := f.fetch(ctx, opts.LookbackDays)
	if err != nil {
		return nil, err
	}

	vectors := f.engineer.Derive(obs)
	if len(vectors) == 0 {
		return nil, &models.DataUnavailableError{
			Source: f.source.Name(),
			Reason: fmt.Sprintf("%d observations are too few to derive features", len(obs)),
		}
	}

	bundle, err := f.model(ctx, obs, vectors, opts.Retrain)
	if err != nil {
		return nil, err
	}

	rec, err := f.predictor.Predict(bundle, vectors[len(vectors)-1], f.now())
	if err != nil {
		return nil, fmt.Errorf("predicting: %w", err)
	}
	if err := f.forecasts.Upsert(rec); err != nil {
		return nil, fmt.Errorf("storing forecast: %w", err)
	}
	return rec, nil
}

// Retrain fetches fresh history and replaces the model bundle without
// producing a forecast.
func (f *Forecaster) Retrain(ctx context.Context, lookbackDays int) (*TrainingReport, error) {
	obs, err := f.fetch(ctx, lookbackDays)
	if err != nil {
		return nil, err
	}
	_, report, err := f.train(ctx, obs, f.engineer.Derive(obs))
	return report, err
}

func (f *Forecaster) fetch(ctx context.Context, lookbackDays int) ([]models.Observation, error) {
	if lookbackDays <= 0 {
		lookbackDays = f.lookback
	}
	since := f.now().Add(-time.Duration(lookbackDays) * 24 * time.Hour)
	return sampler.Fetch(ctx, f.source, since, f.logger)
}

// model returns the bundle to predict with. Missing, corrupt or outdated
// artifacts fall back to a full retrain.
func (f *Forecaster) model(ctx context.Context, obs []models.Observation, vectors []models.FeatureVector, retrain bool) (*artifact.Bundle, error) {
	if retrain {
		f.logger.Info("Retrain requested, training new model")
		bundle, _, err := f.train(ctx, obs, vectors)
		return bundle, err
	}

	if bundle, ok := f.cache.Get(); ok {
		f.logger.Debug("Using cached model bundle", zap.String("run_id", bundle.RunID))
		return bundle, nil
	}

	bundle, err := f.artifacts.Load()
	if err == nil {
		f.cache.Set(bundle)
		return bundle, nil
	}
	if !models.NeedsRetrain(err) {
		return nil, fmt.Errorf("loading model: %w", err)
	}

	if errors.Is(err, models.ErrArtifactNotFound) {
		f.logger.Info("No existing model found, training new model",
			zap.String("path", f.artifacts.Path()))
	} else {
		f.logger.Warn("Existing model unusable, retraining",
			zap.String("path", f.artifacts.Path()),
			zap.Error(err))
	}
	bundle, _, err = f.train(ctx, obs, vectors)
	return bundle, err
}

func (f *Forecaster) train(ctx context.Context, obs []models.Observation, vectors []models.FeatureVector) (*artifact.Bundle, *TrainingReport, error) {
	rows, err := f.labeler.Label(obs, vectors)
	if err != nil {
		return nil, nil, err
	}

	f.logger.Info("Training models",
		zap.Int("observations", len(obs)),
		zap.Int("feature_rows", len(vectors)),
		zap.Int("labeled_rows", len(rows)))

	bundle, report, err := f.trainer.Train(ctx, rows)
	if err != nil {
		return nil, nil, err
	}
	if err := f.artifacts.Save(bundle); err != nil {
		return nil, nil, fmt.Errorf("saving model: %w", err)
	}

	f.cache.Invalidate()
	f.cache.Set(bundle)

	f.mu.Lock()
	f.lastTrained = f.now()
	f.retrainCount++
	f.mu.Unlock()
	return bundle, report, nil
}

func (f *Forecaster) GetLastRunTime() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastRunTime
}

func (f *Forecaster) GetStats() map[string]interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return map[string]interface{}{
		"last_run_time": f.lastRunTime,
		"last_trained":  f.lastTrained,
		"success_count": f.successCount,
		"failure_count": f.failureCount,
		"retrain_count": f.retrainCount,
		"source":        f.source.Name(),
		"model_cache":   f.cache.GetStats(),
	}
}
