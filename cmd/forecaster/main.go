package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"weather-predictor/internal/config"
	"weather-predictor/internal/models"
	"weather-predictor/internal/sampler"
	"weather-predictor/internal/scheduler"
	"weather-predictor/internal/services"
)

func main() {
	retrain := flag.Bool("retrain", false, "Retrain the model even if a saved model exists")
	lookbackDays := flag.Int("lookback-days", 0, "Days of history to load (default from FORECAST_LOOKBACK_DAYS, 60)")
	daemon := flag.Bool("daemon", false, "Run forecast and retrain jobs on their cron schedules")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: forecaster [flags]\n\nProduces the 24h station forecast.\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logger
	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *lookbackDays < 0 {
		logger.Fatal("lookback-days must be positive", zap.Int("lookback_days", *lookbackDays))
	}
	if *lookbackDays > 0 {
		cfg.Forecast.LookbackDays = *lookbackDays
	}

	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = level
		if l, err := zapCfg.Build(); err == nil {
			logger = l
			zap.ReplaceGlobals(logger)
		}
	}
	defer logger.Sync()

	source, err := sampler.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize observation source", zap.Error(err))
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	forecaster := services.NewForecaster(cfg, source, logger)

	if *daemon {
		runDaemon(cfg, forecaster, *retrain, logger)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec, err := forecaster.Run(ctx, services.RunOptions{Retrain: *retrain})
	if err != nil {
		logger.Sync()
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}

	fmt.Printf("Forecast for %s: %s, %s, %s to %s°C, %s%% chance of rain\n",
		rec.Date, rec.AIForecast, rec.AIWindForecast,
		rec.PredictedMinTemp, rec.PredictedMaxTemp, rec.ChanceOfRain)
}

func runDaemon(cfg *config.Config, forecaster *services.Forecaster, retrainFirst bool, logger *zap.Logger) {
	weatherScheduler, err := scheduler.NewScheduler(
		forecaster,
		cfg.Scheduler.ForecastCron,
		cfg.Scheduler.RetrainCron,
		cfg.Scheduler.JobTimeout,
		cfg.Location,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize scheduler", zap.Error(err))
	}

	if retrainFirst {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.JobTimeout)
		if _, err := forecaster.Retrain(ctx, 0); err != nil {
			logger.Error("Initial retrain failed", zap.Error(err))
		}
		cancel()
	}

	weatherScheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	weatherScheduler.Stop(ctx)

	logger.Info("Stopped", zap.Any("stats", forecaster.GetStats()))
}

// describe turns fatal pipeline errors into an operator-facing message.
func describe(err error) string {
	var insufficient *models.InsufficientTrainingDataError
	var unavailable *models.DataUnavailableError
	switch {
	case errors.As(err, &insufficient):
		return fmt.Sprintf("error: only %d labeled rows after feature and label derivation (minimum %d); increase -lookback-days or check the station archive",
			insufficient.Rows, insufficient.Minimum)
	case errors.As(err, &unavailable):
		return fmt.Sprintf("error: %v", unavailable)
	default:
		return fmt.Sprintf("error: %v", err)
	}
}
