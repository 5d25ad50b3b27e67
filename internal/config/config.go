package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Unseeded disables deterministic training.
const Unseeded = -1

type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Source struct {
		Driver        string        `envconfig:"DRIVER" default:"sqlite" validate:"oneof=sqlite http"`
		SQLitePath    string        `envconfig:"SQLITE_PATH" default:"weewx.sdb" validate:"required_if=Driver sqlite"`
		HTTPURL       string        `envconfig:"HTTP_URL" validate:"required_if=Driver http,omitempty,url"`
		HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s" validate:"gt=0"`
		HTTPRateLimit float64       `envconfig:"HTTP_RATE_LIMIT" default:"2" validate:"gt=0"`
		HTTPBurst     int           `envconfig:"HTTP_BURST" default:"1" validate:"gte=1"`
	}

	Retry struct {
		MaxRetries int           `envconfig:"MAX_RETRIES" default:"3" validate:"gte=0"`
		Delay      time.Duration `envconfig:"DELAY" default:"1s"`
		Multiplier float64       `envconfig:"MULTIPLIER" default:"2" validate:"gte=1"`
	}

	CircuitBreaker struct {
		Threshold int           `envconfig:"THRESHOLD" default:"3" validate:"gte=1"`
		Timeout   time.Duration `envconfig:"TIMEOUT" default:"30s"`
	} `envconfig:"CIRCUIT_BREAKER"`

	Forecast struct {
		LookbackDays    int           `envconfig:"LOOKBACK_DAYS" default:"60" validate:"gte=1"`
		Cadence         time.Duration `envconfig:"CADENCE" default:"5m" validate:"gt=0"`
		Window          time.Duration `envconfig:"WINDOW" default:"1h" validate:"gt=0"`
		Horizon         time.Duration `envconfig:"HORIZON" default:"24h" validate:"gt=0"`
		MinTrainingRows int           `envconfig:"MIN_TRAINING_ROWS" default:"500" validate:"gte=1"`
		Trees           int           `envconfig:"TREES" default:"150" validate:"gte=1"`
		TestFraction    float64       `envconfig:"TEST_FRACTION" default:"0.2" validate:"gt=0,lt=1"`
		Seed            int64         `envconfig:"SEED" default:"-1" validate:"gte=-1"`
		Workers         int           `envconfig:"WORKERS" default:"0" validate:"gte=0"`
		Timezone        string        `envconfig:"TIMEZONE" default:"Local"`
	}

	Storage struct {
		ModelPath     string `envconfig:"MODEL_PATH" default:"weather_multi_model.zst" validate:"required"`
		ForecastsPath string `envconfig:"FORECASTS_PATH" default:"forecasts/forecasts.json" validate:"required"`
	}

	Scheduler struct {
		ForecastCron  string        `envconfig:"FORECAST_CRON" default:"0 6 * * *" validate:"required"`
		RetrainCron   string        `envconfig:"RETRAIN_CRON" default:"0 1 * * 0" validate:"required"`
		ModelCacheTTL time.Duration `envconfig:"MODEL_CACHE_TTL" default:"24h"`
		JobTimeout    time.Duration `envconfig:"JOB_TIMEOUT" default:"30m" validate:"gt=0"`
	}

	Location *time.Location `ignored:"true"`
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and resolves the forecast time zone.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(c.Forecast.Timezone)
	if err != nil {
		return fmt.Errorf("invalid FORECAST_TIMEZONE %q: %w", c.Forecast.Timezone, err)
	}
	c.Location = loc
	return nil
}

// Seeded reports whether training should be reproducible.
func (c *Config) Seeded() bool {
	return c.Forecast.Seed != Unseeded
}

func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Forecast.LookbackDays) * 24 * time.Hour
}
