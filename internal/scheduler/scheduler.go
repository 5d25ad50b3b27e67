package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"weather-predictor/internal/models"
	"weather-predictor/internal/services"
)

// Runner is the part of the forecaster the scheduler drives.
type Runner interface {
	Run(ctx context.Context, opts services.RunOptions) (*models.ForecastRecord, error)
	Retrain(ctx context.Context, lookbackDays int) (*services.TrainingReport, error)
}

type Scheduler struct {
	runner       Runner
	logger       *zap.Logger
	cron         *cron.Cron
	forecastSpec string
	retrainSpec  string
	timeout      time.Duration

	// jobMu serialises forecast and retrain jobs.
	jobMu      sync.Mutex
	mu         sync.Mutex
	running    bool
	forecastID cron.EntryID
	retrainID  cron.EntryID
	lastRun    time.Time
	lastJob    string
	lastErr    error
	skipped    int
}

func NewScheduler(runner Runner, forecastSpec, retrainSpec string, timeout time.Duration, location *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if location == nil {
		location = time.Local
	}
	cronLogger := zapCronLogger{logger: logger.Sugar()}

	s := &Scheduler{
		runner:       runner,
		logger:       logger,
		forecastSpec: forecastSpec,
		retrainSpec:  retrainSpec,
		timeout:      timeout,
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	var err error
	if s.forecastID, err = s.cron.AddFunc(forecastSpec, s.runForecast); err != nil {
		return nil, fmt.Errorf("invalid forecast schedule %q: %w", forecastSpec, err)
	}
	if s.retrainID, err = s.cron.AddFunc(retrainSpec, s.runRetrain); err != nil {
		return nil, fmt.Errorf("invalid retrain schedule %q: %w", retrainSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cron.Start()

	s.logger.Info("Scheduler started",
		zap.String("forecast_schedule", s.forecastSpec),
		zap.String("retrain_schedule", s.retrainSpec),
		zap.Time("next_forecast", s.cron.Entry(s.forecastID).Next),
		zap.Time("next_retrain", s.cron.Entry(s.retrainID).Next))
}

// Stop halts the schedule and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with a job still running")
	}
}

func (s *Scheduler) runForecast() {
	s.runJob("forecast", func(ctx context.Context) error {
		_, err := s.runner.Run(ctx, services.RunOptions{})
		return err
	})
}

func (s *Scheduler) runRetrain() {
	s.runJob("retrain", func(ctx context.Context) error {
		_, err := s.runner.Retrain(ctx, 0)
		return err
	})
}

func (s *Scheduler) runJob(name string, job func(ctx context.Context) error) {
	if !s.jobMu.TryLock() {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.logger.Info("Skipping job, another job is still running", zap.String("job", name))
		return
	}
	defer s.jobMu.Unlock()

	startTime := time.Now()
	s.logger.Info("Starting scheduled job",
		zap.String("job", name),
		zap.Time("start_time", startTime))

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := job(ctx)

	s.mu.Lock()
	s.lastRun = startTime
	s.lastJob = name
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job", name),
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
		return
	}
	s.logger.Info("Scheduled job completed",
		zap.String("job", name),
		zap.Duration("duration", time.Since(startTime)))
}

// ForceRun triggers a forecast outside the schedule.
func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering forecast")
	go s.runForecast()
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":           s.running,
		"forecast_schedule": s.forecastSpec,
		"retrain_schedule":  s.retrainSpec,
		"next_forecast":     s.cron.Entry(s.forecastID).Next,
		"next_retrain":      s.cron.Entry(s.retrainID).Next,
		"last_run":          s.lastRun,
		"last_job":          s.lastJob,
		"skipped":           s.skipped,
	}
	if s.lastErr != nil {
		status["last_error"] = s.lastErr.Error()
	}
	return status
}

// zapCronLogger adapts zap to cron's logger interface.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
