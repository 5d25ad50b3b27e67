package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"weather-predictor/internal/artifact"
	"weather-predictor/internal/ensemble"
	"weather-predictor/internal/models"
)

type TrainingReport struct {
	Rows      int                           `json:"rows"`
	Seed      uint64                        `json:"seed"`
	Weather   ensemble.ClassificationReport `json:"weather"`
	Wind      ensemble.ClassificationReport `json:"wind"`
	MaxTempR2 float64                       `json:"max_temp_r2"`
	MinTempR2 float64                       `json:"min_temp_r2"`
	Duration  time.Duration                 `json:"duration"`
}

type Trainer struct {
	params       ensemble.Params
	seeded       bool
	testFraction float64
	logger       *zap.Logger
}

// NewTrainer returns a trainer. When seeded is false every Train call draws a
// fresh seed, so retrains on identical data are only statistically alike.
func NewTrainer(params ensemble.Params, seeded bool, testFraction float64, logger *zap.Logger) *Trainer {
	return &Trainer{
		params:       params,
		seeded:       seeded,
		testFraction: testFraction,
		logger:       logger,
	}
}

// Train fits the four models on independent splits and scores each on its
// held-out part. Scores are reported only; they never reject a model.
func (t *Trainer) Train(ctx context.Context, rows []models.TrainingRow) (*artifact.Bundle, *TrainingReport, error) {
	startTime := time.Now()

	seed := t.params.Seed
	if !t.seeded {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, 0x5eed))

	x := make([][]float64, len(rows))
	conditions := make([]string, len(rows))
	winds := make([]string, len(rows))
	maxTemps := make([]float64, len(rows))
	minTemps := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Features.Slice()
		conditions[i] = string(r.Labels.Condition)
		winds[i] = string(r.Labels.Wind)
		maxTemps[i] = r.Labels.FutureMaxF
		minTemps[i] = r.Labels.FutureMinF
	}

	report := &TrainingReport{Rows: len(rows), Seed: seed}
	forests := make(map[string]*ensemble.Forest, len(artifact.RequiredModels))

	conditionClasses := make([]string, len(models.Conditions))
	for i, c := range models.Conditions {
		conditionClasses[i] = string(c)
	}
	windClasses := make([]string, len(models.WindBands))
	for i, w := range models.WindBands {
		windClasses[i] = string(w)
	}

	// Condition: stratified split, class-balanced weights.
	train, test := ensemble.StratifiedSplit(conditions, t.testFraction, rng)
	forest, rep, err := t.fitClassifier(ctx, x, conditions, conditionClasses, train, test, t.paramsFor(seed, 1))
	if err != nil {
		return nil, nil, fmt.Errorf("training weather model: %w", err)
	}
	forests[artifact.ModelWeather] = forest
	report.Weather = rep

	train, test = ensemble.TrainTestSplit(len(rows), t.testFraction, rng)
	forest, rep, err = t.fitClassifier(ctx, x, winds, windClasses, train, test, t.paramsFor(seed, 2))
	if err != nil {
		return nil, nil, fmt.Errorf("training wind model: %w", err)
	}
	forests[artifact.ModelWind] = forest
	report.Wind = rep

	train, test = ensemble.TrainTestSplit(len(rows), t.testFraction, rng)
	forest, r2, err := t.fitRegressor(ctx, x, maxTemps, train, test, t.paramsFor(seed, 3))
	if err != nil {
		return nil, nil, fmt.Errorf("training max temperature model: %w", err)
	}
	forests[artifact.ModelMaxTemp] = forest
	report.MaxTempR2 = r2

	train, test = ensemble.TrainTestSplit(len(rows), t.testFraction, rng)
	forest, r2, err = t.fitRegressor(ctx, x, minTemps, train, test, t.paramsFor(seed, 4))
	if err != nil {
		return nil, nil, fmt.Errorf("training min temperature model: %w", err)
	}
	forests[artifact.ModelMinTemp] = forest
	report.MinTempR2 = r2

	report.Duration = time.Since(startTime)
	t.logReport(report)

	return artifact.NewBundle(time.Now(), forests), report, nil
}

// paramsFor gives each model its own seed so their bootstraps differ.
func (t *Trainer) paramsFor(seed uint64, model uint64) ensemble.Params {
	p := t.params
	p.Seed = seed ^ (model * 0x9e3779b97f4a7c15)
	return p
}

func (t *Trainer) fitClassifier(ctx context.Context, x [][]float64, y, classes []string, train, test []int, p ensemble.Params) (*ensemble.Forest, ensemble.ClassificationReport, error) {
	xTrain, yTrain := pick(x, train), pick(y, train)
	forest, err := ensemble.FitClassifier(ctx, xTrain, yTrain, classes, ensemble.BalancedWeights(yTrain), p)
	if err != nil {
		return nil, ensemble.ClassificationReport{}, err
	}

	truth := pick(y, test)
	predicted := make([]string, len(test))
	for i, row := range test {
		predicted[i] = forest.PredictClass(x[row])
	}
	return forest, ensemble.Classify(truth, predicted, classes), nil
}

func (t *Trainer) fitRegressor(ctx context.Context, x [][]float64, y []float64, train, test []int, p ensemble.Params) (*ensemble.Forest, float64, error) {
	forest, err := ensemble.FitRegressor(ctx, pick(x, train), pick(y, train), p)
	if err != nil {
		return nil, 0, err
	}

	truth := pick(y, test)
	predicted := make([]float64, len(test))
	for i, row := range test {
		predicted[i] = forest.Predict(x[row])
	}
	return forest, ensemble.RSquared(truth, predicted), nil
}

func (t *Trainer) logReport(r *TrainingReport) {
	t.logger.Info("Model training completed",
		zap.Int("rows", r.Rows),
		zap.Uint64("seed", r.Seed),
		zap.Float64("weather_accuracy", r.Weather.Accuracy),
		zap.Float64("wind_accuracy", r.Wind.Accuracy),
		zap.Float64("max_temp_r2", r.MaxTempR2),
		zap.Float64("min_temp_r2", r.MinTempR2),
		zap.Duration("duration", r.Duration))

	for _, c := range models.Conditions {
		m := r.Weather.Classes[string(c)]
		t.logger.Info("Weather model class performance",
			zap.String("class", string(c)),
			zap.Float64("precision", m.Precision),
			zap.Float64("recall", m.Recall),
			zap.Float64("f1", m.F1),
			zap.Int("support", m.Support))
	}
	for _, w := range models.WindBands {
		m := r.Wind.Classes[string(w)]
		t.logger.Debug("Wind model class performance",
			zap.String("class", string(w)),
			zap.Float64("precision", m.Precision),
			zap.Float64("recall", m.Recall),
			zap.Float64("f1", m.F1),
			zap.Int("support", m.Support))
	}
}

func pick[T any](values []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
