package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArtifactNotFound is returned when no model artifact has been written yet.
var ErrArtifactNotFound = errors.New("model artifact not found")

type DataUnavailableError struct {
	Source string
	Reason string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("observation data unavailable from %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

type InsufficientTrainingDataError struct {
	Rows    int
	Minimum int
}

func (e *InsufficientTrainingDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %d labeled rows, need at least %d", e.Rows, e.Minimum)
}

type ArtifactSchemaError struct {
	Path    string
	Missing []string
	Reason  string
}

func (e *ArtifactSchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("model artifact %s is missing models: %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("model artifact %s has incompatible schema: %s", e.Path, e.Reason)
}

type ArtifactCorruptError struct {
	Path string
	Err  error
}

func (e *ArtifactCorruptError) Error() string {
	return fmt.Sprintf("model artifact %s is unreadable: %v", e.Path, e.Err)
}

func (e *ArtifactCorruptError) Unwrap() error {
	return e.Err
}

// DegenerateConfidenceWarning reports a temperature confidence outside
// [0, 100] or non-finite. It is logged, never returned as a failure.
type DegenerateConfidenceWarning struct {
	Target     string
	Point      float64
	Margin     float64
	Confidence float64
}

func (w *DegenerateConfidenceWarning) Error() string {
	return fmt.Sprintf("degenerate %s confidence %.3f (point %.3f, error %.3f)", w.Target, w.Confidence, w.Point, w.Margin)
}

// NeedsRetrain reports whether a model load failure is recovered by retraining.
func NeedsRetrain(err error) bool {
	var schemaErr *ArtifactSchemaError
	var corruptErr *ArtifactCorruptError
	return errors.Is(err, ErrArtifactNotFound) || errors.As(err, &schemaErr) || errors.As(err, &corruptErr)
}
