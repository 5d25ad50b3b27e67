// Package store keeps the date-keyed forecast history file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"weather-predictor/internal/models"
)

// ForecastStore upserts forecast records into a JSON object keyed by date.
// Entries for other dates are carried through without being decoded.
type ForecastStore struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewForecastStore(path string, logger *zap.Logger) *ForecastStore {
	return &ForecastStore{path: path, logger: logger}
}

func (s *ForecastStore) Upsert(rec *models.ForecastRecord) error {
	if rec.Date == "" {
		return errors.New("forecast record has no date")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding forecast for %s: %w", rec.Date, err)
	}
	_, replaced := all[rec.Date]
	all[rec.Date] = encoded

	if err := s.write(all); err != nil {
		return err
	}

	s.logger.Info("Forecast stored",
		zap.String("path", s.path),
		zap.String("date", rec.Date),
		zap.Bool("replaced", replaced),
		zap.Int("entries", len(all)))
	return nil
}

func (s *ForecastStore) Get(date string) (*models.ForecastRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, false, err
	}
	raw, ok := all[date]
	if !ok {
		return nil, false, nil
	}
	var rec models.ForecastRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decoding forecast for %s: %w", date, err)
	}
	return &rec, true, nil
}

// Dates lists the stored keys.
func (s *ForecastStore) Dates() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(all))
	for d := range all {
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *ForecastStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading forecasts: %w", err)
	}

	all := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing forecasts %s: %w", s.path, err)
	}
	// A file holding only "null" decodes to a nil map.
	if all == nil {
		all = make(map[string]json.RawMessage)
	}
	return all, nil
}

func (s *ForecastStore) write(all map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(all, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding forecasts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating forecast directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing forecasts: %w", err)
	}
	return os.Rename(tmp, s.path)
}
