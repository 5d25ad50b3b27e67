// Package artifact persists the fitted model bundle as a single
// zstd-compressed, versioned document.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"weather-predictor/internal/ensemble"
	"weather-predictor/internal/models"
)

// CurrentVersion 1 held only weather and max/min temperature; 2 added wind.
const CurrentVersion = 2

const (
	ModelWeather = "weather"
	ModelWind    = "wind"
	ModelMaxTemp = "max_temp"
	ModelMinTemp = "min_temp"
)

var RequiredModels = []string{ModelWeather, ModelWind, ModelMaxTemp, ModelMinTemp}

var modelKinds = map[string]ensemble.Kind{
	ModelWeather: ensemble.Classification,
	ModelWind:    ensemble.Classification,
	ModelMaxTemp: ensemble.Regression,
	ModelMinTemp: ensemble.Regression,
}

type Bundle struct {
	Version   int                         `json:"version"`
	RunID     string                      `json:"run_id"`
	CreatedAt time.Time                   `json:"created_at"`
	Features  []string                    `json:"features"`
	Models    map[string]*ensemble.Forest `json:"models"`
}

func NewBundle(createdAt time.Time, forests map[string]*ensemble.Forest) *Bundle {
	return &Bundle{
		Version:   CurrentVersion,
		RunID:     uuid.NewString(),
		CreatedAt: createdAt.UTC(),
		Features:  models.FeatureNames[:],
		Models:    forests,
	}
}

func (b *Bundle) Model(name string) *ensemble.Forest {
	return b.Models[name]
}

// Validate checks the bundle against the current feature schema and the set
// of required models, then walks every tree. Trees that cannot be evaluated
// are reported as ArtifactCorruptError.
func (b *Bundle) Validate(path string) error {
	var missing []string
	for _, name := range RequiredModels {
		f, ok := b.Models[name]
		if !ok || f == nil || len(f.Trees) == 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &models.ArtifactSchemaError{Path: path, Missing: missing}
	}

	if b.Version > CurrentVersion {
		return &models.ArtifactSchemaError{Path: path, Reason: fmt.Sprintf("version %d is newer than %d", b.Version, CurrentVersion)}
	}
	if !slices.Equal(b.Features, models.FeatureNames[:]) {
		return &models.ArtifactSchemaError{Path: path, Reason: fmt.Sprintf("feature set %v does not match %v", b.Features, models.FeatureNames)}
	}
	for name, kind := range modelKinds {
		f := b.Models[name]
		if f.Kind != kind {
			return &models.ArtifactSchemaError{Path: path, Reason: fmt.Sprintf("model %s is %s, want %s", name, f.Kind, kind)}
		}
		if f.Features != len(b.Features) {
			return &models.ArtifactSchemaError{Path: path, Reason: fmt.Sprintf("model %s expects %d features", name, f.Features)}
		}
		if kind == ensemble.Classification && len(f.Classes) == 0 {
			return &models.ArtifactSchemaError{Path: path, Reason: fmt.Sprintf("model %s has no classes", name)}
		}
	}
	for _, name := range RequiredModels {
		if err := checkTrees(b.Models[name]); err != nil {
			return &models.ArtifactCorruptError{Path: path, Err: fmt.Errorf("model %s: %w", name, err)}
		}
	}
	return nil
}

// checkTrees makes sure every tree can be walked for any input without
// indexing out of range or looping.
func checkTrees(f *ensemble.Forest) error {
	width := 1
	if f.Kind == ensemble.Classification {
		width = len(f.Classes)
	}
	for t, tree := range f.Trees {
		if tree == nil || len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", t)
		}
		for i, n := range tree.Nodes {
			if n.Feature == ensemble.LeafFeature {
				if len(n.Value) != width {
					return fmt.Errorf("tree %d leaf %d has %d values, want %d", t, i, len(n.Value), width)
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.Features {
				return fmt.Errorf("tree %d node %d splits on feature %d of %d", t, i, n.Feature, f.Features)
			}
			// Children always follow their parent.
			if n.Left <= i || n.Left >= len(tree.Nodes) || n.Right <= i || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has children %d/%d outside (%d, %d)", t, i, n.Left, n.Right, i, len(tree.Nodes))
			}
		}
	}
	return nil
}

type Store struct {
	path   string
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string {
	return s.path
}

// Save writes the bundle atomically via a temp file and rename.
func (s *Store) Save(b *Bundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding model bundle: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(data, nil)
	enc.Close()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating model directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("writing model bundle: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing model bundle: %w", err)
	}

	s.logger.Info("Model bundle saved",
		zap.String("path", s.path),
		zap.String("run_id", b.RunID),
		zap.Int("raw_bytes", len(data)),
		zap.Int("compressed_bytes", len(compressed)))
	return nil
}

// Load reads and validates the bundle. A missing file yields
// models.ErrArtifactNotFound; unreadable data an ArtifactCorruptError; a
// bundle missing required models an ArtifactSchemaError.
func (s *Store) Load() (*Bundle, error) {
	compressed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, models.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, &models.ArtifactCorruptError{Path: s.path, Err: err}
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, &models.ArtifactCorruptError{Path: s.path, Err: err}
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &models.ArtifactCorruptError{Path: s.path, Err: err}
	}
	if err := b.Validate(s.path); err != nil {
		return nil, err
	}

	s.logger.Info("Model bundle loaded",
		zap.String("path", s.path),
		zap.String("run_id", b.RunID),
		zap.Int("version", b.Version),
		zap.Time("created_at", b.CreatedAt))
	return &b, nil
}
