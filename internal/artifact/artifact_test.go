package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weather-predictor/internal/ensemble"
	"weather-predictor/internal/models"
)

func leaf(kind ensemble.Kind, classes []string, value ...float64) *ensemble.Forest {
	return &ensemble.Forest{
		Kind:     kind,
		Classes:  classes,
		Features: models.NumFeatures,
		Trees: []*ensemble.Tree{
			{Nodes: []ensemble.Node{{Feature: -1, Value: value}}},
		},
	}
}

func testForests() map[string]*ensemble.Forest {
	return map[string]*ensemble.Forest{
		ModelWeather: leaf(ensemble.Classification, []string{"Clear", "Cloudy", "Rain", "Storm"}, 0.7, 0.1, 0.1, 0.1),
		ModelWind:    leaf(ensemble.Classification, []string{"Calm", "Windy"}, 0.4, 0.6),
		ModelMaxTemp: leaf(ensemble.Regression, nil, 75),
		ModelMinTemp: leaf(ensemble.Regression, nil, 55),
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "models", "bundle.zst"), zap.NewNop())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	created := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)
	b := NewBundle(created, testForests())

	require.NoError(t, s.Save(b))
	_, err := os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, loaded.Version)
	assert.Equal(t, b.RunID, loaded.RunID)
	assert.True(t, created.Equal(loaded.CreatedAt))
	assert.Equal(t, models.FeatureNames[:], loaded.Features)
	assert.Equal(t, b.Models, loaded.Models)

	x := make([]float64, models.NumFeatures)
	assert.Equal(t, "Clear", loaded.Model(ModelWeather).PredictClass(x))
	assert.Equal(t, 75.0, loaded.Model(ModelMaxTemp).Predict(x))
}

func TestNewBundleAssignsRunID(t *testing.T) {
	a := NewBundle(time.Now(), testForests())
	b := NewBundle(time.Now(), testForests())
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := newStore(t).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrArtifactNotFound)
	assert.True(t, models.NeedsRetrain(err))
}

func TestLoadLegacyBundleWithoutWind(t *testing.T) {
	s := newStore(t)
	forests := testForests()
	delete(forests, ModelWind)
	legacy := NewBundle(time.Now(), forests)
	legacy.Version = 1
	require.NoError(t, s.Save(legacy))

	_, err := s.Load()
	var schemaErr *models.ArtifactSchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{ModelWind}, schemaErr.Missing)
	assert.Equal(t, s.Path(), schemaErr.Path)
	assert.True(t, models.NeedsRetrain(err))
}

func TestLoadCorruptBytes(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("definitely not zstd"), 0o644))

	_, err := s.Load()
	var corrupt *models.ArtifactCorruptError
	require.True(t, errors.As(err, &corrupt))
	assert.True(t, models.NeedsRetrain(err))
}

func TestLoadCorruptJSON(t *testing.T) {
	s := newStore(t)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	data := enc.EncodeAll([]byte(`{"version": 2, "models": [`), nil)
	require.NoError(t, enc.Close())

	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), data, 0o644))

	_, err = s.Load()
	var corrupt *models.ArtifactCorruptError
	assert.True(t, errors.As(err, &corrupt))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Bundle)
	}{
		{"newer version", func(b *Bundle) { b.Version = CurrentVersion + 1 }},
		{"different features", func(b *Bundle) { b.Features = b.Features[:3] }},
		{"wrong kind", func(b *Bundle) { b.Models[ModelMinTemp].Kind = ensemble.Classification }},
		{"wrong width", func(b *Bundle) { b.Models[ModelMaxTemp].Features = 3 }},
		{"classifier without classes", func(b *Bundle) { b.Models[ModelWind].Classes = nil }},
		{"empty forest", func(b *Bundle) { b.Models[ModelWeather].Trees = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBundle(time.Now(), testForests())
			require.NoError(t, b.Validate("m.zst"))

			tt.mutate(b)
			var schemaErr *models.ArtifactSchemaError
			assert.True(t, errors.As(b.Validate("m.zst"), &schemaErr))
		})
	}
}

func TestSavedBundleIsCompressedJSON(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(NewBundle(time.Now(), testForests())))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	data, err := dec.DecodeAll(raw, nil)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "models")
	assert.Contains(t, doc, "run_id")
}

func TestValidateRejectsBrokenTrees(t *testing.T) {
	tests := []struct {
		name  string
		model string
		nodes []ensemble.Node
	}{
		{"no nodes", ModelMaxTemp, nil},
		{"leaf without value", ModelMaxTemp, []ensemble.Node{{Feature: ensemble.LeafFeature}}},
		{"children out of range", ModelMaxTemp, []ensemble.Node{{Feature: 0, Left: 7, Right: 8}}},
		{"child points back", ModelMinTemp, []ensemble.Node{
			{Feature: 0, Left: 0, Right: 1},
			{Feature: ensemble.LeafFeature, Value: []float64{1}},
		}},
		{"feature past width", ModelMinTemp, []ensemble.Node{
			{Feature: models.NumFeatures, Left: 1, Right: 2},
			{Feature: ensemble.LeafFeature, Value: []float64{1}},
			{Feature: ensemble.LeafFeature, Value: []float64{2}},
		}},
		{"class distribution too short", ModelWeather, []ensemble.Node{
			{Feature: ensemble.LeafFeature, Value: []float64{0.5, 0.5}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBundle(time.Now(), testForests())
			b.Models[tt.model].Trees = append(b.Models[tt.model].Trees, &ensemble.Tree{Nodes: tt.nodes})

			err := b.Validate("m.zst")
			var corrupt *models.ArtifactCorruptError
			require.True(t, errors.As(err, &corrupt), "got %v", err)
			assert.Contains(t, err.Error(), tt.model)
			assert.True(t, models.NeedsRetrain(err))
		})
	}
}

func TestLoadRejectsBrokenTrees(t *testing.T) {
	s := newStore(t)
	b := NewBundle(time.Now(), testForests())
	b.Models[ModelMaxTemp].Trees[0].Nodes = []ensemble.Node{{Feature: 0, Left: 7, Right: 8}}
	require.NoError(t, s.Save(b))

	_, err := s.Load()
	var corrupt *models.ArtifactCorruptError
	assert.True(t, errors.As(err, &corrupt))
}

func TestValidateAcceptsSplitTree(t *testing.T) {
	b := NewBundle(time.Now(), testForests())
	b.Models[ModelMaxTemp].Trees[0].Nodes = []ensemble.Node{
		{Feature: 2, Threshold: 60, Left: 1, Right: 2},
		{Feature: ensemble.LeafFeature, Value: []float64{55}},
		{Feature: ensemble.LeafFeature, Value: []float64{75}},
	}
	assert.NoError(t, b.Validate("m.zst"))
}
