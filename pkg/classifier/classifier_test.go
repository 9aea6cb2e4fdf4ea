package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tianwang/pkg/detector"
	"go-tianwang/pkg/models"
)

func newTestEnsemble() *Ensemble {
	return New([]string{"sload", "dload"}, map[string]*detector.LogisticModel{
		"random_forest": {Weights: []float64{2, 0}, Bias: 0},
		"decision_tree": {Weights: []float64{-2, 0}, Bias: 0},
	})
}

func TestPredictMember(t *testing.T) {
	e := newTestEnsemble()

	label, prob, err := e.Predict(models.FeatureRow{"sload": 1.0, "dload": 0.0}, "random_forest")
	require.NoError(t, err)
	assert.Equal(t, 1, label)
	assert.Greater(t, prob, 0.5)

	label, prob, err = e.Predict(models.FeatureRow{"sload": 1.0, "dload": 0.0}, "decision_tree")
	require.NoError(t, err)
	assert.Equal(t, 0, label)
	assert.Less(t, prob, 0.5)
}

func TestPredictEnsembleTie(t *testing.T) {
	// 两个成员权重互为相反数，平均概率恰为0.5 -> 判为正常
	e := newTestEnsemble()

	label, prob, err := e.Predict(models.FeatureRow{"sload": 1.0, "dload": 0.0}, EnsembleName)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, prob, 1e-9)
	assert.Equal(t, 0, label)
}

func TestPredictMissingFeaturesAsZero(t *testing.T) {
	e := newTestEnsemble()

	// 缺失特征按0处理：sload缺失 -> z=0 -> prob=0.5 -> 判0
	label, prob, err := e.Predict(models.FeatureRow{"dload": 3.0}, "random_forest")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, prob, 1e-9)
	assert.Equal(t, 0, label)
}

func TestPredictUnknownModel(t *testing.T) {
	e := newTestEnsemble()

	_, _, err := e.Predict(models.FeatureRow{"sload": 1.0}, "svm")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestModelsAndHas(t *testing.T) {
	e := newTestEnsemble()

	assert.Equal(t, []string{"decision_tree", "random_forest", EnsembleName}, e.Models())
	assert.True(t, e.Has("random_forest"))
	assert.True(t, e.Has(EnsembleName))
	assert.False(t, e.Has("svm"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := newTestEnsemble()
	require.NoError(t, e.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, e.Models(), loaded.Models())
	assert.Equal(t, e.Features(), loaded.Features())

	row := models.FeatureRow{"sload": 0.7, "dload": -0.3}
	wantLabel, wantProb, err := e.Predict(row, "random_forest")
	require.NoError(t, err)
	gotLabel, gotProb, err := loaded.Predict(row, "random_forest")
	require.NoError(t, err)
	assert.Equal(t, wantLabel, gotLabel)
	assert.InDelta(t, wantProb, gotProb, 1e-12)
}

func TestLoadSkipsCorruptMember(t *testing.T) {
	dir := t.TempDir()
	e := newTestEnsemble()
	require.NoError(t, e.Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "primary_xgboost.json"), []byte("{bad"), 0o644))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, loaded.Has("xgboost"))
	assert.True(t, loaded.Has("random_forest"))
}

func TestLoadEmptyDirFails(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.Error(t, err)
}
