package detector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tianwang/pkg/models"
)

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()

	static := NewStaticDetector("bandwidth", []string{"sload"}, map[string]Band{
		"sload": {Max: floatPtr(1.5)},
	})
	oneClass := &OneClassDetector{
		DetectorName: "fuzzer",
		FeatureList:  []string{"trans_depth"},
		Scaler:       &Scaler{Mean: []float64{0}, Std: []float64{1}},
		Center:       []float64{0},
		Radius:       2.0,
	}

	require.NoError(t, SaveArtifact(dir, static))
	require.NoError(t, SaveArtifact(dir, oneClass))

	r, err := LoadRegistry(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"bandwidth", "fuzzer"}, r.List())

	d, ok := r.Get("bandwidth")
	require.True(t, ok)
	assert.Equal(t, KindStatic, d.Kind())

	v := d.Evaluate(models.FeatureRow{"sload": 2.0})
	assert.True(t, v.Flag)
}

func TestLoadRegistrySkipsCorruptArtifacts(t *testing.T) {
	dir := t.TempDir()

	static := NewStaticDetector("bandwidth", []string{"sload"}, map[string]Band{
		"sload": {Max: floatPtr(1.5)},
	})
	require.NoError(t, SaveArtifact(dir, static))

	// 损坏的JSON、kind与载荷不符、非JSON文件都只被跳过
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"kind":"anomaly"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("notes"), 0o644))

	r, err := LoadRegistry(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"bandwidth"}, r.List())
}

func TestLoadRegistryMissingDir(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoad)
}

type panicDetector struct{}

func (panicDetector) Name() string       { return "panicky" }
func (panicDetector) Kind() string       { return KindStatic }
func (panicDetector) Features() []string { return nil }
func (panicDetector) Evaluate(models.FeatureRow) models.DetectorVerdict {
	panic("boom")
}

func TestEvaluateAllIsolatesPanic(t *testing.T) {
	static := NewStaticDetector("bandwidth", []string{"sload"}, map[string]Band{
		"sload": {Max: floatPtr(1.5)},
	})
	r := NewRegistry(panicDetector{}, static)

	verdicts := r.EvaluateAll(models.FeatureRow{"sload": 2.0})
	require.Len(t, verdicts, 2)

	// panic被隔离为不可用判定，不影响其他检测器
	v := verdicts["panicky"]
	assert.False(t, v.Flag)
	assert.Equal(t, 0.0, v.Confidence)
	assert.Contains(t, v.Reason, "internal error")

	assert.True(t, verdicts["bandwidth"].Flag)
}

func TestWrapArtifactUnsupported(t *testing.T) {
	_, err := WrapArtifact(panicDetector{})
	assert.Error(t, err)
}
