package detector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tianwang/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestStaticDetectorBands(t *testing.T) {
	d := NewStaticDetector("bandwidth", []string{"sload", "dload"}, map[string]Band{
		"sload": {Max: floatPtr(1.5)},
		"dload": {Min: floatPtr(-1.5), Max: floatPtr(1.5)},
	})

	// 区间内不触发
	v := d.Evaluate(models.FeatureRow{"sload": 1.0, "dload": 0.0})
	assert.False(t, v.Flag)
	assert.Equal(t, 1.0, v.Confidence)
	assert.Empty(t, v.Reason)

	// 任一越界即触发，原因列出越界项
	v = d.Evaluate(models.FeatureRow{"sload": 2.0, "dload": -2.0})
	assert.True(t, v.Flag)
	assert.Contains(t, v.Reason, "sload>")
	assert.Contains(t, v.Reason, "dload<")
}

func TestStaticDetectorMissingFeatures(t *testing.T) {
	d := NewStaticDetector("bandwidth", []string{"sload", "dload"}, map[string]Band{
		"sload": {Max: floatPtr(1.5)},
	})

	v := d.Evaluate(models.FeatureRow{"sload": 2.0})
	assert.False(t, v.Flag)
	assert.Equal(t, 0.0, v.Confidence)
	assert.Equal(t, "missing required features", v.Reason)
}

func TestOneClassDetector(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	data := make([][]float64, 200)
	for i := range data {
		data[i] = []float64{rnd.NormFloat64(), rnd.NormFloat64()}
	}

	d := FitOneClassDetector("fuzzer", []string{"trans_depth", "response_body_len"}, data, 0.1)
	require.Greater(t, d.Radius, 0.0)

	// 质心附近不触发
	v := d.Evaluate(models.FeatureRow{"trans_depth": 0.0, "response_body_len": 0.0})
	assert.False(t, v.Flag)
	assert.Equal(t, 0.2, v.Confidence)

	// 远离边界触发
	v = d.Evaluate(models.FeatureRow{"trans_depth": 50.0, "response_body_len": 50.0})
	assert.True(t, v.Flag)
	assert.Equal(t, 0.8, v.Confidence)
	assert.Greater(t, v.Score, d.Radius)

	// 特征不全时不可用
	v = d.Evaluate(models.FeatureRow{"trans_depth": 0.0})
	assert.False(t, v.Flag)
	assert.Equal(t, "missing required features", v.Reason)
}

func TestSupervisedDetector(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	data := make([][]float64, 0, 400)
	labels := make([]int, 0, 400)
	for i := 0; i < 200; i++ {
		data = append(data, []float64{-1 + rnd.NormFloat64()*0.1, -1 + rnd.NormFloat64()*0.1})
		labels = append(labels, 0)
		data = append(data, []float64{1 + rnd.NormFloat64()*0.1, 1 + rnd.NormFloat64()*0.1})
		labels = append(labels, 1)
	}

	d := FitSupervisedDetector("brute_force", []string{"is_ftp_login", "ct_ftp_cmd"}, data, labels, rnd)

	v := d.Evaluate(models.FeatureRow{"is_ftp_login": 1.0, "ct_ftp_cmd": 1.0})
	assert.True(t, v.Flag)
	assert.Greater(t, v.Confidence, 0.5)

	v = d.Evaluate(models.FeatureRow{"is_ftp_login": -1.0, "ct_ftp_cmd": -1.0})
	assert.False(t, v.Flag)
	assert.Less(t, v.Score, 0.5)
}

func TestDensityDetectorEvaluate(t *testing.T) {
	d := &DensityDetector{
		DetectorName: "port_scan",
		FeatureList:  []string{"ct_src_dport_ltm"},
		Scaler:       &Scaler{Mean: []float64{0}, Std: []float64{1}},
		Cores:        [][]float64{{0}, {1}},
		Eps:          0.5,
	}

	// 核心点附近不触发
	v := d.Evaluate(models.FeatureRow{"ct_src_dport_ltm": 0.3})
	assert.False(t, v.Flag)
	assert.Equal(t, 0.1, v.Confidence)

	// 离所有核心点超过eps触发
	v = d.Evaluate(models.FeatureRow{"ct_src_dport_ltm": 5.0})
	assert.True(t, v.Flag)
	assert.Equal(t, 0.9, v.Confidence)
	assert.InDelta(t, 4.0, v.Score, 1e-9)
}

func TestFitDensityDetector(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	normal := make([][]float64, 300)
	for i := range normal {
		normal[i] = []float64{rnd.NormFloat64() * 0.2}
	}

	d := FitDensityDetector("port_scan", []string{"ct_src_dport_ltm"}, normal, 0.5, 5)
	require.NotEmpty(t, d.Cores)

	v := d.Evaluate(models.FeatureRow{"ct_src_dport_ltm": 100.0})
	assert.True(t, v.Flag)
}

func TestDensityDetectorNoCores(t *testing.T) {
	d := &DensityDetector{
		DetectorName: "port_scan",
		FeatureList:  []string{"ct_src_dport_ltm"},
		Scaler:       &Scaler{},
	}
	v := d.Evaluate(models.FeatureRow{"ct_src_dport_ltm": 1.0})
	assert.False(t, v.Flag)
	assert.Equal(t, "no core points fitted", v.Reason)
}

func TestAnomalyDetector(t *testing.T) {
	rnd := rand.New(rand.NewSource(4))
	data := make([][]float64, 500)
	for i := range data {
		data[i] = []float64{rnd.Float64()*2 - 1, rnd.Float64()*2 - 1}
	}

	d := FitAnomalyDetector("dos", []string{"sload", "dload"}, data, 10, rnd)
	require.NotNil(t, d.Forest)
	require.NotEmpty(t, d.Forest.Trees)

	// 分数越低越异常：极端离群点的分数应低于分布中心
	center := d.Evaluate(models.FeatureRow{"sload": 0.0, "dload": 0.0})
	outlier := d.Evaluate(models.FeatureRow{"sload": 50.0, "dload": 50.0})
	assert.Less(t, outlier.Score, center.Score)
	assert.True(t, outlier.Flag)
	assert.False(t, center.Flag)

	v := d.Evaluate(models.FeatureRow{"sload": 1.0})
	assert.Equal(t, "missing required features", v.Reason)
	assert.Equal(t, 0.0, v.Confidence)
}

func TestIsolationForestEmpty(t *testing.T) {
	f := FitIsolationForest(nil, 100, 256, rand.New(rand.NewSource(0)))
	assert.Equal(t, 0.0, f.Score([]float64{1}))
}
