package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-tianwang/pkg/classifier"
	"go-tianwang/pkg/detector"
	"go-tianwang/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

// alwaysFire 构造一个对特征x>0必触发的静态检测器
func alwaysFire(name string) detector.Detector {
	return detector.NewStaticDetector(name, []string{"x"}, map[string]detector.Band{
		"x": {Max: floatPtr(0)},
	})
}

func newAnalyzer(prob float64, dets ...detector.Detector) *RiskAnalyzer {
	// 单成员集成：bias决定固定概率。bias=0 -> 0.5, bias很大 -> 接近1
	var bias float64
	switch prob {
	case 0.0:
		bias = -50
	case 0.5:
		bias = 0
	case 1.0:
		bias = 50
	default:
		panic("unsupported test prob")
	}
	primary := classifier.New([]string{"x"}, map[string]*detector.LogisticModel{
		"random_forest": {Weights: []float64{0}, Bias: bias},
	})
	return NewRiskAnalyzer(detector.NewRegistry(dets...), primary, nil, nil, nil, 0.7, "random_forest")
}

func TestDetectorWeightsSum(t *testing.T) {
	var sum float64
	for _, w := range detectorWeights {
		sum += w.Weight
	}
	assert.InDelta(t, 0.6, sum, 1e-9)
}

func TestAssessInvalidInput(t *testing.T) {
	ra := newAnalyzer(0.5)

	_, err := ra.Assess(nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ra.Assess(models.FeatureRow{}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAssessUnknownModel(t *testing.T) {
	ra := newAnalyzer(0.5)

	_, err := ra.Assess(models.FeatureRow{"x": 1.0}, "svm")
	assert.ErrorIs(t, err, classifier.ErrUnknownModel)
}

func TestAssessNoDetectorsFired(t *testing.T) {
	ra := newAnalyzer(0.5)

	a, err := ra.Assess(models.FeatureRow{"x": 1.0}, "")
	require.NoError(t, err)

	// 只剩主分类贡献：0.4 * 0.5
	assert.InDelta(t, 0.2, a.RiskScore, 1e-9)
	assert.Empty(t, a.RiskFactors)
	assert.Equal(t, "random_forest", a.Model)
	assert.Equal(t, []string{"No immediate security concerns detected"}, a.Recommendations)
}

func TestAssessZeroCase(t *testing.T) {
	// 主分类概率为0且无检测器触发时，风险分数为0
	ra := newAnalyzer(0.0)

	a, err := ra.Assess(models.FeatureRow{"x": 0.0}, "")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, a.RiskScore, 1e-9)
	assert.Equal(t, "Normal", a.PrimaryLabel)
	assert.Empty(t, a.RiskFactors)
	assert.Empty(t, a.AttackTypes)
}

func TestAssessAllDetectorsFiredCapsAtOne(t *testing.T) {
	dets := make([]detector.Detector, 0, len(detectorWeights))
	for _, w := range detectorWeights {
		dets = append(dets, alwaysFire(w.Name))
	}
	ra := newAnalyzer(1.0, dets...)

	a, err := ra.Assess(models.FeatureRow{"x": 1.0}, "")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, a.RiskScore, 1e-9)
	assert.Len(t, a.RiskFactors, len(detectorWeights))
	assert.Equal(t, "Attack", a.PrimaryLabel)
	// 每个触发因子带来两条处置建议
	assert.Len(t, a.Recommendations, len(detectorWeights)*2)
}

func TestAssessRiskMonotonicInFiredDetectors(t *testing.T) {
	prev := -1.0
	for k := 0; k <= len(detectorWeights); k++ {
		dets := make([]detector.Detector, 0, k)
		for _, w := range detectorWeights[:k] {
			dets = append(dets, alwaysFire(w.Name))
		}
		ra := newAnalyzer(0.5, dets...)

		a, err := ra.Assess(models.FeatureRow{"x": 1.0}, "")
		require.NoError(t, err)
		assert.Greater(t, a.RiskScore, prev, "k=%d", k)
		assert.LessOrEqual(t, a.RiskScore, 1.0)
		prev = a.RiskScore
	}
}

func TestAssessSingleDetectorWeight(t *testing.T) {
	for _, w := range detectorWeights {
		ra := newAnalyzer(0.5, alwaysFire(w.Name))

		a, err := ra.Assess(models.FeatureRow{"x": 1.0}, "")
		require.NoError(t, err)
		assert.InDelta(t, 0.2+w.Weight, a.RiskScore, 1e-9, "detector=%s", w.Name)
		assert.Equal(t, []string{w.Factor}, a.RiskFactors)
	}
}

func TestAssessMissingFeaturesNotApplicable(t *testing.T) {
	ra := newAnalyzer(0.5, alwaysFire("dos"))

	// 检测器所需特征缺失：不可用判定，不计权重
	a, err := ra.Assess(models.FeatureRow{"y": 1.0}, "")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, a.RiskScore, 1e-9)

	v := a.Verdicts["dos"]
	assert.False(t, v.Flag)
	assert.Equal(t, 0.0, v.Confidence)
	assert.Equal(t, "missing required features", v.Reason)
}

func TestAssessIdempotent(t *testing.T) {
	ra := newAnalyzer(0.5, alwaysFire("dos"), alwaysFire("bandwidth"))
	row := models.FeatureRow{"x": 1.0}

	a1, err := ra.Assess(row, "")
	require.NoError(t, err)
	a2, err := ra.Assess(row, "")
	require.NoError(t, err)

	assert.Equal(t, a1.RiskScore, a2.RiskScore)
	assert.Equal(t, a1.RiskFactors, a2.RiskFactors)
	assert.Equal(t, a1.AttackTypes, a2.AttackTypes)
	assert.Equal(t, a1.Verdicts, a2.Verdicts)
}

func TestAssessConfidence(t *testing.T) {
	ra := newAnalyzer(1.0)

	a, err := ra.Assess(models.FeatureRow{"x": 1.0}, "")
	require.NoError(t, err)

	// 置信度 = max(p, 1-p)
	assert.InDelta(t, 1.0, a.Confidence, 1e-9)
	assert.InDelta(t, a.PrimaryProbability, a.Confidence, 1e-9)
}

func TestRecommendations(t *testing.T) {
	recs := Recommendations([]string{FactorDoS, FactorBruteForce})
	assert.Len(t, recs, 4)
	assert.Contains(t, recs[0], "DoS attack detected")

	assert.Equal(t, []string{"No immediate security concerns detected"}, Recommendations(nil))
}
