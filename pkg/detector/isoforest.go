package detector

import (
	"math"
	"math/rand"

	"go-tianwang/pkg/models"
)

// isoNode 隔离树节点，叶子节点只记录样本数
type isoNode struct {
	Feature int      `json:"f"`
	Split   float64  `json:"s"`
	Left    *isoNode `json:"l,omitempty"`
	Right   *isoNode `json:"r,omitempty"`
	Size    int      `json:"n"`
}

// IsolationForest 隔离森林异常评分器。
// Score 语义与常见实现一致：分数越低越异常，正常样本接近0.5上下。
type IsolationForest struct {
	Trees      []*isoNode `json:"trees"`
	SampleSize int        `json:"sample_size"`
}

// FitIsolationForest 拟合隔离森林，sampleSize为每棵树的子采样规模
func FitIsolationForest(data [][]float64, nTrees, sampleSize int, rnd *rand.Rand) *IsolationForest {
	if len(data) == 0 || nTrees <= 0 {
		return &IsolationForest{}
	}
	if sampleSize > len(data) {
		sampleSize = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize)))) + 1

	forest := &IsolationForest{
		Trees:      make([]*isoNode, 0, nTrees),
		SampleSize: sampleSize,
	}
	for t := 0; t < nTrees; t++ {
		sample := make([][]float64, sampleSize)
		for i := range sample {
			sample[i] = data[rnd.Intn(len(data))]
		}
		forest.Trees = append(forest.Trees, buildIsoTree(sample, 0, maxDepth, rnd))
	}
	return forest
}

func buildIsoTree(sample [][]float64, depth, maxDepth int, rnd *rand.Rand) *isoNode {
	if len(sample) <= 1 || depth >= maxDepth {
		return &isoNode{Size: len(sample)}
	}

	dim := len(sample[0])
	feature := rnd.Intn(dim)

	lo, hi := sample[0][feature], sample[0][feature]
	for _, row := range sample {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	if hi == lo {
		// 该维度无法再切分
		return &isoNode{Size: len(sample)}
	}

	split := lo + rnd.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range sample {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isoNode{
		Feature: feature,
		Split:   split,
		Left:    buildIsoTree(left, depth+1, maxDepth, rnd),
		Right:   buildIsoTree(right, depth+1, maxDepth, rnd),
		Size:    len(sample),
	}
}

// Score 决策分数 = 0.5 - 2^(-E[h(x)]/c(ψ))，越低越异常
func (f *IsolationForest) Score(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var total float64
	for _, tree := range f.Trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.Trees))
	return 0.5 - math.Pow(2, -avg/avgPathLength(f.SampleSize))
}

func pathLength(node *isoNode, x []float64, depth float64) float64 {
	if node.Left == nil || node.Right == nil {
		return depth + avgPathLength(node.Size)
	}
	if x[node.Feature] < node.Split {
		return pathLength(node.Left, x, depth+1)
	}
	return pathLength(node.Right, x, depth+1)
}

// avgPathLength BST失败查找的平均路径长度c(n)
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	const eulerGamma = 0.5772156649
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// AnomalyDetector 异常评分型检测器（DoS、侦察、TCP行为），
// 判定条件：决策分数低于训练分布的分位数阈值
type AnomalyDetector struct {
	DetectorName string           `json:"name"`
	FeatureList  []string         `json:"features"`
	Scaler       *Scaler          `json:"scaler"`
	Forest       *IsolationForest `json:"forest"`
	Threshold    float64          `json:"threshold"`
}

// FitAnomalyDetector 拟合隔离森林并以训练分数的pct分位数为阈值
func FitAnomalyDetector(name string, feats []string, data [][]float64, pct float64, rnd *rand.Rand) *AnomalyDetector {
	scaler := FitScaler(data)
	scaled := scaler.TransformAll(data)
	forest := FitIsolationForest(scaled, 100, 256, rnd)

	scores := make([]float64, len(scaled))
	for i, row := range scaled {
		scores[i] = forest.Score(row)
	}

	return &AnomalyDetector{
		DetectorName: name,
		FeatureList:  feats,
		Scaler:       scaler,
		Forest:       forest,
		Threshold:    Percentile(scores, pct),
	}
}

func (d *AnomalyDetector) Name() string       { return d.DetectorName }
func (d *AnomalyDetector) Kind() string       { return KindAnomaly }
func (d *AnomalyDetector) Features() []string { return d.FeatureList }

func (d *AnomalyDetector) Evaluate(row models.FeatureRow) models.DetectorVerdict {
	vals, ok := gather(row, d.FeatureList)
	if !ok {
		return notApplicable(d.DetectorName, "missing required features")
	}
	if d.Forest == nil || len(d.Forest.Trees) == 0 {
		return notApplicable(d.DetectorName, "model not fitted")
	}

	score := d.Forest.Score(d.Scaler.Transform(vals))
	flag := score < d.Threshold

	confidence := 0.0
	if d.Threshold != 0 {
		confidence = clamp01(math.Abs(score-d.Threshold) / math.Abs(d.Threshold))
	}

	return models.DetectorVerdict{
		Detector:   d.DetectorName,
		Flag:       flag,
		Score:      score,
		Confidence: confidence,
	}
}
