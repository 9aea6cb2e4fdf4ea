package detector

import (
	"math"
	"math/rand"

	"go-tianwang/pkg/models"
)

// LogisticModel 逻辑回归模型参数
type LogisticModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// TrainOptions 逻辑回归训练参数
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// TrainLogistic 小批量梯度下降训练二分类逻辑回归，y取0/1
func TrainLogistic(data [][]float64, labels []int, opts TrainOptions, rnd *rand.Rand) *LogisticModel {
	if len(data) == 0 || len(data) != len(labels) {
		return &LogisticModel{}
	}
	dim := len(data[0])
	m := &LogisticModel{Weights: make([]float64, dim)}
	for i := range m.Weights {
		m.Weights[i] = (rnd.Float64()*2 - 1) * 0.01
	}

	n := len(data)
	order := rnd.Perm(n)
	const batch = 64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for start := 0; start < n; start += batch {
			end := start + batch
			if end > n {
				end = n
			}

			gradW := make([]float64, dim)
			var gradB float64
			for _, idx := range order[start:end] {
				p := m.Prob(data[idx])
				err := p - float64(labels[idx])
				for j, v := range data[idx] {
					gradW[j] += err * v
				}
				gradB += err
			}

			size := float64(end - start)
			for j := range m.Weights {
				m.Weights[j] -= opts.LearningRate * (gradW[j]/size + opts.L2*m.Weights[j])
			}
			m.Bias -= opts.LearningRate * gradB / size
		}
	}
	return m
}

// Prob 正类概率
func (m *LogisticModel) Prob(x []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		if i < len(x) {
			z += w * x[i]
		}
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// SupervisedDetector 有监督二分类型检测器（暴力破解、会话劫持）
type SupervisedDetector struct {
	DetectorName string         `json:"name"`
	FeatureList  []string       `json:"features"`
	Scaler       *Scaler        `json:"scaler"`
	Model        *LogisticModel `json:"model"`
}

// FitSupervisedDetector 在类别特征子集上训练带标签的检测器
func FitSupervisedDetector(name string, feats []string, data [][]float64, labels []int, rnd *rand.Rand) *SupervisedDetector {
	scaler := FitScaler(data)
	scaled := scaler.TransformAll(data)
	model := TrainLogistic(scaled, labels, TrainOptions{
		Epochs:       200,
		LearningRate: 0.1,
		L2:           1e-4,
	}, rnd)

	return &SupervisedDetector{
		DetectorName: name,
		FeatureList:  feats,
		Scaler:       scaler,
		Model:        model,
	}
}

func (d *SupervisedDetector) Name() string       { return d.DetectorName }
func (d *SupervisedDetector) Kind() string       { return KindSupervised }
func (d *SupervisedDetector) Features() []string { return d.FeatureList }

func (d *SupervisedDetector) Evaluate(row models.FeatureRow) models.DetectorVerdict {
	vals, ok := gather(row, d.FeatureList)
	if !ok {
		return notApplicable(d.DetectorName, "missing required features")
	}
	if d.Model == nil || len(d.Model.Weights) == 0 {
		return notApplicable(d.DetectorName, "model not fitted")
	}

	prob := d.Model.Prob(d.Scaler.Transform(vals))
	return models.DetectorVerdict{
		Detector:   d.DetectorName,
		Flag:       prob > 0.5,
		Score:      prob,
		Confidence: prob,
	}
}
