package detector

import (
	"go-tianwang/pkg/models"
)

// OneClassDetector 单类边界型检测器（Fuzzer、时序抖动）：
// 以训练样本质心为中心、距离分位数为半径，超出边界判为离群。
// 只产出离散标签，不产出连续分数。
type OneClassDetector struct {
	DetectorName string    `json:"name"`
	FeatureList  []string  `json:"features"`
	Scaler       *Scaler   `json:"scaler"`
	Center       []float64 `json:"center"`
	Radius       float64   `json:"radius"`
}

// FitOneClassDetector 拟合单类边界，nu为期望的离群比例
func FitOneClassDetector(name string, feats []string, data [][]float64, nu float64) *OneClassDetector {
	scaler := FitScaler(data)
	scaled := scaler.TransformAll(data)

	dim := 0
	if len(scaled) > 0 {
		dim = len(scaled[0])
	}
	center := make([]float64, dim)
	for _, row := range scaled {
		for i, v := range row {
			center[i] += v
		}
	}
	if len(scaled) > 0 {
		for i := range center {
			center[i] /= float64(len(scaled))
		}
	}

	dists := make([]float64, len(scaled))
	for i, row := range scaled {
		dists[i] = euclidean(row, center)
	}

	return &OneClassDetector{
		DetectorName: name,
		FeatureList:  feats,
		Scaler:       scaler,
		Center:       center,
		Radius:       Percentile(dists, (1-nu)*100),
	}
}

func (d *OneClassDetector) Name() string       { return d.DetectorName }
func (d *OneClassDetector) Kind() string       { return KindOneClass }
func (d *OneClassDetector) Features() []string { return d.FeatureList }

func (d *OneClassDetector) Evaluate(row models.FeatureRow) models.DetectorVerdict {
	vals, ok := gather(row, d.FeatureList)
	if !ok {
		return notApplicable(d.DetectorName, "missing required features")
	}
	if len(d.Center) != len(vals) {
		return notApplicable(d.DetectorName, "model not fitted")
	}

	dist := euclidean(d.Scaler.Transform(vals), d.Center)
	outlier := dist > d.Radius

	confidence := 0.2
	if outlier {
		confidence = 0.8
	}

	return models.DetectorVerdict{
		Detector:   d.DetectorName,
		Flag:       outlier,
		Score:      dist,
		Confidence: confidence,
	}
}
