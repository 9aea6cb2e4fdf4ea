package detector

import (
	"go-tianwang/pkg/models"
)

// DensityDetector 密度聚类型检测器（端口扫描）。
// 训练时在正常流量样本上做一次DBSCAN并保存核心点；
// 服务时一条记录到最近核心点的距离超过eps即判为离群，
// 不对单条请求重新聚类。
type DensityDetector struct {
	DetectorName string      `json:"name"`
	FeatureList  []string    `json:"features"`
	Scaler       *Scaler     `json:"scaler"`
	Cores        [][]float64 `json:"cores"`
	Eps          float64     `json:"eps"`
}

// FitDensityDetector 在正常流量样本上拟合DBSCAN核心点集合
func FitDensityDetector(name string, feats []string, normal [][]float64, eps float64, minPts int) *DensityDetector {
	scaler := FitScaler(normal)
	scaled := scaler.TransformAll(normal)

	return &DensityDetector{
		DetectorName: name,
		FeatureList:  feats,
		Scaler:       scaler,
		Cores:        dbscanCores(scaled, eps, minPts),
		Eps:          eps,
	}
}

// dbscanCores 找出所有核心点（eps邻域内至少minPts个样本）
func dbscanCores(data [][]float64, eps float64, minPts int) [][]float64 {
	cores := make([][]float64, 0)
	for i, p := range data {
		count := 0
		for j, q := range data {
			if i == j {
				continue
			}
			if euclidean(p, q) <= eps {
				count++
				if count+1 >= minPts {
					break
				}
			}
		}
		if count+1 >= minPts {
			cores = append(cores, p)
		}
	}
	return cores
}

func (d *DensityDetector) Name() string       { return d.DetectorName }
func (d *DensityDetector) Kind() string       { return KindDensity }
func (d *DensityDetector) Features() []string { return d.FeatureList }

func (d *DensityDetector) Evaluate(row models.FeatureRow) models.DetectorVerdict {
	vals, ok := gather(row, d.FeatureList)
	if !ok {
		return notApplicable(d.DetectorName, "missing required features")
	}
	if len(d.Cores) == 0 {
		return notApplicable(d.DetectorName, "no core points fitted")
	}

	scaled := d.Scaler.Transform(vals)
	minDist := euclidean(scaled, d.Cores[0])
	for _, core := range d.Cores[1:] {
		if dist := euclidean(scaled, core); dist < minDist {
			minDist = dist
		}
	}

	outlier := minDist > d.Eps
	confidence := 0.1
	if outlier {
		confidence = 0.9
	}

	return models.DetectorVerdict{
		Detector:   d.DetectorName,
		Flag:       outlier,
		Score:      minDist,
		Confidence: confidence,
	}
}
