package detector

import (
	"math"
)

// Scaler 标准化缩放器（均值/标准差），训练时拟合，服务时只读
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler 在训练矩阵上拟合缩放参数，data每行一个样本
func FitScaler(data [][]float64) *Scaler {
	if len(data) == 0 {
		return &Scaler{}
	}
	dim := len(data[0])
	mean := make([]float64, dim)
	std := make([]float64, dim)

	for _, row := range data {
		for i, v := range row {
			mean[i] += v
		}
	}
	n := float64(len(data))
	for i := range mean {
		mean[i] /= n
	}

	for _, row := range data {
		for i, v := range row {
			d := v - mean[i]
			std[i] += d * d
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / n)
	}

	return &Scaler{Mean: mean, Std: std}
}

// Transform 标准化一个样本，标准差为0的维度只做去均值
func (s *Scaler) Transform(x []float64) []float64 {
	if len(s.Mean) != len(x) {
		// 维度不匹配时原样返回，由上层的契约检查兜底
		return x
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - s.Mean[i]
		if s.Std[i] > 0 {
			out[i] /= s.Std[i]
		}
	}
	return out
}

// TransformAll 批量标准化
func (s *Scaler) TransformAll(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = s.Transform(row)
	}
	return out
}
