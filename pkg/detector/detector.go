package detector

import (
	"go-tianwang/pkg/models"
)

// Detector 检测器统一契约：绑定一个攻击类别和一个特征子集。
// Evaluate 对单条记录给出判定；所需特征不全时必须返回不可用判定
// （Flag=false, Confidence=0）而不是报错，特征缺失是正常情况。
type Detector interface {
	Name() string
	Kind() string
	Features() []string
	Evaluate(row models.FeatureRow) models.DetectorVerdict
}

// 检测器种类
const (
	KindAnomaly    = "anomaly"
	KindOneClass   = "one_class"
	KindSupervised = "supervised"
	KindStatic     = "static"
	KindDensity    = "density"
)

// notApplicable 构造不可用判定
func notApplicable(name, reason string) models.DetectorVerdict {
	return models.DetectorVerdict{
		Detector:   name,
		Flag:       false,
		Confidence: 0,
		Reason:     reason,
	}
}

// gather 按特征分组顺序取值，任一特征缺失时返回false
func gather(row models.FeatureRow, feats []string) ([]float64, bool) {
	if !row.Has(feats...) {
		return nil, false
	}
	vals := make([]float64, len(feats))
	for i, f := range feats {
		vals[i] = row.Get(f)
	}
	return vals, true
}
