package detector

import (
	"fmt"
	"strings"

	"go-tianwang/pkg/models"
)

// Band 单个特征的正常取值区间，指针为nil表示该侧不设界
type Band struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// StaticDetector 静态阈值型检测器（带宽、包长）：
// 无拟合模型，逐特征与训练分布的分位数区间比较，任一越界即触发。
type StaticDetector struct {
	DetectorName string          `json:"name"`
	FeatureList  []string        `json:"features"`
	Bands        map[string]Band `json:"bands"`
}

// NewStaticDetector 构造静态阈值检测器，feats给定判定顺序
func NewStaticDetector(name string, feats []string, bands map[string]Band) *StaticDetector {
	return &StaticDetector{
		DetectorName: name,
		FeatureList:  feats,
		Bands:        bands,
	}
}

func (d *StaticDetector) Name() string       { return d.DetectorName }
func (d *StaticDetector) Kind() string       { return KindStatic }
func (d *StaticDetector) Features() []string { return d.FeatureList }

func (d *StaticDetector) Evaluate(row models.FeatureRow) models.DetectorVerdict {
	if !row.Has(d.FeatureList...) {
		return notApplicable(d.DetectorName, "missing required features")
	}
	if len(d.Bands) == 0 {
		return notApplicable(d.DetectorName, "no thresholds configured")
	}

	var violated []string
	for _, f := range d.FeatureList {
		band, ok := d.Bands[f]
		if !ok {
			continue
		}
		v := row.Get(f)
		if band.Min != nil && v < *band.Min {
			violated = append(violated, fmt.Sprintf("%s<%.4f", f, *band.Min))
		}
		if band.Max != nil && v > *band.Max {
			violated = append(violated, fmt.Sprintf("%s>%.4f", f, *band.Max))
		}
	}

	v := models.DetectorVerdict{
		Detector:   d.DetectorName,
		Flag:       len(violated) > 0,
		Confidence: 1.0,
	}
	if len(violated) > 0 {
		v.Reason = strings.Join(violated, ",")
	}
	return v
}
