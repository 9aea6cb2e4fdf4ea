package models

import (
	"time"
)

// FeatureRow 一条网络流量特征记录，特征名 -> 数值（标准化后的UNSW-NB15特征）
type FeatureRow map[string]float64

// Get 读取特征值，缺失的特征按0处理（显式约定，见主分类器契约）
func (r FeatureRow) Get(name string) float64 {
	return r[name]
}

// Has 判断所有给定特征是否都存在
func (r FeatureRow) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := r[n]; !ok {
			return false
		}
	}
	return true
}

// FlowRecord 表示从Kafka接收的流量记录结构
type FlowRecord struct {
	Timestamp time.Time  `json:"@timestamp"`
	SourceIP  string     `json:"source_ip"`
	Model     string     `json:"model"`
	Features  FeatureRow `json:"features"`
}

// DetectorVerdict 单个检测器对一条记录的判定结果
type DetectorVerdict struct {
	Detector   string  `json:"detector"`
	Flag       bool    `json:"flag"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	// Reason 不可用或内部失败时的诊断信息
	Reason string `json:"reason,omitempty"`
}

// RiskAssessment 一次综合风险评估结果
type RiskAssessment struct {
	Timestamp          time.Time                  `json:"timestamp"`
	SourceIP           string                     `json:"source_ip,omitempty"`
	Model              string                     `json:"model"`
	PrimaryLabel       string                     `json:"primary_label"`
	PrimaryProbability float64                    `json:"primary_probability"`
	Confidence         float64                    `json:"confidence"`
	RiskScore          float64                    `json:"risk_score"`
	RiskFactors        []string                   `json:"risk_factors"`
	AttackTypes        []string                   `json:"attack_types"`
	Recommendations    []string                   `json:"recommendations"`
	Verdicts           map[string]DetectorVerdict `json:"detectors"`
}
