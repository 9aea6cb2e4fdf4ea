package analyzer

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"go-tianwang/pkg/alerter"
	"go-tianwang/pkg/classifier"
	"go-tianwang/pkg/detector"
	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/metrics"
	"go-tianwang/pkg/models"
	"go-tianwang/pkg/storage"
)

// ErrInvalidInput 请求的特征行不是有效映射，整个评估失败
var ErrInvalidInput = errors.New("invalid feature row")

// 主分类概率在风险分数中的固定权重
const primaryWeight = 0.4

// 风险因子名
const (
	FactorDoS            = "DoS Attack Pattern"
	FactorFuzzer         = "Fuzzer Attack Pattern"
	FactorPortScan       = "Port Scan Pattern"
	FactorBruteForce     = "Brute Force Pattern"
	FactorReconnaissance = "Reconnaissance Pattern"
	FactorHighBandwidth  = "High Bandwidth Usage"
	FactorSuspiciousTCP  = "Suspicious TCP Behavior"
	FactorAbnormalPacket = "Abnormal Packet Size"
	FactorTimingAnomaly  = "Timing Anomaly"
	FactorSessionAnomaly = "Session Anomaly"
)

// 各检测器的固定权重与对应风险因子名。权重总和恰为0.6，
// 是对类别严重性的编辑判断（DoS最高，时序/会话最低），
// 与主分类的0.4相加可达上限1.0。同一条记录允许同时触发多个
// 重叠类别并各自计全额权重，类别是信息性标签而非互斥划分。
var detectorWeights = []struct {
	Name   string
	Weight float64
	Factor string
}{
	{"dos", 0.12, FactorDoS},
	{"fuzzer", 0.08, FactorFuzzer},
	{"port_scan", 0.08, FactorPortScan},
	{"brute_force", 0.07, FactorBruteForce},
	{"reconnaissance", 0.07, FactorReconnaissance},
	{"bandwidth", 0.04, FactorHighBandwidth},
	{"tcp_behavior", 0.04, FactorSuspiciousTCP},
	{"packet_size", 0.04, FactorAbnormalPacket},
	{"timing", 0.03, FactorTimingAnomaly},
	{"session", 0.03, FactorSessionAnomaly},
}

// RiskAnalyzer 风险分析器：主分类器 + 各类别检测器 -> 综合评估。
// 启动后全部成员只读，可被多个来源（HTTP、Kafka、轮询）并发使用。
type RiskAnalyzer struct {
	registry       *detector.Registry
	primary        *classifier.Ensemble
	storage        *storage.Storage
	alerter        *alerter.Alerter
	whitelist      *Whitelist
	alertThreshold float64
	defaultModel   string
}

func NewRiskAnalyzer(
	registry *detector.Registry,
	primary *classifier.Ensemble,
	store *storage.Storage,
	alert *alerter.Alerter,
	whitelist *Whitelist,
	alertThreshold float64,
	defaultModel string,
) *RiskAnalyzer {
	return &RiskAnalyzer{
		registry:       registry,
		primary:        primary,
		storage:        store,
		alerter:        alert,
		whitelist:      whitelist,
		alertThreshold: alertThreshold,
		defaultModel:   defaultModel,
	}
}

// Assess 对一条特征行做综合风险评估。无副作用、无请求级状态，
// 相同输入和模型下结果幂等（时间戳除外）。
func (ra *RiskAnalyzer) Assess(row models.FeatureRow, modelName string) (*models.RiskAssessment, error) {
	if len(row) == 0 {
		return nil, ErrInvalidInput
	}
	if modelName == "" {
		modelName = ra.defaultModel
	}

	label, prob, err := ra.primary.Predict(row, modelName)
	if err != nil {
		return nil, err
	}

	verdicts := ra.registry.EvaluateAll(row)

	// 加权求和：0.4*主分类概率 + 各触发检测器的固定权重，封顶1.0
	risk := primaryWeight * prob
	factors := make([]string, 0)
	for _, w := range detectorWeights {
		v, ok := verdicts[w.Name]
		if ok && v.Flag {
			risk += w.Weight
			factors = append(factors, w.Factor)
		}
	}
	risk = math.Min(risk, 1.0)

	primaryLabel := "Normal"
	if label == 1 {
		primaryLabel = "Attack"
	}

	a := &models.RiskAssessment{
		Timestamp:          time.Now(),
		Model:              modelName,
		PrimaryLabel:       primaryLabel,
		PrimaryProbability: prob,
		Confidence:         math.Max(prob, 1-prob),
		RiskScore:          risk,
		RiskFactors:        factors,
		AttackTypes:        DetectAttackTypes(row),
		Recommendations:    Recommendations(factors),
		Verdicts:           verdicts,
	}

	metrics.AssessmentsProcessed.Inc()
	metrics.RiskScoreHistogram.Observe(risk)

	logger.Log.Debugf("风险评估完成: model=%s, risk_score=%.4f, factors=%d",
		modelName, risk, len(factors))
	return a, nil
}

// Process 流式处理一条流量记录：评估、持久化，高风险时触发告警。
// Kafka消费者和轮询器走这条路径。
func (ra *RiskAnalyzer) Process(rec models.FlowRecord) {
	a, err := ra.Assess(rec.Features, rec.Model)
	if err != nil {
		logger.Log.Warnf("流量记录评估失败: source_ip=%s, error=%v", rec.SourceIP, err)
		return
	}
	a.SourceIP = rec.SourceIP

	if ra.storage != nil {
		if err := ra.storage.SaveAssessment(a, rec.Timestamp); err != nil {
			logger.Log.Errorf("保存评估结果失败: %v", err)
		}
		if err := ra.storage.SaveAssessmentPoint(a); err != nil {
			logger.Log.Errorf("写入评估时序点失败: %v", err)
		}
	}

	if a.RiskScore >= ra.alertThreshold {
		if ra.whitelist != nil && ra.whitelist.ContainsIP(rec.SourceIP) {
			logger.Log.Debugf("来源IP %s 在白名单中，跳过告警", rec.SourceIP)
			return
		}
		if ra.alerter != nil {
			if err := ra.alerter.TriggerAlert(a); err != nil {
				logger.Log.Errorf("触发告警失败: %v", err)
			}
		}
	}
}

// ListDetectors 可用检测器名列表，供服务端健康检查/自省
func (ra *RiskAnalyzer) ListDetectors() []string {
	return ra.registry.List()
}

// ListModels 可用主模型名列表
func (ra *RiskAnalyzer) ListModels() []string {
	return ra.primary.Models()
}
