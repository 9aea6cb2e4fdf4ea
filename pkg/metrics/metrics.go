package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssessmentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tianwang_assessments_processed_total",
		Help: "已完成的风险评估总数",
	})

	RiskScoreHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tianwang_risk_scores",
		Help:    "风险分数分布",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tianwang_alerts_triggered_total",
		Help: "触发的告警总数",
	})

	DetectorExecutionTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tianwang_detector_execution_seconds",
			Help:    "各检测器执行时间",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
		},
		[]string{"detector"},
	)

	DetectorNotApplicable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tianwang_detector_not_applicable_total",
			Help: "检测器返回不可用判定的次数",
		},
		[]string{"detector"},
	)
)
