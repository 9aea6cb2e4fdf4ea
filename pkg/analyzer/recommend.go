package analyzer

// 风险因子 -> 处置建议的静态对照表，纯展示逻辑
var recommendationTable = map[string][]string{
	FactorDoS: {
		"HIGH PRIORITY: Block source IP - DoS attack detected",
		"Monitor bandwidth usage and implement rate limiting",
	},
	FactorFuzzer: {
		"Investigate unusual transaction patterns",
		"Implement input validation and sanitization",
	},
	FactorPortScan: {
		"Monitor for reconnaissance activities",
		"Consider blocking suspicious IP addresses",
	},
	FactorBruteForce: {
		"Implement account lockout policies",
		"Enable multi-factor authentication",
	},
	FactorReconnaissance: {
		"Monitor network scanning activities",
		"Implement intrusion detection rules",
	},
	FactorHighBandwidth: {
		"Investigate high bandwidth consumption",
		"Implement bandwidth throttling",
	},
	FactorSuspiciousTCP: {
		"Analyze TCP connection patterns",
		"Review firewall rules",
	},
	FactorAbnormalPacket: {
		"Investigate unusual packet sizes",
		"Check for fragmentation attacks",
	},
	FactorTimingAnomaly: {
		"Analyze timing patterns for attacks",
		"Check for timing-based attacks",
	},
	FactorSessionAnomaly: {
		"Monitor session state changes",
		"Implement session hijacking protection",
	},
}

const noConcernMessage = "No immediate security concerns detected"

// Recommendations 按触发的风险因子给出处置建议，无因子时返回单条正常提示
func Recommendations(factors []string) []string {
	if len(factors) == 0 {
		return []string{noConcernMessage}
	}
	recs := make([]string, 0, len(factors)*2)
	for _, f := range factors {
		recs = append(recs, recommendationTable[f]...)
	}
	return recs
}
