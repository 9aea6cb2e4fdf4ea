package analyzer

import (
	"math"

	"go-tianwang/pkg/models"
)

// 展示用攻击类型启发式规则表。与训练出的检测器相互独立，
// 阈值是z分数口径下的统一常量（本表为唯一权威来源）。
// 各判据的绝对值比较取|x|，负向阈值对带符号的原值比较。

// AttackPattern 一条攻击类型判据
type AttackPattern struct {
	Name  string
	Match func(row models.FeatureRow) bool
}

var attackPatterns = []AttackPattern{
	{"DoS", anyAbsAbove(1.5, "sload", "dload", "spkts", "dpkts")},
	{"Fuzzer", func(r models.FeatureRow) bool {
		return math.Abs(r.Get("trans_depth")) > 1.5 || r.Get("response_body_len") < -1.5
	}},
	{"Port_Scan", anyAbsAbove(1.5, "ct_src_dport_ltm", "ct_dst_sport_ltm")},
	{"Brute_Force", allAbsAbove(0.5, "is_ftp_login", "ct_ftp_cmd")},
	{"Reconnaissance", anyAbsAbove(1.5, "ct_dst_ltm")},
	{"Anomalous_IP", anyAbsAbove(1.5, "is_sm_ips_ports")},
	{"High_Bandwidth", anyAbsAbove(1.0, "sload", "dload")},
	{"Suspicious_TCP", anyAbsAbove(1.0, "tcprtt", "synack", "ackdat")},
	{"Replay_Attack", anyAbsAbove(1.5, "stcpb", "dtcpb")},
	{"Abnormal_Packet", anyAbsAbove(1.5, "smean", "dmean")},
	{"Session_Hijacking", func(r models.FeatureRow) bool {
		return math.Abs(r.Get("state")) > 1.0 && r.Get("dur") < -1.0
	}},
	{"Jitter_Anomaly", anyAbsAbove(1.0, "sjit", "djit")},
	{"Slowloris", allAbsAbove(1.0, "dur", "trans_depth")},
	{"Service_Abuse", anyAbsAbove(1.0, "ct_srv_src", "ct_srv_dst")},
	{"Traffic_Correlation", allAbsAbove(1.0, "ct_dst_src_ltm", "ct_src_ltm")},
	{"Worm_Spread", allAbsAbove(1.0, "sload", "dload", "dur")},
	{"Timing_Attack", anyAbsAbove(1.0, "sinpkt", "dinpkt")},
}

// DetectAttackTypes 返回判据为真的攻击类型名集合，无命中时为空列表
func DetectAttackTypes(row models.FeatureRow) []string {
	types := make([]string, 0)
	for _, p := range attackPatterns {
		if p.Match(row) {
			types = append(types, p.Name)
		}
	}
	return types
}

// anyAbsAbove 任一特征的绝对值超过阈值
func anyAbsAbove(cutoff float64, feats ...string) func(models.FeatureRow) bool {
	return func(r models.FeatureRow) bool {
		for _, f := range feats {
			if math.Abs(r.Get(f)) > cutoff {
				return true
			}
		}
		return false
	}
}

// allAbsAbove 所有特征的绝对值都超过阈值
func allAbsAbove(cutoff float64, feats ...string) func(models.FeatureRow) bool {
	return func(r models.FeatureRow) bool {
		for _, f := range feats {
			if math.Abs(r.Get(f)) <= cutoff {
				return false
			}
		}
		return true
	}
}
