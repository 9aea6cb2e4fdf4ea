package generator

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"go-tianwang/pkg/models"
)

// Generator 生成标准化后的合成流量特征，用于演示和压测。
// 特征值模拟z-score分布，大部分落在[-2, 2]，少量注入攻击模式。
type Generator struct {
	features []string
	faker    *gofakeit.Faker
}

func NewGenerator(features []string, seed uint64) *Generator {
	return &Generator{
		features: append([]string(nil), features...),
		faker:    gofakeit.New(seed),
	}
}

// NextRecord 产出一条流量记录，约20%概率注入某类攻击特征
func (g *Generator) NextRecord() models.FlowRecord {
	row := make(models.FeatureRow, len(g.features))
	for _, name := range g.features {
		row[name] = g.faker.Float64Range(-1.2, 1.2)
	}

	if g.faker.Float32Range(0, 1) < 0.2 {
		g.injectAttack(row)
	}

	return models.FlowRecord{
		Timestamp: time.Now(),
		SourceIP:  g.faker.IPv4Address(),
		Features:  row,
	}
}

// injectAttack 随机挑一种攻击形态，把对应特征推到异常区间。
// 只改写记录已有的特征，保持schema与模型特征列表一致。
func (g *Generator) injectAttack(row models.FeatureRow) {
	switch g.faker.Number(0, 4) {
	case 0: // DoS形态：高速率高负载
		g.bump(row, "rate", 2.0, 4.0)
		g.bump(row, "sload", 2.0, 4.0)
		g.bump(row, "spkts", 1.5, 3.0)
	case 1: // 端口扫描形态：连接计数异常
		g.bump(row, "ct_srv_src", 2.0, 4.0)
		g.bump(row, "ct_dst_ltm", 2.0, 4.0)
		g.bump(row, "ct_src_dport_ltm", 1.5, 3.0)
	case 2: // 暴力破解形态：登录相关计数升高
		g.bump(row, "ct_ftp_cmd", 1.5, 3.0)
		g.bump(row, "is_ftp_login", 1.5, 3.0)
	case 3: // 大流量形态
		g.bump(row, "sload", 2.5, 5.0)
		g.bump(row, "dload", 2.5, 5.0)
		g.bump(row, "sbytes", 2.0, 4.0)
	case 4: // TCP行为异常
		g.bump(row, "tcprtt", 2.0, 4.0)
		g.bump(row, "synack", 2.0, 4.0)
		g.bump(row, "ackdat", 1.5, 3.0)
	}
}

func (g *Generator) bump(row models.FeatureRow, name string, lo, hi float64) {
	if row.Has(name) {
		row[name] = g.faker.Float64Range(lo, hi)
	}
}
