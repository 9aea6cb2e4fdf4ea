package poller

import (
	"time"

	"go-tianwang/pkg/analyzer"
	"go-tianwang/pkg/generator"
	"go-tianwang/pkg/logger"
)

// Poller 按固定间隔生成合成流量并送入风险分析，
// 没有Kafka数据源时用来维持仪表盘数据流。
type Poller struct {
	analyzer  *analyzer.RiskAnalyzer
	generator *generator.Generator
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewPoller(ra *analyzer.RiskAnalyzer, gen *generator.Generator, interval time.Duration) *Poller {
	return &Poller{
		analyzer:  ra,
		generator: gen,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (p *Poller) Start() {
	go p.loop()
	logger.Log.Infof("合成流量轮询已启动, interval=%s", p.interval)
}

func (p *Poller) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rec := p.generator.NextRecord()
			p.analyzer.Process(rec)
		case <-p.stop:
			return
		}
	}
}

func (p *Poller) Close() {
	close(p.stop)
	<-p.done
}
