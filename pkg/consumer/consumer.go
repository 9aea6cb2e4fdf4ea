package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"go-tianwang/pkg/analyzer"
	"go-tianwang/pkg/config"
	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/models"
)

// Consumer 从Kafka消费流量特征记录并送入风险分析
type Consumer struct {
	group    sarama.ConsumerGroup
	topic    string
	analyzer *analyzer.RiskAnalyzer
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewConsumer(cfg *config.Config, ra *analyzer.RiskAnalyzer) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion("2.1.0")
	if err != nil {
		return nil, err
	}
	saramaCfg.Version = version
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Group.Session.Timeout = 20 * time.Second
	saramaCfg.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	saramaCfg.Net.DialTimeout = 30 * time.Second

	logger.Log.Infof("正在连接 Kafka brokers: %v", cfg.Kafka.Brokers)
	group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:    group,
		topic:    cfg.Kafka.Topic,
		analyzer: ra,
		done:     make(chan struct{}),
	}, nil
}

// Start 启动消费循环，rebalance后自动重新加入
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		defer close(c.done)
		handler := &flowHandler{analyzer: c.analyzer}
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				logger.Log.Errorf("Kafka消费出错: %v", err)
				time.Sleep(time.Second)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			logger.Log.Errorf("Kafka消费组错误: %v", err)
		}
	}()

	logger.Log.Infof("Kafka消费已启动, topic=%s", c.topic)
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
	if err := c.group.Close(); err != nil {
		logger.Log.Errorf("关闭Kafka消费组失败: %v", err)
	}
}

type flowHandler struct {
	analyzer *analyzer.RiskAnalyzer
}

func (h *flowHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *flowHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *flowHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var rec models.FlowRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			logger.Log.Warnf("消息解析失败, offset=%d: %v", msg.Offset, err)
			session.MarkMessage(msg, "")
			continue
		}

		if len(rec.Features) == 0 {
			logger.Log.Debugf("消息缺少特征字段, offset=%d", msg.Offset)
			session.MarkMessage(msg, "")
			continue
		}

		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now()
		}

		h.analyzer.Process(rec)
		session.MarkMessage(msg, "")
	}
	return nil
}
