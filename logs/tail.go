package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/IBM/sarama"
)

// 临时调试工具：直接tail流量特征topic，用来确认Filebeat侧的消息格式
type flowMessage struct {
	Timestamp string             `json:"@timestamp"`
	SourceIP  string             `json:"source_ip"`
	Model     string             `json:"model"`
	Features  map[string]float64 `json:"features"`
}

func main() {
	brokers := []string{"tianwang-kafka:9092"}
	topic := "network-flows"
	if len(os.Args) > 1 {
		topic = os.Args[1]
	}

	consumer, err := sarama.NewConsumer(brokers, sarama.NewConfig())
	if err != nil {
		fmt.Printf("Failed to create consumer: %s\n", err)
		return
	}
	defer consumer.Close()

	pc, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		fmt.Printf("Failed to consume partition: %s\n", err)
		return
	}
	defer pc.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	fmt.Println("Consuming messages...")
	for {
		select {
		case msg := <-pc.Messages():
			var m flowMessage
			if err := json.Unmarshal(msg.Value, &m); err != nil {
				fmt.Printf("Failed to parse JSON message: %v\n", err)
				continue
			}
			fmt.Printf("offset=%d time=%s source_ip=%s model=%s features=%d\n",
				msg.Offset, m.Timestamp, m.SourceIP, m.Model, len(m.Features))
		case err := <-pc.Errors():
			fmt.Printf("Consumer error: %v\n", err)
		case <-sigChan:
			return
		}
	}
}
