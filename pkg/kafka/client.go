// Package kafka 提供了向 Kafka 发送 SQL 审计事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"homesync-go/internal/config"
	"homesync-go/pkg/events"
	"homesync-go/pkg/log"
)

// AuditPublisher 将每条执行过的 SQL 写入审计主题。
type AuditPublisher struct {
	writer *kafka.Writer
}

// NewAuditPublisher 初始化 Kafka 生产者。Brokers 以逗号分隔。
func NewAuditPublisher(cfg config.KafkaConfig) *AuditPublisher {
	brokers := splitBrokers(cfg.Brokers)
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	log.Infof("Kafka 审计生产者初始化成功, topic=%s", cfg.Topic)
	return &AuditPublisher{writer: w}
}

// PublishQuery 发送一条审计事件，同一会话的事件落在同一分区以保持顺序。
func (p *AuditPublisher) PublishQuery(ctx context.Context, event events.QueryAudit) error {
	msg, err := encodeAuditMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Close 刷新并关闭生产者。
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}

func encodeAuditMessage(event events.QueryAudit) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal audit event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(event.SessionID),
		Value: value,
		Time:  event.ExecutedAt,
	}, nil
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
