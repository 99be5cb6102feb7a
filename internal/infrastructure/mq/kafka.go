package mq

import (
	"context"
	"fmt"

	"crowdfund/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Producer 消息投递出口
type Producer interface {
	Send(ctx context.Context, topic, key, value string) error
	Close() error
}

// KafkaProducer 同步生产者，等待所有副本确认后才算投递成功
type KafkaProducer struct {
	producer sarama.SyncProducer
}

// NewKafkaProducer 按配置创建 Kafka 生产者
func NewKafkaProducer(cfg *config.KafkaConfig) (*KafkaProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息
	kafkaConfig.Producer.Idempotent = true                // 生产者幂等，避免重试导致重复
	kafkaConfig.Net.MaxOpenRequests = 1                   // 幂等生产者要求
	kafkaConfig.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return &KafkaProducer{producer: producer}, nil
}

// WrapSyncProducer 包装已有的 sarama 生产者
func WrapSyncProducer(producer sarama.SyncProducer) *KafkaProducer {
	return &KafkaProducer{producer: producer}
}

func (p *KafkaProducer) Send(_ context.Context, topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// LogProducer 未启用 Kafka 时使用，把消息写入日志
type LogProducer struct {
	logger *zap.Logger
}

func NewLogProducer(logger *zap.Logger) *LogProducer {
	return &LogProducer{logger: logger}
}

func (p *LogProducer) Send(_ context.Context, topic, key, value string) error {
	p.logger.Info("账本事件",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.String("payload", value),
	)
	return nil
}

func (p *LogProducer) Close() error {
	return nil
}
