package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"go.uber.org/zap"
)

// Producer 导入任务生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func newProducerConfig(maxMessageBytes int) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	if maxMessageBytes > 0 {
		config.Producer.MaxMessageBytes = maxMessageBytes
	}
	return config
}

// NewProducer 创建同步生产者
func NewProducer(brokers []string, topic string, maxMessageBytes int, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, newProducerConfig(maxMessageBytes))
	if err != nil {
		return nil, fmt.Errorf("创建Kafka生产者失败: %w", err)
	}
	return newProducer(producer, topic, logger), nil
}

func newProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{producer: producer, topic: topic, logger: logger}
}

// Publish 以chatbot_id为key发送，同一机器人的任务落在同一分区
func (p *Producer) Publish(ctx context.Context, task *ingestion.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	chatbotID := strconv.FormatUint(uint64(task.ChatbotID), 10)
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(chatbotID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("task_id"), Value: []byte(task.ID)},
			{Key: []byte("chatbot_id"), Value: []byte(chatbotID)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("发送Kafka消息失败", zap.String("task_id", task.ID), zap.Error(err))
		return fmt.Errorf("发送消息失败: %w", err)
	}

	p.logger.Debug("导入任务已发送",
		zap.String("task_id", task.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
