package kafka

import (
	"context"
	"errors"

	"github.com/aihub/chatbot-go/internal/config"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"go.uber.org/zap"
)

// TaskQueue 基于Kafka的导入队列，实现 ingestion.Queue
type TaskQueue struct {
	*Producer
	consumer *Consumer
}

var _ ingestion.Queue = (*TaskQueue)(nil)

// NewTaskQueue 按配置创建生产者和消费者组
func NewTaskQueue(cfg config.KafkaConfig, logger *zap.Logger) (*TaskQueue, error) {
	producer, err := NewProducer(cfg.Brokers, cfg.Topic, cfg.MaxMessageBytes, logger)
	if err != nil {
		return nil, err
	}
	consumer, err := NewConsumer(cfg.Brokers, cfg.GroupID, []string{cfg.Topic}, logger)
	if err != nil {
		producer.Close()
		return nil, err
	}
	return &TaskQueue{Producer: producer, consumer: consumer}, nil
}

func (q *TaskQueue) Consume(ctx context.Context, handler ingestion.HandlerFunc) error {
	return q.consumer.Consume(ctx, handler)
}

func (q *TaskQueue) Close() error {
	return errors.Join(q.consumer.Close(), q.Producer.Close())
}
