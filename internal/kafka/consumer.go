package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"go.uber.org/zap"
)

// Consumer 导入任务消费者组
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string
	logger *zap.Logger
}

func newConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0
	return config
}

// NewConsumer 创建消费者组
func NewConsumer(brokers []string, groupID string, topics []string, logger *zap.Logger) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, newConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("创建Kafka消费者组失败: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Kafka消费者初始化成功",
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID),
		zap.Strings("topics", topics))
	return &Consumer{group: group, topics: topics, logger: logger}, nil
}

// Consume 阻塞直到ctx结束；重平衡后重新加入消费组
func (c *Consumer) Consume(ctx context.Context, handler ingestion.HandlerFunc) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				c.logger.Error("Kafka消费者错误", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()
	defer wg.Wait()

	h := &taskHandler{handler: handler, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("消费消息失败", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	if c == nil || c.group == nil {
		return nil
	}
	return c.group.Close()
}

// taskHandler 各分区的claim共用一把锁，保证同一时刻只处理一个任务
type taskHandler struct {
	mu      sync.Mutex
	handler ingestion.HandlerFunc
	logger  *zap.Logger
}

func (h *taskHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *taskHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 失败的任务已写入ImportError，消息照常提交
func (h *taskHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			h.dispatch(session.Context(), message)
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *taskHandler) dispatch(ctx context.Context, message *sarama.ConsumerMessage) {
	var task ingestion.Task
	if err := json.Unmarshal(message.Value, &task); err != nil {
		h.logger.Error("解析导入任务失败",
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.handler(ctx, &task); err != nil {
		h.logger.Warn("导入任务处理失败",
			zap.String("task_id", task.ID),
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err))
	}
}
