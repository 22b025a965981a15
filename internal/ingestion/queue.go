package ingestion

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("ingestion queue closed")

// HandlerFunc 处理一个任务
type HandlerFunc func(ctx context.Context, task *Task) error

// Queue 多生产者、单消费者的任务队列
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	// Consume 逐个调用handler，直到ctx结束或队列关闭
	Consume(ctx context.Context, handler HandlerFunc) error
	Close() error
}

// MemoryQueue 进程内有界队列，满时Publish阻塞
type MemoryQueue struct {
	tasks chan *Task
	done  chan struct{}
	once  sync.Once
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryQueue{
		tasks: make(chan *Task, capacity),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Publish(ctx context.Context, task *Task) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume handler返回的错误不会中断消费
func (q *MemoryQueue) Consume(ctx context.Context, handler HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrQueueClosed
		case task := <-q.tasks:
			_ = handler(ctx, task)
		}
	}
}

// Len 待处理任务数
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
