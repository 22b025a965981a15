package ingestion

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/google/uuid"
)

// Service 导入任务入口，供上传接口和定时刷新调用
type Service struct {
	queue          Queue
	defaultChunk   int
	defaultOverlap int
	now            func() time.Time
}

func NewService(queue Queue, defaultChunk, defaultOverlap int) *Service {
	if defaultChunk <= 0 {
		defaultChunk = 1000
	}
	if defaultOverlap < 0 || defaultOverlap >= defaultChunk {
		defaultOverlap = defaultChunk / 5
	}
	return &Service{
		queue:          queue,
		defaultChunk:   defaultChunk,
		defaultOverlap: defaultOverlap,
		now:            time.Now,
	}
}

// Submit 补全默认值、分配任务ID并入队
func (s *Service) Submit(ctx context.Context, task *Task) (*Task, error) {
	if task.ChunkSize <= 0 {
		task.ChunkSize = s.defaultChunk
		if task.OverlapSize == 0 {
			task.OverlapSize = s.defaultOverlap
		}
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.SubmittedAt = s.now()

	if err := task.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.queue.Publish(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return task, nil
}
