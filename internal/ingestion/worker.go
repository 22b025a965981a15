package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// TaskProcessor 处理单个任务
type TaskProcessor interface {
	Process(ctx context.Context, task *Task) (*Result, error)
}

// Worker 单消费者，任务逐个处理
type Worker struct {
	queue        Queue
	processor    TaskProcessor
	audit        AuditStore
	failureDelay time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewWorker(queue Queue, processor TaskProcessor, audit AuditStore, failureDelay time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:        queue,
		processor:    processor,
		audit:        audit,
		failureDelay: failureDelay,
		logger:       logger,
		now:          time.Now,
	}
}

// Run 阻塞消费直到ctx结束；单个任务失败不影响后续任务
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("导入worker启动")
	err := w.queue.Consume(ctx, w.handle)
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
		w.logger.Info("导入worker停止")
		return nil
	}
	return err
}

// handle 失败时写入ImportError，等待failureDelay后返回错误
func (w *Worker) handle(ctx context.Context, task *Task) error {
	mode := task.modeHint()
	start := w.now()
	log := w.logger.With(
		zap.String("task_id", task.ID),
		zap.Uint("chatbot_id", task.ChatbotID),
		zap.String("source", task.DisplayName()),
	)

	res, err := w.processor.Process(ctx, task)
	taskDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err == nil {
		tasksTotal.WithLabelValues(res.Mode, "success").Inc()
		log.Info("导入完成",
			zap.String("mode", res.Mode),
			zap.String("file_hash", res.FileHash),
			zap.Int("chunks", res.Chunks),
			zap.Int64("replaced", res.Replaced))
		return nil
	}

	tasksTotal.WithLabelValues(mode, "failed").Inc()
	log.Error("导入失败", zap.Error(err))

	payload, mErr := json.Marshal(task)
	if mErr != nil {
		payload = []byte("{}")
	}
	rec := &models.ImportError{
		ChatbotID: task.ChatbotID,
		TaskID:    task.ID,
		FileName:  task.FileName,
		URL:       task.URL,
		Payload:   datatypes.JSON(payload),
		Error:     err.Error(),
		CreatedAt: w.now(),
	}
	if aErr := w.audit.RecordImportError(context.WithoutCancel(ctx), rec); aErr != nil {
		log.Error("记录导入错误失败", zap.Error(aErr))
	}

	if w.failureDelay > 0 {
		timer := time.NewTimer(w.failureDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	return apperrors.NewIngestionError("ingestion task "+task.ID+" failed", err)
}
