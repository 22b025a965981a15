package controllers

import (
	"context"
	"sync"

	"github.com/aihub/chatbot-go/internal/chat"
	"github.com/aihub/chatbot-go/internal/database"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"github.com/aihub/chatbot-go/internal/storage"
)

// ChatCompleter 对话引擎
type ChatCompleter interface {
	Complete(ctx context.Context, req chat.ChatRequest) (*chat.ChatResponse, error)
}

// TaskSubmitter 导入任务入队
type TaskSubmitter interface {
	Submit(ctx context.Context, task *ingestion.Task) (*ingestion.Task, error)
}

// FileSource 归档文件读取
type FileSource interface {
	Get(ctx context.Context, fileHash string) (*storage.Object, error)
}

// HealthReporter 健康状态
type HealthReporter interface {
	Result() database.HealthCheckResult
}

// Dependencies 控制器依赖，由bootstrap在启动时注入
type Dependencies struct {
	Chat      ChatCompleter
	Ingestion TaskSubmitter
	// Files 未启用MinIO时为nil
	Files  FileSource
	Health HealthReporter
	// MaxUploadBytes 上传文件大小上限
	MaxUploadBytes int64
}

var (
	depsMu sync.RWMutex
	deps   Dependencies
)

// SetDependencies 注入控制器依赖
func SetDependencies(d Dependencies) {
	depsMu.Lock()
	defer depsMu.Unlock()
	deps = d
}

func current() Dependencies {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return deps
}
