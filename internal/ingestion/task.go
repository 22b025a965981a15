package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// 处理模式，写入 RefreshInformation.Mode
const (
	ModeCag      = "cag"
	ModeHTML     = "html"
	ModeDocument = "document"
)

// Task 队列中的导入任务
type Task struct {
	ID           string    `json:"id"`
	ChatbotID    uint      `json:"chatbot_id" validate:"required"`
	FileContent  []byte    `json:"file_content,omitempty" validate:"required_without=URL"`
	FileName     string    `json:"file_name"`
	FileMimeType string    `json:"file_mime_type"`
	URL          string    `json:"url,omitempty" validate:"omitempty,url"`
	ChunkSize    int       `json:"chunk_size" validate:"gt=0"`
	OverlapSize  int       `json:"overlap_size" validate:"gte=0,ltfield=ChunkSize"`
	IsRequired   bool      `json:"is_required"`
	UseCag       bool      `json:"use_cag"`
	CronJob      string    `json:"cron_job,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

var validate = validator.New()

// Validate 校验任务字段
func (t *Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid ingestion task: %w", err)
	}
	return nil
}

// IsURL 来源为网页
func (t *Task) IsURL() bool {
	return t.URL != "" && len(t.FileContent) == 0
}

// FileHash 去重键：文件内容或URL的SHA-256十六进制摘要
func (t *Task) FileHash() string {
	var sum [32]byte
	if len(t.FileContent) > 0 {
		sum = sha256.Sum256(t.FileContent)
	} else {
		sum = sha256.Sum256([]byte(strings.TrimSpace(t.URL)))
	}
	return hex.EncodeToString(sum[:])
}

// DisplayName 引用与审计中使用的名称
func (t *Task) DisplayName() string {
	if t.FileName != "" {
		return t.FileName
	}
	return t.URL
}

// modeHint 处理前根据任务推断模式，用于指标标签
func (t *Task) modeHint() string {
	switch {
	case t.UseCag:
		return ModeCag
	case t.IsURL(), strings.HasPrefix(t.FileMimeType, "text/html"):
		return ModeHTML
	default:
		return ModeDocument
	}
}
