package controllers

import (
	"io"
	"net/http"
	"strings"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"github.com/aihub/chatbot-go/internal/knowledge"
)

const defaultMaxUploadBytes = 50 << 20

// KnowledgeController 知识导入接口，任务异步处理
type KnowledgeController struct {
	BaseController
	ingestion TaskSubmitter
	maxBytes  int64
}

func (c *KnowledgeController) Prepare() {
	d := current()
	c.ingestion = d.Ingestion
	c.maxBytes = d.MaxUploadBytes
	if c.maxBytes <= 0 {
		c.maxBytes = defaultMaxUploadBytes
	}
}

// Upload POST /api/v1/chatbots/:id/knowledge
// multipart字段file为上传文件；不带文件时使用表单字段url
func (c *KnowledgeController) Upload() {
	chatbotID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}

	task := &ingestion.Task{
		ChatbotID: chatbotID,
		URL:       strings.TrimSpace(c.GetString("url")),
		CronJob:   strings.TrimSpace(c.GetString("cron_job")),
	}
	task.ChunkSize, _ = c.GetInt("chunk_size", 0)
	task.OverlapSize, _ = c.GetInt("overlap_size", 0)
	task.IsRequired, _ = c.GetBool("is_required", false)
	task.UseCag, _ = c.GetBool("use_cag", false)

	file, header, err := c.GetFile("file")
	if err == nil && file != nil {
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, c.maxBytes+1))
		if err != nil {
			c.JSONError(http.StatusBadRequest, apperrors.ErrCodeBadRequest, "failed to read upload")
			return
		}
		if int64(len(data)) > c.maxBytes {
			c.JSONError(http.StatusRequestEntityTooLarge, apperrors.ErrCodeInvalidInput, "file too large")
			return
		}
		task.FileContent = data
		task.FileName = header.Filename
		task.FileMimeType = knowledge.DetectMimeType(header.Filename, header.Header.Get("Content-Type"))
		task.URL = ""
	} else if task.URL == "" {
		c.JSONError(http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "file or url is required")
		return
	}

	submitted, err := c.ingestion.Submit(c.Ctx.Request.Context(), task)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(http.StatusAccepted, map[string]interface{}{
		"task_id":   submitted.ID,
		"file_hash": submitted.FileHash(),
		"file_name": submitted.DisplayName(),
	})
}
