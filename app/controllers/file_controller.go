package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/logger"
	"github.com/aihub/chatbot-go/internal/storage"
	"go.uber.org/zap"
)

var fileHashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// FileController 引用链接 /i/:hash 指向的原始文件
type FileController struct {
	BaseController
	files FileSource
}

func (c *FileController) Prepare() {
	c.files = current().Files
}

// Download GET /i/:hash
func (c *FileController) Download() {
	hash := c.Ctx.Input.Param(":hash")
	if !fileHashPattern.MatchString(hash) {
		c.JSONError(http.StatusNotFound, apperrors.ErrCodeNotFound, "file not found")
		return
	}
	if c.files == nil {
		c.JSONError(http.StatusNotFound, apperrors.ErrCodeNotFound, "file storage disabled")
		return
	}

	obj, err := c.files.Get(c.Ctx.Request.Context(), hash)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSONError(http.StatusNotFound, apperrors.ErrCodeNotFound, "file not found")
		return
	}
	if err != nil {
		c.JSONAppError(err)
		return
	}
	defer obj.Body.Close()

	w := c.Ctx.ResponseWriter
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename*=UTF-8''%s", url.PathEscape(obj.FileName)))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(obj.Size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		logger.Warn("File download interrupted", zap.String("file_hash", hash), zap.Error(err))
	}
}
