package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/models"
	"go.uber.org/zap"
)

// Completer 补全接口
type Completer interface {
	Complete(ctx context.Context, apiKey string, req CompletionRequest) (*CompletionResponse, error)
}

// Client OpenAI兼容的chat/completions客户端，支持文件片段、联网搜索和url_citation标注
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient 创建客户端，timeout 覆盖整个请求（含读取响应）
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Complete 调用补全接口；非2xx返回带上游状态码的错误
func (c *Client) Complete(ctx context.Context, apiKey string, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(buildWireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		c.logger.Warn("completion upstream error",
			zap.Int("status", resp.StatusCode),
			zap.String("model", req.Model),
			zap.String("message", msg))
		return nil, apperrors.NewCompletionError(resp.StatusCode, msg)
	}

	var out CompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	c.logger.Info("completion success",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return &out, nil
}

// buildWireRequest 附件作为file片段挂在最后一条user消息上，没有user消息时追加一条
func buildWireRequest(req CompletionRequest) wireRequest {
	w := wireRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.WebSearch {
		w.WebSearchOptions = &webSearchOptions{SearchContextSize: "medium"}
	}

	attachTo := -1
	if len(req.Attachments) > 0 {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == models.RoleUser {
				attachTo = i
				break
			}
		}
	}

	for i, m := range req.Messages {
		if i == attachTo {
			w.Messages = append(w.Messages, partsMessage(m.Role, m.Content, req.Attachments))
			continue
		}
		w.Messages = append(w.Messages, textMessage(m.Role, m.Content))
	}
	if len(req.Attachments) > 0 && attachTo < 0 {
		w.Messages = append(w.Messages, partsMessage(models.RoleUser, "", req.Attachments))
	}
	return w
}

func textMessage(role, content string) wireMessage {
	raw, _ := json.Marshal(content)
	return wireMessage{Role: role, Content: raw}
}

func partsMessage(role, text string, attachments []Attachment) wireMessage {
	parts := make([]contentPart, 0, len(attachments)+1)
	if text != "" {
		parts = append(parts, contentPart{Type: "text", Text: text})
	}
	for _, a := range attachments {
		parts = append(parts, contentPart{
			Type: "file",
			File: &filePart{FileName: a.FileName, FileData: a.DataURL()},
		})
	}
	raw, _ := json.Marshal(parts)
	return wireMessage{Role: role, Content: raw}
}
