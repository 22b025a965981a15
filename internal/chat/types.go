package chat

import (
	"strings"

	"github.com/aihub/chatbot-go/internal/models"
)

// BufferedMessage 无状态会话由调用方携带的消息
type BufferedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 一次对话请求，渠道webhook解析后的结果
type ChatRequest struct {
	ChatbotID   uint              `json:"chatbot_id" validate:"required"`
	UserID      string            `json:"user_id"`
	Message     string            `json:"message"`
	Buffered    []BufferedMessage `json:"buffered,omitempty"`
	Channel     models.Channel    `json:"channel" validate:"required"`
	MaxTokens   *int              `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature *float64          `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

func (r *ChatRequest) anonymous() bool {
	return strings.TrimSpace(r.UserID) == ""
}

// ReferenceItem 回复引用：模型返回的网页引用或知识来源文件
type ReferenceItem struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	LogoPath   string `json:"logoPath"`
	Text       string `json:"text"`
}

// ChatResponse 对话结果
type ChatResponse struct {
	Message        string          `json:"message"`
	ReferenceItems []ReferenceItem `json:"referenceItems"`
	Suggestions    []string        `json:"suggestions"`
}

func apologyResponse() *ChatResponse {
	return &ChatResponse{
		Message:        ApologyMessage,
		ReferenceItems: []ReferenceItem{},
		Suggestions:    []string{},
	}
}
