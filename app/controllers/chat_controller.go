package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/aihub/chatbot-go/internal/chat"
	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/models"
)

// ChatController 对话接口，由各渠道的webhook服务调用
type ChatController struct {
	BaseController
	engine ChatCompleter
}

// completeRequest 渠道webhook解析后的请求体
type completeRequest struct {
	UserID      string                 `json:"user_id"`
	Message     string                 `json:"message"`
	Buffered    []chat.BufferedMessage `json:"buffered"`
	Channel     models.Channel         `json:"channel"`
	MaxTokens   *int                   `json:"max_tokens"`
	Temperature *float64               `json:"temperature"`
}

func (c *ChatController) Prepare() {
	c.engine = current().Chat
}

// Complete POST /api/v1/chatbots/:id/complete
func (c *ChatController) Complete() {
	chatbotID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}

	var body completeRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &body); err != nil {
		c.JSONError(http.StatusBadRequest, apperrors.ErrCodeBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := c.engine.Complete(c.Ctx.Request.Context(), chat.ChatRequest{
		ChatbotID:   chatbotID,
		UserID:      body.UserID,
		Message:     body.Message,
		Buffered:    body.Buffered,
		Channel:     body.Channel,
		MaxTokens:   body.MaxTokens,
		Temperature: body.Temperature,
	})
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
