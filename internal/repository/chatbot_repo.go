package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/models"
	"github.com/aihub/chatbot-go/internal/security"
	"gorm.io/gorm"
)

// ChatbotRepository 机器人配置读取
type ChatbotRepository struct {
	db     *gorm.DB
	cipher *security.Cipher
}

// NewChatbotRepository cipher 为nil时API Key按明文读取
func NewChatbotRepository(db *gorm.DB, cipher *security.Cipher) *ChatbotRepository {
	return &ChatbotRepository{db: db, cipher: cipher}
}

// Get 读取机器人并解密API Key
func (r *ChatbotRepository) Get(ctx context.Context, id uint) (*models.Chatbot, error) {
	var bot models.Chatbot
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("chatbot %d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("load chatbot %d: %w", id, err)
	}

	key, err := r.cipher.Decrypt(bot.LLMAPIKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt api key of chatbot %d: %w", id, err)
	}
	bot.LLMAPIKey = key
	return &bot, nil
}

// EnabledPlugins 机器人启用的后处理插件名
func (r *ChatbotRepository) EnabledPlugins(ctx context.Context, id uint) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.ChatbotPlugin{}).
		Where("chatbot_id = ?", id).
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("load plugins of chatbot %d: %w", id, err)
	}
	return names, nil
}
