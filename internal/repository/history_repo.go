package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/chatbot-go/internal/models"
	"gorm.io/gorm"
)

// HistoryQuery 历史窗口 [Since, Until]
type HistoryQuery struct {
	ChatbotID uint
	Channel   models.Channel
	UserID    string
	Since     time.Time
	Until     time.Time
}

// HistoryRepository 会话历史
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Window 时间窗口内的历史，按时间升序
func (r *HistoryRepository) Window(ctx context.Context, q HistoryQuery) ([]models.MessageHistory, error) {
	var rows []models.MessageHistory
	err := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND channel = ? AND user_id = ?", q.ChatbotID, q.Channel, q.UserID).
		Where("created_at >= ? AND created_at <= ?", q.Since, q.Until).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history window: %w", err)
	}
	return rows, nil
}

// Append 在一个事务内写入本次请求的所有消息
func (r *HistoryRepository) Append(ctx context.Context, turns ...models.MessageHistory) error {
	if len(turns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&turns).Error
	})
}
