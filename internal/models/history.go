package models

import "time"

// MessageHistory 会话历史，只追加
type MessageHistory struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	ChatbotID   uint      `gorm:"column:chatbot_id;not null;index:idx_history_window,priority:1" json:"chatbot_id"`
	Channel     Channel   `gorm:"column:channel;size:20;not null;index:idx_history_window,priority:2" json:"channel"`
	UserID      string    `gorm:"column:user_id;size:200;not null;index:idx_history_window,priority:3" json:"user_id"`
	Role        string    `gorm:"column:role;size:20;not null" json:"role"`
	Message     string    `gorm:"column:message;type:text;not null" json:"message"`
	IsProcessed bool      `gorm:"column:is_processed" json:"is_processed"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index:idx_history_window,priority:4" json:"created_at"`
}

func (MessageHistory) TableName() string {
	return "message_histories"
}
