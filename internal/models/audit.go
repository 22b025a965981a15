package models

import (
	"time"

	"gorm.io/datatypes"
)

// RefreshInformation 每次重建索引的记录
type RefreshInformation struct {
	ID         uint      `gorm:"primaryKey;column:id" json:"id"`
	ChatbotID  uint      `gorm:"column:chatbot_id;not null;index" json:"chatbot_id"`
	TaskID     string    `gorm:"column:task_id;size:64" json:"task_id"`
	FileHash   string    `gorm:"column:file_hash;size:64" json:"file_hash"`
	FileName   string    `gorm:"column:file_name;size:500" json:"file_name"`
	URL        string    `gorm:"column:url;size:2000" json:"url"`
	Mode       string    `gorm:"column:mode;size:20" json:"mode"`
	ChunkCount int       `gorm:"column:chunk_count" json:"chunk_count"`
	Replaced   int64     `gorm:"column:replaced" json:"replaced"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (RefreshInformation) TableName() string {
	return "refresh_informations"
}

// ImportError 导入失败记录，payload 保存完整任务以便重放
type ImportError struct {
	ID        uint           `gorm:"primaryKey;column:id" json:"id"`
	ChatbotID uint           `gorm:"column:chatbot_id;not null;index" json:"chatbot_id"`
	TaskID    string         `gorm:"column:task_id;size:64" json:"task_id"`
	FileName  string         `gorm:"column:file_name;size:500" json:"file_name"`
	URL       string         `gorm:"column:url;size:2000" json:"url"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Error     string         `gorm:"column:error;type:text" json:"error"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ImportError) TableName() string {
	return "import_errors"
}
