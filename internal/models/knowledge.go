package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// CagOrderBase order >= CagOrderBase 的记录为整篇文档摘要（CAG），其下为分块内容
const CagOrderBase = 10000

// PreMessage 可检索的知识块，主键语义为 (chatbot_id, order)
type PreMessage struct {
	ID               uint             `gorm:"primaryKey;column:id" json:"id"`
	ChatbotID        uint             `gorm:"column:chatbot_id;not null;uniqueIndex:idx_pre_message_order,priority:1;index:idx_pre_message_hash,priority:1" json:"chatbot_id"`
	Order            int              `gorm:"column:order_index;not null;uniqueIndex:idx_pre_message_order,priority:2" json:"order"`
	UserMessage      string           `gorm:"column:user_message;type:text;not null" json:"user_message"`
	AssistantMessage *string          `gorm:"column:assistant_message;type:text" json:"assistant_message,omitempty"`
	IsRequired       bool             `gorm:"column:is_required" json:"is_required"`
	Embedding        *pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`
	UseCag           bool             `gorm:"column:use_cag" json:"use_cag"`
	FileHash         string           `gorm:"column:file_hash;size:64;index:idx_pre_message_hash,priority:2" json:"file_hash"`
	FileName         string           `gorm:"column:file_name;size:500" json:"file_name"`
	URL              string           `gorm:"column:url;size:2000" json:"url"`
	CronJob          string           `gorm:"column:cron_job;size:100" json:"cron_job"`
	ChunkSize        int              `gorm:"column:chunk_size" json:"chunk_size"`
	OverlapSize      int              `gorm:"column:overlap_size" json:"overlap_size"`
	LastUpdate       time.Time        `gorm:"column:last_update" json:"last_update"`
}

func (PreMessage) TableName() string {
	return "pre_messages"
}

// Vector 返回embedding切片，未向量化时为nil
func (p PreMessage) Vector() []float32 {
	if p.Embedding == nil {
		return nil
	}
	return p.Embedding.Slice()
}

// PreMessageContent CAG知识块对应的原始文件内容
type PreMessageContent struct {
	ID           uint   `gorm:"primaryKey;column:id" json:"id"`
	PreMessageID uint   `gorm:"column:pre_message_id;not null;uniqueIndex" json:"pre_message_id"`
	FileName     string `gorm:"column:file_name;size:500" json:"file_name"`
	MimeType     string `gorm:"column:mime_type;size:200" json:"mime_type"`
	Content      []byte `gorm:"column:content;type:bytea" json:"-"`
}

func (PreMessageContent) TableName() string {
	return "pre_message_contents"
}
