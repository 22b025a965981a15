package models

import (
	"time"
)

// 对话角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Channel 消息来源渠道
type Channel string

const (
	ChannelLine     Channel = "line"
	ChannelFacebook Channel = "facebook"
	ChannelWeb      Channel = "web"
	ChannelAPI      Channel = "api"
)

// Valid 是否为已知渠道
func (c Channel) Valid() bool {
	switch c {
	case ChannelLine, ChannelFacebook, ChannelWeb, ChannelAPI:
		return true
	}
	return false
}

// Chatbot 机器人租户配置，对检索引擎只读
type Chatbot struct {
	ID                    uint      `gorm:"primaryKey;column:id" json:"id"`
	Name                  string    `gorm:"column:name;size:200;not null" json:"name"`
	SystemRole            string    `gorm:"column:system_role;type:text" json:"system_role"`
	LLMAPIKey             string    `gorm:"column:llm_api_key;type:text" json:"-"`
	ModelName             *string   `gorm:"column:model_name;size:200" json:"model_name,omitempty"`
	TopKDocument          int       `gorm:"column:top_k_document;not null" json:"top_k_document"`
	MaximumDistance       float64   `gorm:"column:maximum_distance;not null" json:"maximum_distance"`
	HistoryMinutes        int       `gorm:"column:history_minutes;not null" json:"history_minutes"`
	AllowOutsideKnowledge bool      `gorm:"column:allow_outside_knowledge" json:"allow_outside_knowledge"`
	ResponsiveAgent       bool      `gorm:"column:responsive_agent" json:"responsive_agent"`
	EnableWebSearchTool   bool      `gorm:"column:enable_web_search_tool" json:"enable_web_search_tool"`
	ShowReference         bool      `gorm:"column:show_reference" json:"show_reference"`
	MaxTokens             *int      `gorm:"column:max_tokens" json:"max_tokens,omitempty"`
	Temperature           *float64  `gorm:"column:temperature" json:"temperature,omitempty"`
	CreatedAt             time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Chatbot) TableName() string {
	return "chatbots"
}

// ChatbotPlugin 机器人启用的后处理插件
type ChatbotPlugin struct {
	ID        uint   `gorm:"primaryKey;column:id" json:"id"`
	ChatbotID uint   `gorm:"column:chatbot_id;not null;uniqueIndex:idx_chatbot_plugin" json:"chatbot_id"`
	Name      string `gorm:"column:name;size:100;not null;uniqueIndex:idx_chatbot_plugin" json:"name"`
}

func (ChatbotPlugin) TableName() string {
	return "chatbot_plugins"
}
