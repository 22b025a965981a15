package llm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Message 对话消息
type Message struct {
	Role    string
	Content string
}

// Attachment 以文件形式随请求发送的内容（CAG原文、待摘要的文件）
type Attachment struct {
	FileName string
	MimeType string
	Data     []byte
}

// DataURL base64编码的data URL
func (a Attachment) DataURL() string {
	mime := a.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(a.Data))
}

// CompletionRequest 一次补全调用
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Attachments []Attachment
	MaxTokens   *int
	Temperature *float64
	WebSearch   bool
}

// URLCitation 模型返回的引用
type URLCitation struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
}

// Annotation 回复中的标注
type Annotation struct {
	Type        string       `json:"type"`
	URLCitation *URLCitation `json:"url_citation,omitempty"`
}

// ResponseMessage 回复消息
type ResponseMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse OpenAI兼容的补全响应
type CompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// 线上请求格式

type wireRequest struct {
	Model            string            `json:"model"`
	Messages         []wireMessage     `json:"messages"`
	MaxTokens        *int              `json:"max_tokens,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	WebSearchOptions *webSearchOptions `json:"web_search_options,omitempty"`
}

type webSearchOptions struct {
	SearchContextSize string `json:"search_context_size"`
}

// wireMessage content 为字符串或内容片段数组
type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *filePart `json:"file,omitempty"`
}

type filePart struct {
	FileName string `json:"filename"`
	FileData string `json:"file_data"`
}

type errorEnvelope struct {
	Error struct {
		Message string      `json:"message"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}
