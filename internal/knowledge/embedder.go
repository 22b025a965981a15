package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder 文本向量化，API Key 按机器人传入
type Embedder interface {
	Embed(ctx context.Context, apiKey, text string) ([]float32, error)
	Dimensions() int
}

// EmbedderConfig OpenAI兼容的Embedding接口参数
type EmbedderConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OpenAIEmbedder 使用OpenAI兼容Embedding API，按API Key缓存客户端
type OpenAIEmbedder struct {
	cfg     EmbedderConfig
	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAIEmbedder 创建嵌入向量生成器
func NewOpenAIEmbedder(cfg EmbedderConfig) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &OpenAIEmbedder{cfg: cfg, clients: make(map[string]*openai.Client)}
}

func (e *OpenAIEmbedder) client(apiKey string) *openai.Client {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[apiKey]; ok {
		return c
	}
	conf := openai.DefaultConfig(apiKey)
	if e.cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(e.cfg.BaseURL, "/")
	}
	c := openai.NewClientWithConfig(conf)
	e.clients[apiKey] = c
	return c
}

// Embed 生成向量；维度与配置不符时报错，避免写入无法比较的向量
func (e *OpenAIEmbedder) Embed(ctx context.Context, apiKey, text string) ([]float32, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("embedding api key is empty")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client(apiKey).CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.cfg.Model),
		Input:      []string{text},
		Dimensions: e.cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response empty")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != e.cfg.Dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), e.cfg.Dimensions)
	}
	result := make([]float32, len(embedding))
	copy(result, embedding)
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}
