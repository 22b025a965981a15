package chat

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/llm"
	"github.com/aihub/chatbot-go/internal/models"
	"github.com/aihub/chatbot-go/internal/repository"
	"github.com/pgvector/pgvector-go"
)

type fakeChatbots struct {
	bot     *models.Chatbot
	plugins []string
}

func (f *fakeChatbots) Get(_ context.Context, id uint) (*models.Chatbot, error) {
	if f.bot == nil || f.bot.ID != id {
		return nil, apperrors.NewNotFoundError("chatbot")
	}
	cp := *f.bot
	return &cp, nil
}

func (f *fakeChatbots) EnabledPlugins(context.Context, uint) ([]string, error) {
	return f.plugins, nil
}

type fakeKnowledge struct {
	chunks   []models.PreMessage
	contents map[uint]models.PreMessageContent
	nearest  []repository.NearestQuery
}

func (f *fakeKnowledge) CountChunks(context.Context, uint) (int64, error) {
	return int64(len(f.chunks)), nil
}

func (f *fakeKnowledge) Required(context.Context, uint) ([]models.PreMessage, error) {
	var out []models.PreMessage
	for _, c := range f.chunks {
		if c.IsRequired {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeKnowledge) Nearest(_ context.Context, q repository.NearestQuery) ([]models.PreMessage, error) {
	f.nearest = append(f.nearest, q)
	excluded := make(map[int]bool)
	for _, o := range q.ExcludeOrders {
		excluded[o] = true
	}
	var out []models.PreMessage
	for _, c := range f.chunks {
		if !excluded[c.Order] && c.Embedding != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeKnowledge) Contents(_ context.Context, ids []uint) (map[uint]models.PreMessageContent, error) {
	out := make(map[uint]models.PreMessageContent)
	for _, id := range ids {
		if c, ok := f.contents[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	rows    []models.MessageHistory
	queries []repository.HistoryQuery
	appends int
}

func (f *fakeHistory) Window(_ context.Context, q repository.HistoryQuery) ([]models.MessageHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	var out []models.MessageHistory
	for _, h := range f.rows {
		if h.ChatbotID == q.ChatbotID && h.Channel == q.Channel && h.UserID == q.UserID &&
			!h.CreatedAt.Before(q.Since) && !h.CreatedAt.After(q.Until) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHistory) Append(_ context.Context, turns ...models.MessageHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	f.rows = append(f.rows, turns...)
	return nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

type fakeCompleter struct {
	mu       sync.Mutex
	reply    llm.ResponseMessage
	noChoice bool
	err      error
	requests []llm.CompletionRequest
	onCall   func()
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.noChoice {
		return &llm.CompletionResponse{}, nil
	}
	return &llm.CompletionResponse{Choices: []llm.Choice{{Message: f.reply}}}, nil
}

func (f *fakeCompleter) last() llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

var errEmbedDown = errors.New("embedding service unavailable")

func vec(v ...float32) *pgvector.Vector {
	p := pgvector.NewVector(v)
	return &p
}

func strPtr(s string) *string { return &s }
