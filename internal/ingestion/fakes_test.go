package ingestion

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/aihub/chatbot-go/internal/knowledge"
	"github.com/aihub/chatbot-go/internal/llm"
	"github.com/aihub/chatbot-go/internal/models"
	"github.com/aihub/chatbot-go/internal/repository"
)

type fakeChatbots struct {
	bots map[uint]*models.Chatbot
}

func (f *fakeChatbots) Get(_ context.Context, id uint) (*models.Chatbot, error) {
	bot, ok := f.bots[id]
	if !ok {
		return nil, errors.New("chatbot not found")
	}
	cp := *bot
	return &cp, nil
}

// memKnowledge 模拟 KnowledgeRepository 的事务语义
type memKnowledge struct {
	mu       sync.Mutex
	nextID   uint
	rows     []models.PreMessage
	contents map[uint]models.PreMessageContent
	saved    []models.PreMessage
}

func newMemKnowledge(existing ...models.PreMessage) *memKnowledge {
	m := &memKnowledge{contents: make(map[uint]models.PreMessageContent)}
	for _, r := range existing {
		m.nextID++
		if r.ID == 0 {
			r.ID = m.nextID
		}
		m.rows = append(m.rows, r)
	}
	return m
}

func (m *memKnowledge) MaxOrderBelow(_ context.Context, chatbotID uint, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, r := range m.rows {
		if r.ChatbotID == chatbotID && r.Order < limit && r.Order > max {
			max = r.Order
		}
	}
	return max, nil
}

func (m *memKnowledge) MaxOrder(_ context.Context, chatbotID uint) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, r := range m.rows {
		if r.ChatbotID == chatbotID && r.Order > max {
			max = r.Order
		}
	}
	return max, nil
}

func (m *memKnowledge) FindCag(_ context.Context, chatbotID uint, hash string) (*models.PreMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ChatbotID == chatbotID && r.FileHash == hash && r.UseCag && r.Order >= models.CagOrderBase {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memKnowledge) ReplaceSource(_ context.Context, chatbotID uint, hash string, rows []models.PreMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []models.PreMessage
	var deleted int64
	for _, r := range m.rows {
		if r.ChatbotID == chatbotID && r.FileHash == hash && r.Order < models.CagOrderBase {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	for _, r := range rows {
		m.nextID++
		r.ID = m.nextID
		kept = append(kept, r)
	}
	m.rows = kept
	return deleted, nil
}

func (m *memKnowledge) SaveCag(_ context.Context, row *models.PreMessage, content models.PreMessageContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		m.nextID++
		row.ID = m.nextID
		m.rows = append(m.rows, *row)
	} else {
		for i := range m.rows {
			if m.rows[i].ID == row.ID {
				m.rows[i] = *row
			}
		}
	}
	content.PreMessageID = row.ID
	m.contents[row.ID] = content
	m.saved = append(m.saved, *row)
	return nil
}

func (m *memKnowledge) byHash(chatbotID uint, hash string) []models.PreMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PreMessage
	for _, r := range m.rows {
		if r.ChatbotID == chatbotID && r.FileHash == hash {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

type fakeAudit struct {
	mu        sync.Mutex
	refreshes []models.RefreshInformation
	failures  []models.ImportError
}

func (f *fakeAudit) RecordRefresh(_ context.Context, info *models.RefreshInformation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, *info)
	return nil
}

func (f *fakeAudit) RecordImportError(_ context.Context, rec *models.ImportError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, *rec)
	return nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

type fakeCompleter struct {
	reply    string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Choices: []llm.Choice{{Message: llm.ResponseMessage{Role: "assistant", Content: f.reply}}}}, nil
}

type fakeFetcher struct {
	pages map[string]*knowledge.Page
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*knowledge.Page, error) {
	p, ok := f.pages[url]
	if !ok {
		return nil, errors.New("status 404")
	}
	return p, nil
}

type fakeArchive struct {
	files map[string][]byte
}

func (f *fakeArchive) Put(_ context.Context, hash, _, _ string, data []byte) error {
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[hash] = data
	return nil
}

type fakeSources struct {
	refs []repository.SourceRef
}

func (f *fakeSources) ScheduledSources(context.Context) ([]repository.SourceRef, error) {
	return f.refs, nil
}

type recordingSubmitter struct {
	tasks []*Task
}

func (r *recordingSubmitter) Submit(_ context.Context, task *Task) (*Task, error) {
	r.tasks = append(r.tasks, task)
	return task, nil
}

type fakeProcessor struct {
	err error
}

func (f *fakeProcessor) Process(_ context.Context, task *Task) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Result{TaskID: task.ID, Mode: ModeDocument, Chunks: 1}, nil
}
