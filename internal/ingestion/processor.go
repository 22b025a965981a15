package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/knowledge"
	"github.com/aihub/chatbot-go/internal/llm"
	"github.com/aihub/chatbot-go/internal/models"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// ChatbotSource 读取机器人（需要其API Key）
type ChatbotSource interface {
	Get(ctx context.Context, id uint) (*models.Chatbot, error)
}

// KnowledgeStore 知识块写入
type KnowledgeStore interface {
	MaxOrderBelow(ctx context.Context, chatbotID uint, limit int) (int, error)
	MaxOrder(ctx context.Context, chatbotID uint) (int, error)
	FindCag(ctx context.Context, chatbotID uint, fileHash string) (*models.PreMessage, error)
	ReplaceSource(ctx context.Context, chatbotID uint, fileHash string, rows []models.PreMessage) (int64, error)
	SaveCag(ctx context.Context, row *models.PreMessage, content models.PreMessageContent) error
}

// AuditStore 审计写入
type AuditStore interface {
	RecordRefresh(ctx context.Context, info *models.RefreshInformation) error
	RecordImportError(ctx context.Context, rec *models.ImportError) error
}

// PageFetcher 网页抓取
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*knowledge.Page, error)
}

// FileArchive 原始文件归档，供 /i/{fileHash} 下载
type FileArchive interface {
	Put(ctx context.Context, fileHash, fileName, mimeType string, data []byte) error
}

// ProcessorConfig 处理器依赖
type ProcessorConfig struct {
	Chatbots  ChatbotSource
	Knowledge KnowledgeStore
	Audit     AuditStore
	Embedder  knowledge.Embedder
	Completer llm.Completer
	Fetcher   PageFetcher
	Parser    *knowledge.FileParserManager
	// Archive 为nil时不归档
	Archive       FileArchive
	DocumentModel string
	Logger        *zap.Logger
	Now           func() time.Time
}

// Result 单个任务的处理结果
type Result struct {
	TaskID   string
	FileHash string
	Mode     string
	Chunks   int
	Replaced int64
	// OrderHeadroom CAG区间以下剩余可分配的order数量
	OrderHeadroom int
}

// Processor 把一个导入任务转成知识块
type Processor struct {
	cfg    ProcessorConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Parser == nil {
		cfg.Parser = knowledge.NewFileParserManager()
	}
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{cfg: cfg, logger: lg, now: now}
}

// source 解析后的原始内容
type source struct {
	name     string
	mimeType string
	raw      []byte
	page     *knowledge.Page
}

// Process 按CAG、网页、文档三种方式处理
func (p *Processor) Process(ctx context.Context, task *Task) (*Result, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	bot, err := p.cfg.Chatbots.Get(ctx, task.ChatbotID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(bot.LLMAPIKey) == "" {
		return nil, apperrors.ErrChatbotMissingCredentials
	}

	src, err := p.load(ctx, task)
	if err != nil {
		return nil, err
	}
	hash := task.FileHash()

	if p.cfg.Archive != nil {
		if err := p.cfg.Archive.Put(ctx, hash, src.name, src.mimeType, src.raw); err != nil {
			return nil, fmt.Errorf("archive %s: %w", src.name, err)
		}
	}

	res := &Result{TaskID: task.ID, FileHash: hash}
	switch {
	case task.UseCag:
		res.Mode = ModeCag
		err = p.processCag(ctx, bot, task, hash, src, res)
	case src.mimeType == "text/html":
		res.Mode = ModeHTML
		err = p.processHTML(ctx, bot, task, hash, src, res)
	default:
		res.Mode = ModeDocument
		err = p.processDocument(ctx, bot, task, hash, src, res)
	}
	if err != nil {
		return nil, err
	}

	info := &models.RefreshInformation{
		ChatbotID:  task.ChatbotID,
		TaskID:     task.ID,
		FileHash:   hash,
		FileName:   src.name,
		URL:        task.URL,
		Mode:       res.Mode,
		ChunkCount: res.Chunks,
		Replaced:   res.Replaced,
		CreatedAt:  p.now(),
	}
	if err := p.cfg.Audit.RecordRefresh(ctx, info); err != nil {
		p.logger.Warn("记录刷新信息失败", zap.String("file_hash", hash), zap.Error(err))
	}
	chunksTotal.Add(float64(res.Chunks))
	return res, nil
}

func (p *Processor) load(ctx context.Context, task *Task) (*source, error) {
	if !task.IsURL() {
		name := task.FileName
		return &source{
			name:     name,
			mimeType: knowledge.DetectMimeType(name, task.FileMimeType),
			raw:      task.FileContent,
		}, nil
	}

	if p.cfg.Fetcher == nil {
		return nil, errors.New("url ingestion is not configured")
	}
	page, err := p.cfg.Fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return nil, err
	}
	name := task.FileName
	if name == "" {
		name = page.Title
	}
	if name == "" {
		name = task.URL
	}
	mt := "text/html"
	if page.HTML == "" {
		mt = "text/plain"
	}
	return &source{name: name, mimeType: mt, raw: page.Raw, page: page}, nil
}

func (p *Processor) processCag(ctx context.Context, bot *models.Chatbot, task *Task, hash string, src *source, res *Result) error {
	summary, err := p.complete(ctx, bot.LLMAPIKey, summarizePrompt, "Summarize the attached file: "+src.name, &llm.Attachment{
		FileName: src.name,
		MimeType: src.mimeType,
		Data:     src.raw,
	})
	if err != nil {
		return fmt.Errorf("summarize %s: %w", src.name, err)
	}

	emb, err := p.cfg.Embedder.Embed(ctx, bot.LLMAPIKey, summary)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}
	vec := pgvector.NewVector(emb)

	row, err := p.cfg.Knowledge.FindCag(ctx, task.ChatbotID, hash)
	if err != nil {
		return err
	}
	if row == nil {
		maxOrder, err := p.cfg.Knowledge.MaxOrder(ctx, task.ChatbotID)
		if err != nil {
			return err
		}
		order := maxOrder + 1
		if order < models.CagOrderBase {
			order = models.CagOrderBase
		}
		row = &models.PreMessage{ChatbotID: task.ChatbotID, Order: order, UseCag: true, FileHash: hash}
	} else {
		res.Replaced = 1
	}

	row.UserMessage = summary
	row.Embedding = &vec
	row.IsRequired = task.IsRequired
	row.FileName = src.name
	row.URL = task.URL
	row.CronJob = task.CronJob
	row.ChunkSize = task.ChunkSize
	row.OverlapSize = task.OverlapSize
	row.LastUpdate = p.now()

	content := models.PreMessageContent{FileName: src.name, MimeType: src.mimeType, Content: src.raw}
	if err := p.cfg.Knowledge.SaveCag(ctx, row, content); err != nil {
		return err
	}
	res.Chunks = 1
	return nil
}

func (p *Processor) processHTML(ctx context.Context, bot *models.Chatbot, task *Task, hash string, src *source, res *Result) error {
	page := src.page
	if page == nil {
		parsed, err := knowledge.ParseHTML(task.URL, src.raw)
		if err != nil {
			return err
		}
		page = parsed
	}

	text := page.Text
	if page.HTML != "" {
		md, err := p.complete(ctx, bot.LLMAPIKey, htmlToMarkdownPrompt, page.HTML, nil)
		if err != nil {
			return fmt.Errorf("convert %s to markdown: %w", src.name, err)
		}
		text = md
	}
	return p.index(ctx, bot, task, hash, src.name, text, res)
}

func (p *Processor) processDocument(ctx context.Context, bot *models.Chatbot, task *Task, hash string, src *source, res *Result) error {
	if src.page != nil {
		return p.index(ctx, bot, task, hash, src.name, src.page.Text, res)
	}

	parseName := src.name
	if filepath.Ext(parseName) == "" {
		if exts, _ := mime.ExtensionsByType(src.mimeType); len(exts) > 0 {
			parseName += exts[0]
		}
	}

	text, err := p.cfg.Parser.ParseFile(bytes.NewReader(src.raw), parseName)
	if errors.Is(err, knowledge.ErrNoExtractableText) {
		p.logger.Info("PDF无文本层，使用视觉模型识别", zap.String("file", src.name))
		text, err = p.complete(ctx, bot.LLMAPIKey, pdfExtractPrompt, "Extract the text of: "+src.name, &llm.Attachment{
			FileName: src.name,
			MimeType: src.mimeType,
			Data:     src.raw,
		})
	}
	if err != nil {
		return err
	}
	return p.index(ctx, bot, task, hash, src.name, text, res)
}

// index 分块、向量化后整体替换该来源的旧分块
func (p *Processor) index(ctx context.Context, bot *models.Chatbot, task *Task, hash, name, text string, res *Result) error {
	splitter, err := knowledge.NewSplitter(task.ChunkSize, task.OverlapSize)
	if err != nil {
		return err
	}

	var pieces []string
	for _, c := range splitter.Split(text) {
		if strings.TrimSpace(c.Text) != "" {
			pieces = append(pieces, c.Text)
		}
	}
	if len(pieces) == 0 {
		return fmt.Errorf("no text extracted from %s", name)
	}

	base, err := p.cfg.Knowledge.MaxOrderBelow(ctx, task.ChatbotID, models.CagOrderBase)
	if err != nil {
		return err
	}
	if base+len(pieces) >= models.CagOrderBase {
		return apperrors.ErrOrderRangeExhausted
	}

	now := p.now()
	rows := make([]models.PreMessage, 0, len(pieces))
	for i, piece := range pieces {
		emb, err := p.cfg.Embedder.Embed(ctx, bot.LLMAPIKey, piece)
		if err != nil {
			return fmt.Errorf("embed chunk %d of %s: %w", i, name, err)
		}
		vec := pgvector.NewVector(emb)
		rows = append(rows, models.PreMessage{
			ChatbotID:   task.ChatbotID,
			Order:       base + 1 + i,
			UserMessage: piece,
			IsRequired:  task.IsRequired,
			Embedding:   &vec,
			FileHash:    hash,
			FileName:    name,
			URL:         task.URL,
			CronJob:     task.CronJob,
			ChunkSize:   task.ChunkSize,
			OverlapSize: task.OverlapSize,
			LastUpdate:  now,
		})
	}

	replaced, err := p.cfg.Knowledge.ReplaceSource(ctx, task.ChatbotID, hash, rows)
	if err != nil {
		return err
	}
	res.Chunks = len(rows)
	res.Replaced = replaced

	// 每次刷新都从最大order之后分配，同样大小的下一次刷新放不下时提前告警
	res.OrderHeadroom = models.CagOrderBase - 1 - (base + len(pieces))
	if res.OrderHeadroom < len(pieces) {
		p.logger.Warn("知识块order即将耗尽",
			zap.Uint("chatbot_id", task.ChatbotID),
			zap.String("file_hash", hash),
			zap.Int("headroom", res.OrderHeadroom),
			zap.Int("chunks", len(pieces)))
	}
	return nil
}

func (p *Processor) complete(ctx context.Context, apiKey, system, user string, file *llm.Attachment) (string, error) {
	req := llm.CompletionRequest{
		Model: p.cfg.DocumentModel,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: system},
			{Role: models.RoleUser, Content: user},
		},
	}
	if file != nil {
		req.Attachments = []llm.Attachment{*file}
	}

	resp, err := p.cfg.Completer.Complete(ctx, apiKey, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.ErrInvalidCompletionResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("model returned empty content")
	}
	return out, nil
}
