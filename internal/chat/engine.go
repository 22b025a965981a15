package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/knowledge"
	"github.com/aihub/chatbot-go/internal/llm"
	"github.com/aihub/chatbot-go/internal/lock"
	"github.com/aihub/chatbot-go/internal/models"
	"github.com/aihub/chatbot-go/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ChatbotStore 机器人配置
type ChatbotStore interface {
	Get(ctx context.Context, id uint) (*models.Chatbot, error)
	EnabledPlugins(ctx context.Context, id uint) ([]string, error)
}

// KnowledgeSource 知识块检索
type KnowledgeSource interface {
	CountChunks(ctx context.Context, chatbotID uint) (int64, error)
	Required(ctx context.Context, chatbotID uint) ([]models.PreMessage, error)
	Nearest(ctx context.Context, q repository.NearestQuery) ([]models.PreMessage, error)
	Contents(ctx context.Context, preMessageIDs []uint) (map[uint]models.PreMessageContent, error)
}

// HistoryStore 会话历史
type HistoryStore interface {
	Window(ctx context.Context, q repository.HistoryQuery) ([]models.MessageHistory, error)
	Append(ctx context.Context, turns ...models.MessageHistory) error
}

// Options 引擎参数
type Options struct {
	// PublicHost 引用下载链接的前缀，如 https://bot.example.com
	PublicHost    string
	QueryMaxChars int
	DefaultModel  string
	Location      *time.Location
	Now           func() time.Time
	// DuplicateBufferedMessages 兼容旧提示词：规范化后的buffered消息之后再追加一次原始列表
	DuplicateBufferedMessages bool
	SerializePerUser          bool
	Locker                    lock.Locker
	LockTTL                   time.Duration
}

func (o *Options) applyDefaults() {
	if o.QueryMaxChars <= 0 {
		o.QueryMaxChars = 8000
	}
	if o.DefaultModel == "" {
		o.DefaultModel = "openai/gpt-4.1"
	}
	if o.Location == nil {
		o.Location = BangkokLocation()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 6 * time.Minute
	}
}

// BangkokLocation 缺少时区数据库时退回固定 UTC+7
func BangkokLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Bangkok"); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}

// Engine 检索增强的对话引擎
type Engine struct {
	chatbots  ChatbotStore
	knowledge KnowledgeSource
	history   HistoryStore
	embedder  knowledge.Embedder
	completer llm.Completer
	plugins   *PluginRegistry
	opts      Options
	validate  *validator.Validate
	logger    *zap.Logger
}

// Deps 引擎依赖
type Deps struct {
	Chatbots  ChatbotStore
	Knowledge KnowledgeSource
	History   HistoryStore
	Embedder  knowledge.Embedder
	Completer llm.Completer
	// Plugins 为nil时使用 DefaultPlugins
	Plugins *PluginRegistry
	Logger  *zap.Logger
}

func NewEngine(deps Deps, opts Options) *Engine {
	opts.applyDefaults()
	if deps.Plugins == nil {
		deps.Plugins = DefaultPlugins()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{
		chatbots:  deps.Chatbots,
		knowledge: deps.Knowledge,
		history:   deps.History,
		embedder:  deps.Embedder,
		completer: deps.Completer,
		plugins:   deps.Plugins,
		opts:      opts,
		validate:  validator.New(),
		logger:    deps.Logger,
	}
}

// turn 单次请求在各阶段之间传递的状态
type turn struct {
	req       *ChatRequest
	now       time.Time
	bot       *models.Chatbot
	required  []models.PreMessage
	history   []models.MessageHistory
	query     string
	embedding []float32
	retrieved []knowledge.ScoredChunk
	messages  []llm.Message
	files     []llm.Attachment
	inbound   *models.MessageHistory
	reply     llm.Choice
	text      string
	refs      []ReferenceItem
}

// Complete 处理一条用户消息并返回回复。各阶段严格顺序执行；
// 历史记录只在所有外部调用成功后一次性写入。
func (e *Engine) Complete(ctx context.Context, req ChatRequest) (resp *ChatResponse, err error) {
	start := e.opts.Now()
	outcome := "success"
	defer func() {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			outcome = "canceled"
		case err != nil:
			outcome = string(apperrors.GetAppError(err).Code)
		}
		requestsTotal.WithLabelValues(outcome).Inc()
		requestDuration.WithLabelValues(string(req.Channel)).Observe(time.Since(start).Seconds())
	}()

	if err := e.validateRequest(&req); err != nil {
		return nil, err
	}

	t := &turn{req: &req, now: e.opts.Now().In(e.opts.Location)}
	log := e.logger.With(
		zap.Uint("chatbot_id", req.ChatbotID),
		zap.String("channel", string(req.Channel)),
		zap.String("user_id", req.UserID),
	)

	if err := e.loadConfig(ctx, t); err != nil {
		return nil, err
	}

	if e.opts.SerializePerUser && e.opts.Locker != nil && !req.anonymous() {
		release, err := e.opts.Locker.Acquire(ctx, lock.ChatKey(req.ChatbotID, string(req.Channel), req.UserID), e.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		defer release()
		// 拿到锁之后的时间才是历史窗口的右边界
		t.now = e.opts.Now().In(e.opts.Location)
	}

	e.buildBaseContext(t)
	if err := e.gatherHistory(ctx, t); err != nil {
		return nil, err
	}

	if !e.embedQuery(ctx, t, log) {
		// 调用方取消不算降级
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome = "degraded"
		return apologyResponse(), nil
	}

	if err := e.retrieveCandidates(ctx, t); err != nil {
		return nil, err
	}
	merged := e.mergeRequired(t)
	if err := e.assembleAttachments(ctx, t, merged); err != nil {
		return nil, err
	}
	e.appendPolicyInstructions(t)
	e.appendHistoryAndCurrentMessage(t)
	e.persistInboundTurn(t)

	if err := e.callCompletion(ctx, t); err != nil {
		return nil, err
	}
	if err := e.postProcess(ctx, t, log); err != nil {
		return nil, err
	}
	final := e.buildReferences(t)

	if err := e.persistOutboundTurn(ctx, t); err != nil {
		return nil, err
	}

	refs := t.refs
	if refs == nil {
		refs = []ReferenceItem{}
	}
	log.Debug("对话完成",
		zap.Int("required", len(t.required)),
		zap.Int("retrieved", len(t.retrieved)),
		zap.Int("attachments", len(t.files)),
		zap.Int("references", len(refs)))
	return &ChatResponse{Message: final, ReferenceItems: refs, Suggestions: []string{}}, nil
}

func (e *Engine) validateRequest(req *ChatRequest) error {
	if err := e.validate.Struct(req); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if !req.Channel.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown channel %q", req.Channel))
	}
	if strings.TrimSpace(req.Message) == "" && len(req.Buffered) == 0 {
		return apperrors.NewValidationError("message is empty")
	}
	return nil
}

// loadConfig 读取机器人和必选块；没有任何知识块或没有API Key时失败
func (e *Engine) loadConfig(ctx context.Context, t *turn) error {
	bot, err := e.chatbots.Get(ctx, t.req.ChatbotID)
	if err != nil {
		return err
	}
	count, err := e.knowledge.CountChunks(ctx, bot.ID)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if count == 0 {
		return apperrors.ErrChatbotNotConfigured
	}
	if strings.TrimSpace(bot.LLMAPIKey) == "" {
		return apperrors.ErrChatbotMissingCredentials
	}

	required, err := e.knowledge.Required(ctx, bot.ID)
	if err != nil {
		return fmt.Errorf("load required chunks: %w", err)
	}
	t.bot = bot
	t.required = knowledge.OrderRequired(required)
	return nil
}

func (e *Engine) buildBaseContext(t *turn) {
	if role := strings.TrimSpace(t.bot.SystemRole); role != "" {
		t.messages = append(t.messages, llm.Message{Role: models.RoleSystem, Content: t.bot.SystemRole})
	}
	t.messages = append(t.messages, llm.Message{Role: models.RoleUser, Content: baseContextTurn(t.now)})
}

// gatherHistory 读取历史窗口并拼出用于向量化的查询文本
func (e *Engine) gatherHistory(ctx context.Context, t *turn) error {
	req := t.req
	switch {
	case !req.anonymous():
		history, err := e.history.Window(ctx, repository.HistoryQuery{
			ChatbotID: req.ChatbotID,
			Channel:   req.Channel,
			UserID:    req.UserID,
			Since:     t.now.Add(-time.Duration(t.bot.HistoryMinutes) * time.Minute),
			Until:     t.now,
		})
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		t.history = history

		parts := make([]string, 0, len(history)+1)
		for _, h := range history {
			parts = append(parts, h.Message)
		}
		parts = append(parts, req.Message)
		t.query = strings.Join(parts, " ")

	case len(req.Buffered) > 0:
		parts := make([]string, 0, len(req.Buffered)+1)
		for _, b := range req.Buffered {
			parts = append(parts, b.Content)
		}
		if e.needsCurrentAfterBuffered(req) {
			parts = append(parts, req.Message)
		}
		t.query = strings.Join(parts, "\n")

	default:
		t.query = req.Message
	}
	t.query = clipTail(strings.TrimSpace(t.query), e.opts.QueryMaxChars)
	return nil
}

// needsCurrentAfterBuffered 当前消息已经是buffered中最后一条用户消息时不再重复
func (e *Engine) needsCurrentAfterBuffered(req *ChatRequest) bool {
	if strings.TrimSpace(req.Message) == "" {
		return false
	}
	last := req.Buffered[len(req.Buffered)-1]
	return !(last.Role == models.RoleUser && last.Content == req.Message)
}

// clipTail 超长时保留最后max个字符
func clipTail(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[len(r)-max:])
}

// embedQuery 失败时返回false，由调用方返回致歉消息
func (e *Engine) embedQuery(ctx context.Context, t *turn, log *zap.Logger) bool {
	emb, err := e.embedder.Embed(ctx, t.bot.LLMAPIKey, t.query)
	if err != nil || len(emb) == 0 {
		log.Warn("查询向量化失败，返回致歉消息", zap.Error(err))
		return false
	}
	t.embedding = emb
	return true
}

// retrieveCandidates topK = topKDocument - 必选块数量
func (e *Engine) retrieveCandidates(ctx context.Context, t *turn) error {
	topK := t.bot.TopKDocument - len(t.required)
	if topK <= 0 {
		retrievedChunks.Observe(0)
		return nil
	}

	exclude := make([]int, 0, len(t.required))
	for _, r := range t.required {
		exclude = append(exclude, r.Order)
	}
	rows, err := e.knowledge.Nearest(ctx, repository.NearestQuery{
		ChatbotID:     t.bot.ID,
		Embedding:     t.embedding,
		ExcludeOrders: exclude,
		MaxDistance:   t.bot.MaximumDistance,
		Limit:         topK,
	})
	if err != nil {
		return fmt.Errorf("retrieve candidates: %w", err)
	}
	t.retrieved = knowledge.SelectCandidates(t.embedding, rows, t.bot.MaximumDistance, topK)
	retrievedChunks.Observe(float64(len(t.retrieved)))
	return nil
}

// mergeRequired 必选块（order降序）在前，检索结果按距离在后
func (e *Engine) mergeRequired(t *turn) []models.PreMessage {
	merged := make([]models.PreMessage, 0, len(t.required)+len(t.retrieved))
	merged = append(merged, t.required...)
	for _, sc := range t.retrieved {
		merged = append(merged, sc.Chunk)
	}
	return merged
}

// assembleAttachments CAG块作为文件附件，其余作为 user/assistant 消息
func (e *Engine) assembleAttachments(ctx context.Context, t *turn, merged []models.PreMessage) error {
	var cagIDs []uint
	for _, c := range merged {
		if c.UseCag {
			cagIDs = append(cagIDs, c.ID)
		}
	}
	contents, err := e.knowledge.Contents(ctx, cagIDs)
	if err != nil {
		return err
	}

	for _, c := range merged {
		if c.UseCag {
			content, ok := contents[c.ID]
			if !ok {
				e.logger.Warn("CAG知识块缺少原文", zap.Uint("pre_message_id", c.ID))
				continue
			}
			name := content.FileName
			if name == "" {
				name = c.FileName
			}
			t.files = append(t.files, llm.Attachment{FileName: name, MimeType: content.MimeType, Data: content.Content})
			continue
		}

		t.messages = append(t.messages, llm.Message{Role: models.RoleUser, Content: c.UserMessage})
		if c.AssistantMessage != nil && strings.TrimSpace(*c.AssistantMessage) != "" {
			t.messages = append(t.messages, llm.Message{Role: models.RoleAssistant, Content: *c.AssistantMessage})
		}
	}
	return nil
}

func (e *Engine) appendPolicyInstructions(t *turn) {
	b := t.bot
	if text := policyTurn(b.AllowOutsideKnowledge, b.ResponsiveAgent, b.EnableWebSearchTool); text != "" {
		t.messages = append(t.messages, llm.Message{Role: models.RoleUser, Content: text})
	}
}

// appendHistoryAndCurrentMessage 有userId时当前消息在persistInboundTurn中追加
func (e *Engine) appendHistoryAndCurrentMessage(t *turn) {
	req := t.req
	switch {
	case !req.anonymous():
		for _, h := range t.history {
			t.messages = append(t.messages, llm.Message{Role: h.Role, Content: h.Message})
		}

	case len(req.Buffered) > 0:
		for _, b := range req.Buffered {
			role := models.RoleAssistant
			if b.Role == models.RoleUser {
				role = models.RoleUser
			}
			t.messages = append(t.messages, llm.Message{Role: role, Content: b.Content})
		}
		if e.opts.DuplicateBufferedMessages {
			for _, b := range req.Buffered {
				t.messages = append(t.messages, llm.Message{Role: b.Role, Content: b.Content})
			}
		}
		if e.needsCurrentAfterBuffered(req) {
			t.messages = append(t.messages, llm.Message{Role: models.RoleUser, Content: req.Message})
		}

	default:
		t.messages = append(t.messages, llm.Message{Role: models.RoleUser, Content: req.Message})
	}
}

// persistInboundTurn 记录待写入的用户消息，并让发送内容与存储内容一致
func (e *Engine) persistInboundTurn(t *turn) {
	if t.req.anonymous() {
		return
	}
	t.inbound = &models.MessageHistory{
		ChatbotID:   t.req.ChatbotID,
		Channel:     t.req.Channel,
		UserID:      t.req.UserID,
		Role:        models.RoleUser,
		Message:     t.req.Message,
		IsProcessed: true,
		CreatedAt:   t.now,
	}
	t.messages = append(t.messages, llm.Message{Role: models.RoleUser, Content: t.inbound.Message})
}

func (e *Engine) callCompletion(ctx context.Context, t *turn) error {
	model := e.opts.DefaultModel
	if t.bot.ModelName != nil && strings.TrimSpace(*t.bot.ModelName) != "" {
		model = *t.bot.ModelName
	}

	req := llm.CompletionRequest{
		Model:       model,
		Messages:    t.messages,
		Attachments: t.files,
		MaxTokens:   firstInt(t.req.MaxTokens, t.bot.MaxTokens),
		Temperature: firstFloat(t.req.Temperature, t.bot.Temperature),
		WebSearch:   t.bot.EnableWebSearchTool,
	}
	resp, err := e.completer.Complete(ctx, t.bot.LLMAPIKey, req)
	if err != nil {
		return err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return apperrors.ErrInvalidCompletionResponse
	}
	t.reply = resp.Choices[0]
	t.text = resp.Choices[0].Message.Content
	return nil
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func (e *Engine) postProcess(ctx context.Context, t *turn, log *zap.Logger) error {
	enabled, err := e.chatbots.EnabledPlugins(ctx, t.bot.ID)
	if err != nil {
		return fmt.Errorf("load plugins: %w", err)
	}
	text, applied := e.plugins.Apply(t.text, enabled, t.req.Channel)
	if applied != "" {
		log.Debug("后处理插件", zap.String("plugin", applied))
	}
	t.text = text
	return nil
}

// buildReferences 返回展示给用户的最终文本
func (e *Engine) buildReferences(t *turn) string {
	t.refs = append(citationReferences(t.reply), sourceReferences(e.opts.PublicHost, t.retrieved)...)
	if !t.bot.ShowReference || len(t.refs) == 0 {
		return t.text
	}
	return t.text + formatReferences(t.refs)
}

// persistOutboundTurn 用户消息与回复在同一事务内写入
func (e *Engine) persistOutboundTurn(ctx context.Context, t *turn) error {
	if t.inbound == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	outbound := models.MessageHistory{
		ChatbotID:   t.req.ChatbotID,
		Channel:     t.req.Channel,
		UserID:      t.req.UserID,
		Role:        models.RoleAssistant,
		Message:     t.text,
		IsProcessed: true,
		CreatedAt:   e.opts.Now().In(e.opts.Location),
	}
	if !outbound.CreatedAt.After(t.inbound.CreatedAt) {
		outbound.CreatedAt = t.inbound.CreatedAt.Add(time.Millisecond)
	}
	if err := e.history.Append(ctx, *t.inbound, outbound); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}
