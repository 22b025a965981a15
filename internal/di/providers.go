package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/chatbot-go/internal/chat"
	"github.com/aihub/chatbot-go/internal/config"
	"github.com/aihub/chatbot-go/internal/database"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"github.com/aihub/chatbot-go/internal/kafka"
	"github.com/aihub/chatbot-go/internal/knowledge"
	"github.com/aihub/chatbot-go/internal/llm"
	"github.com/aihub/chatbot-go/internal/logger"
	"github.com/aihub/chatbot-go/internal/lock"
	"github.com/aihub/chatbot-go/internal/repository"
	"github.com/aihub/chatbot-go/internal/security"
	"github.com/aihub/chatbot-go/internal/storage"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterProviders 注册所有依赖提供者。
// 数据库之外的基础设施按配置选择实现：Redis锁或进程内锁，Kafka或内存队列，MinIO可选。
func RegisterProviders(container *dig.Container, cfg *config.Config, logger *zap.Logger) error {
	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *zap.Logger { return logger },

		// 存储
		func(cfg *config.Config) (*gorm.DB, error) {
			return database.InitDB(cfg.Database)
		},
		func(cfg *config.Config) (*security.Cipher, error) {
			return security.NewCipher(cfg.Security.MasterKey)
		},
		repository.NewChatbotRepository,
		repository.NewKnowledgeRepository,
		repository.NewHistoryRepository,
		repository.NewAuditRepository,
		provideLocker,

		// 模型服务
		func(cfg *config.Config) knowledge.Embedder {
			return knowledge.NewOpenAIEmbedder(knowledge.EmbedderConfig{
				BaseURL:    cfg.LLM.BaseURL,
				Model:      cfg.LLM.EmbeddingModel,
				Dimensions: cfg.LLM.EmbeddingDimensions,
				Timeout:    cfg.LLM.EmbeddingTimeout,
			})
		},
		func(cfg *config.Config, logger *zap.Logger) llm.Completer {
			return llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.CompletionTimeout, logger.Named("llm"))
		},

		// 导入
		provideQueue,
		func(cfg *config.Config, queue ingestion.Queue) *ingestion.Service {
			return ingestion.NewService(queue, cfg.Ingestion.DefaultChunkSize, cfg.Ingestion.DefaultOverlap)
		},
		provideProcessor,
		func(cfg *config.Config, queue ingestion.Queue, processor *ingestion.Processor, audit *repository.AuditRepository, logger *zap.Logger) *ingestion.Worker {
			return ingestion.NewWorker(queue, processor, audit, cfg.Ingestion.FailureDelay, logger.Named("ingestion"))
		},
		func(cfg *config.Config, sources *repository.KnowledgeRepository, svc *ingestion.Service, logger *zap.Logger) *ingestion.Scheduler {
			return ingestion.NewScheduler(sources, svc, cfg.Ingestion.RescanInterval, logger.Named("scheduler"))
		},

		// 对话
		provideEngine,
		provideHealthChecker,
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}

	if cfg.Storage.Enabled {
		if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (*storage.FileStore, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return storage.NewFileStore(ctx, cfg.Storage, logger.Named("storage"))
		}); err != nil {
			return err
		}
	}
	return nil
}

// provideLocker 启用Redis时使用分布式锁，否则只在进程内串行
func provideLocker(cfg *config.Config, logger *zap.Logger) (lock.Locker, error) {
	if !cfg.Redis.Enabled {
		return lock.NewMemoryLocker(), nil
	}
	client, err := database.InitRedis(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	logger.Info("Using redis chat lock", zap.String("addr", cfg.Redis.Addr()))
	return lock.NewRedisLocker(client), nil
}

func provideQueue(cfg *config.Config, logger *zap.Logger) (ingestion.Queue, error) {
	switch cfg.Ingestion.Queue {
	case "kafka":
		return kafka.NewTaskQueue(cfg.Kafka, logger.Named("kafka"))
	case "memory":
		return ingestion.NewMemoryQueue(cfg.Ingestion.QueueCapacity), nil
	default:
		return nil, fmt.Errorf("unknown ingestion queue %q", cfg.Ingestion.Queue)
	}
}

// processorParams 文件存储未启用时Archive为nil
type processorParams struct {
	dig.In

	Config    *config.Config
	Logger    *zap.Logger
	Chatbots  *repository.ChatbotRepository
	Knowledge *repository.KnowledgeRepository
	Audit     *repository.AuditRepository
	Embedder  knowledge.Embedder
	Completer llm.Completer
	Files     *storage.FileStore `optional:"true"`
}

func provideProcessor(p processorParams) *ingestion.Processor {
	pc := ingestion.ProcessorConfig{
		Chatbots:      p.Chatbots,
		Knowledge:     p.Knowledge,
		Audit:         p.Audit,
		Embedder:      p.Embedder,
		Completer:     p.Completer,
		Fetcher:       knowledge.NewPageFetcher(p.Config.Ingestion.FetchTimeout, p.Config.Ingestion.MaxFetchBytes),
		Parser:        knowledge.NewFileParserManager(),
		DocumentModel: p.Config.LLM.DocumentModel,
		Logger:        p.Logger.Named("processor"),
	}
	if p.Files != nil {
		pc.Archive = p.Files
	}
	return ingestion.NewProcessor(pc)
}

func provideEngine(
	cfg *config.Config,
	logger *zap.Logger,
	chatbots *repository.ChatbotRepository,
	knowledgeRepo *repository.KnowledgeRepository,
	history *repository.HistoryRepository,
	embedder knowledge.Embedder,
	completer llm.Completer,
	locker lock.Locker,
) *chat.Engine {
	loc, err := time.LoadLocation(cfg.Chat.Timezone)
	if err != nil {
		logger.Warn("Unknown timezone, using Asia/Bangkok", zap.String("timezone", cfg.Chat.Timezone), zap.Error(err))
		loc = chat.BangkokLocation()
	}
	return chat.NewEngine(chat.Deps{
		Chatbots:  chatbots,
		Knowledge: knowledgeRepo,
		History:   history,
		Embedder:  embedder,
		Completer: completer,
		Logger:    logger.Named("chat"),
	}, chat.Options{
		PublicHost:                cfg.Chat.PublicHost,
		QueryMaxChars:             cfg.Chat.QueryMaxChars,
		DefaultModel:              cfg.LLM.DefaultChatModel,
		Location:                  loc,
		DuplicateBufferedMessages: cfg.Chat.DuplicateBufferedMessages,
		SerializePerUser:          cfg.Chat.SerializePerUser,
		Locker:                    locker,
		LockTTL:                   cfg.Chat.LockTTL,
	})
}

type healthParams struct {
	dig.In

	DB     *gorm.DB
	Locker lock.Locker
	Files  *storage.FileStore `optional:"true"`
}

// provideHealthChecker 数据库必检，MinIO启用时加入探针
func provideHealthChecker(p healthParams) (*database.HealthChecker, error) {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	hc := database.NewHealthChecker(sqlDB, logger.NewLogrus())
	if p.Files != nil {
		hc.AddProbe("minio", p.Files.Ping)
	}
	if pinger, ok := p.Locker.(interface{ Ping(context.Context) error }); ok {
		hc.AddProbe("redis", pinger.Ping)
	}
	return hc, nil
}
