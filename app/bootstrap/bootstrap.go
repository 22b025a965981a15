package bootstrap

import (
	"context"
	"log"
	"sync"

	"github.com/aihub/chatbot-go/app/controllers"
	"github.com/aihub/chatbot-go/internal/chat"
	"github.com/aihub/chatbot-go/internal/config"
	"github.com/aihub/chatbot-go/internal/database"
	"github.com/aihub/chatbot-go/internal/di"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"github.com/aihub/chatbot-go/internal/knowledge"
	"github.com/aihub/chatbot-go/internal/logger"
	"github.com/aihub/chatbot-go/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config *config.Config

	worker    *ingestion.Worker
	scheduler *ingestion.Scheduler
	health    *database.HealthChecker

	cleanupTasks []func() error
	wg           sync.WaitGroup
}

// components 从容器中取出的运行时组件
type components struct {
	dig.In

	Engine    *chat.Engine
	Service   *ingestion.Service
	Queue     ingestion.Queue
	Worker    *ingestion.Worker
	Scheduler *ingestion.Scheduler
	Health    *database.HealthChecker
	Files     *storage.FileStore `optional:"true"`
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	loader := config.NewConfigLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	config.Set(cfg)
	loader.Watch(func(*config.Config) {
		logger.Info("Configuration file changed; restart to apply infrastructure settings")
	}, func(err error) {
		logger.Warn("Ignoring invalid configuration change", zap.Error(err))
	})

	if err := knowledge.ApplyLicenses(cfg.Unidoc); err != nil {
		logger.Warn("Document parser license not applied", zap.Error(err))
	}

	if _, err := di.Build(cfg, logger.GetLogger()); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	err = di.Invoke(func(c components) {
		app.worker = c.Worker
		app.scheduler = c.Scheduler
		app.health = c.Health

		d := controllers.Dependencies{
			Chat:      c.Engine,
			Ingestion: c.Service,
			Health:    c.Health,

			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}
		if c.Files != nil {
			d.Files = c.Files
		}
		controllers.SetDependencies(d)

		app.cleanupTasks = append(app.cleanupTasks, c.Queue.Close)
	})
	if err != nil {
		return nil, err
	}

	app.cleanupTasks = append(app.cleanupTasks, database.CloseDB, database.CloseRedis)
	return app, nil
}

// Start 启动后台组件：导入worker、定时刷新和健康检查
func (a *App) Start(ctx context.Context) {
	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		if err := a.worker.Run(ctx); err != nil {
			logger.Error("Ingestion worker stopped", zap.Error(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		if err := a.scheduler.Run(ctx); err != nil {
			logger.Error("Refresh scheduler stopped", zap.Error(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		a.health.Start(ctx)
	}()
}

// Shutdown waits for background components and closes resources gracefully.
func (a *App) Shutdown() {
	a.wg.Wait()

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("Cleanup error", zap.Error(err))
		}
	}

	logger.Sync()
}
