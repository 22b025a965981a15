package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aihub/chatbot-go/app/bootstrap"
	"github.com/aihub/chatbot-go/app/middleware"
	"github.com/aihub/chatbot-go/app/router"
	"github.com/aihub/chatbot-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Start(ctx)
	defer app.Shutdown()

	middleware.Install(nil)
	router.Init()

	port, err := strconv.Atoi(app.Config.Server.Port)
	if err != nil {
		logger.Fatal("Invalid server port", zap.String("port", app.Config.Server.Port))
	}
	web.BConfig.AppName = "Chatbot Service"
	web.BConfig.CopyRequestBody = true
	web.BConfig.WebConfig.AutoRender = false
	web.BConfig.Listen.HTTPPort = port
	web.BConfig.Listen.Graceful = false
	if app.Config.Server.Env != "production" {
		web.BConfig.RunMode = web.DEV
	} else {
		web.BConfig.RunMode = web.PROD
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		_ = web.BeeApp.Server.Shutdown(context.Background())
	}()

	logger.Info("Starting Chatbot Service", zap.Int("port", port))
	web.Run()
}
