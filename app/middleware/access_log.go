package middleware

import (
	"time"

	"github.com/aihub/chatbot-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-Id"
	startedAtKey    = "accessLogStartedAt"
)

// RequestID 透传或生成请求ID
func RequestID(ctx *context.Context) {
	id := ctx.Input.Header(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData(RequestIDHeader, id)
	ctx.Input.SetData(startedAtKey, time.Now())
	ctx.Output.Header(RequestIDHeader, id)
}

// AccessLog 请求结束后记录一行访问日志
func AccessLog(ctx *context.Context) {
	started, _ := ctx.Input.GetData(startedAtKey).(time.Time)
	id, _ := ctx.Input.GetData(RequestIDHeader).(string)

	fields := []zap.Field{
		zap.String("request_id", id),
		zap.String("method", ctx.Input.Method()),
		zap.String("path", ctx.Input.URL()),
		zap.Int("status", ctx.ResponseWriter.Status),
		zap.String("ip", ctx.Input.IP()),
	}
	if !started.IsZero() {
		fields = append(fields, zap.Duration("latency", time.Since(started)))
	}
	logger.Info("HTTP request", fields...)
}

// Install 注册全局过滤器
func Install(allowedOrigins []string) {
	web.InsertFilter("/*", web.BeforeRouter, RequestID)
	web.InsertFilter("/*", web.BeforeRouter, CORS(allowedOrigins))
	web.InsertFilter("/*", web.BeforeRouter, SecurityHeaders)
	web.InsertFilter("/*", web.FinishRouter, AccessLog, web.WithReturnOnOutput(false))
}
