package middleware

import (
	"net/http"

	"github.com/beego/beego/v2/server/web/context"
)

// CORS 允许列表为空时放行所有来源（webhook和后台服务不依赖浏览器同源策略）
func CORS(allowedOrigins []string) func(*context.Context) {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(ctx *context.Context) {
		origin := ctx.Input.Header("Origin")
		if origin == "" {
			return
		}
		if _, ok := allowed[origin]; len(allowed) > 0 && !ok {
			return
		}

		ctx.Output.Header("Access-Control-Allow-Origin", origin)
		ctx.Output.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Output.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
		ctx.Output.Header("Access-Control-Max-Age", "3600")

		if ctx.Input.Method() == http.MethodOptions {
			ctx.Output.SetStatus(http.StatusNoContent)
			_ = ctx.Output.Body([]byte(""))
		}
	}
}

// SecurityHeaders 安全响应头
func SecurityHeaders(ctx *context.Context) {
	ctx.Output.Header("X-Content-Type-Options", "nosniff")
	ctx.Output.Header("X-Frame-Options", "DENY")
	ctx.Output.Header("Referrer-Policy", "strict-origin-when-cross-origin")
}
