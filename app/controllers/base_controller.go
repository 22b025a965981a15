package controllers

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	_ = c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(status int, data interface{}) {
	c.JSON(status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, code apperrors.ErrorCode, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"code":    code,
		"error":   message,
	})
}

// JSONAppError 按AppError的HTTPCode输出；非AppError按500处理且不暴露内部信息
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.GetAppError(err)
	fields := []zap.Field{
		zap.String("path", c.Ctx.Request.URL.Path),
		zap.String("code", string(appErr.Code)),
		zap.String("ip", c.clientIP()),
		zap.Error(err),
	}
	if appErr.HTTPCode >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Warn("Request rejected", fields...)
	}
	c.JSONError(appErr.HTTPCode, appErr.Code, appErr.Message)
}

// mustParseUintParam 解析路由中的数字ID
func (c *BaseController) mustParseUintParam(name string) (uint, bool) {
	val := c.Ctx.Input.Param(name)
	id, err := strconv.ParseUint(val, 10, 32)
	if err != nil || id == 0 {
		c.JSONError(http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// clientIP 获取客户端真实IP地址
func (c *BaseController) clientIP() string {
	if xff := c.Ctx.Input.Header("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if realIP := c.Ctx.Input.Header("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.Ctx.Input.IP()
}
