package controllers

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsController 指标控制器
type MetricsController struct {
	web.Controller
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	promhttp.Handler().ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
