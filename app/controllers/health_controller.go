package controllers

import "net/http"

// HealthController 健康检查
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	h := current().Health
	if h == nil {
		c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	result := h.Result()
	status := http.StatusOK
	if !result.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
