package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Probe 额外依赖的存活检查（Redis、MinIO等）
type Probe func(ctx context.Context) error

// HealthChecker 数据库及依赖健康检查器
type HealthChecker struct {
	db            *sql.DB
	logger        *logrus.Logger
	checkInterval time.Duration
	timeout       time.Duration

	mu        sync.RWMutex
	probes    map[string]Probe
	healthy   bool
	lastCheck time.Time
	failures  map[string]string
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Healthy   bool              `json:"healthy"`
	LastCheck time.Time         `json:"last_check"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(db *sql.DB, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		db:            db,
		logger:        logger,
		checkInterval: 30 * time.Second,
		timeout:       5 * time.Second,
		probes:        make(map[string]Probe),
		failures:      make(map[string]string),
	}
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// AddProbe 注册依赖检查
func (hc *HealthChecker) AddProbe(name string, probe Probe) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.probes[name] = probe
}

// Check 执行单次健康检查，返回数据库ping的错误
func (hc *HealthChecker) Check(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	failures := make(map[string]string)
	dbErr := hc.db.PingContext(ctx)
	if dbErr != nil {
		failures["database"] = dbErr.Error()
	}

	hc.mu.RLock()
	probes := make(map[string]Probe, len(hc.probes))
	for name, p := range hc.probes {
		probes[name] = p
	}
	hc.mu.RUnlock()

	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	hc.mu.Lock()
	wasHealthy := hc.healthy
	hc.healthy = len(failures) == 0
	hc.lastCheck = time.Now()
	hc.failures = failures
	hc.mu.Unlock()

	elapsed := time.Since(start)
	switch {
	case len(failures) > 0:
		hc.logger.WithFields(logrus.Fields{
			"failures":      failures,
			"response_time": elapsed,
		}).Warn("Health check failed")
	case !wasHealthy:
		hc.logger.WithField("response_time", elapsed).Info("Dependencies healthy")
	default:
		hc.logger.WithField("response_time", elapsed).Debug("Health check passed")
	}

	return dbErr
}

// Start 周期性检查，直到ctx结束
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.RLock()
	interval := hc.checkInterval
	hc.mu.RUnlock()

	_ = hc.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hc.logger.Info("Health checker stopped")
			return
		case <-ticker.C:
			_ = hc.Check(ctx)
		}
	}
}

// IsHealthy 当前健康状态
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.healthy
}

// Result 最近一次检查结果
func (hc *HealthChecker) Result() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{Healthy: hc.healthy, LastCheck: hc.lastCheck}
	if len(hc.failures) > 0 {
		result.Failures = make(map[string]string, len(hc.failures))
		for k, v := range hc.failures {
			result.Failures[k] = v
		}
	}
	return result
}
