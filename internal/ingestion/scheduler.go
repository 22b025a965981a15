package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aihub/chatbot-go/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SourceLister 列出配置了定时刷新的来源
type SourceLister interface {
	ScheduledSources(ctx context.Context) ([]repository.SourceRef, error)
}

// Submitter 提交导入任务
type Submitter interface {
	Submit(ctx context.Context, task *Task) (*Task, error)
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler 按cron表达式重新抓取网页来源
type Scheduler struct {
	sources   SourceLister
	submitter Submitter
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	enqueued map[string]time.Time
}

func NewScheduler(sources SourceLister, submitter Submitter, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sources:   sources,
		submitter: submitter,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		enqueued:  make(map[string]time.Time),
	}
}

// Run 每个interval扫描一次，直到ctx结束
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		if n, err := s.Scan(ctx); err != nil {
			s.logger.Error("定时扫描失败", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("定时刷新任务已入队", zap.Int("count", n))
		}
	}); err != nil {
		return fmt.Errorf("schedule rescan: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Scan 对到期的来源提交刷新任务，返回入队数量
func (s *Scheduler) Scan(ctx context.Context) (int, error) {
	refs, err := s.sources.ScheduledSources(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	count := 0
	for _, ref := range refs {
		schedule, err := cronParser.Parse(ref.CronJob)
		if err != nil {
			s.logger.Warn("无效的cron表达式",
				zap.Uint("chatbot_id", ref.ChatbotID),
				zap.String("cron", ref.CronJob),
				zap.Error(err))
			continue
		}
		if schedule.Next(ref.LastUpdate).After(now) {
			continue
		}

		key := fmt.Sprintf("%d:%s", ref.ChatbotID, ref.FileHash)
		if s.inFlight(key, ref.LastUpdate, schedule, now) {
			continue
		}

		task := &Task{
			ChatbotID:   ref.ChatbotID,
			URL:         ref.URL,
			FileName:    ref.FileName,
			ChunkSize:   ref.ChunkSize,
			OverlapSize: ref.OverlapSize,
			IsRequired:  ref.IsRequired,
			UseCag:      ref.UseCag,
			CronJob:     ref.CronJob,
		}
		if _, err := s.submitter.Submit(ctx, task); err != nil {
			s.logger.Error("提交刷新任务失败", zap.String("url", ref.URL), zap.Error(err))
			continue
		}

		s.mu.Lock()
		s.enqueued[key] = now
		s.mu.Unlock()
		count++
	}
	return count, nil
}

// inFlight 上次入队后来源尚未刷新且下一个cron时间点未到，视为任务仍在处理中；
// 任务失败时LastUpdate不会前进，到下一个时间点会重新入队
func (s *Scheduler) inFlight(key string, lastUpdate time.Time, schedule cron.Schedule, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.enqueued[key]
	if !ok {
		return false
	}
	if !last.After(lastUpdate) {
		delete(s.enqueued, key)
		return false
	}
	return schedule.Next(last).After(now)
}
