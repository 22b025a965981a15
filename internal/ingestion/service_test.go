package ingestion

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/aihub/chatbot-go/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SubmitFillsDefaults(t *testing.T) {
	q := NewMemoryQueue(1)
	svc := NewService(q, 1000, 200)

	task, err := svc.Submit(context.Background(), &Task{ChatbotID: 3, URL: "https://example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, 1000, task.ChunkSize)
	assert.Equal(t, 200, task.OverlapSize)
	_, err = uuid.Parse(task.ID)
	assert.NoError(t, err)
	assert.False(t, task.SubmittedAt.IsZero())
	assert.Equal(t, 1, q.Len())
}

func TestService_SubmitRejectsInvalid(t *testing.T) {
	q := NewMemoryQueue(1)
	svc := NewService(q, 1000, 200)

	_, err := svc.Submit(context.Background(), &Task{ChatbotID: 3})
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetAppError(err).Code)
	assert.Equal(t, 0, q.Len())
}

func TestScheduler_ScanEnqueuesDueSources(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	sources := &fakeSources{refs: []repository.SourceRef{
		{ChatbotID: 1, FileHash: "due", URL: "https://a.example", CronJob: "0 * * * *", ChunkSize: 500, OverlapSize: 50, LastUpdate: now.Add(-2 * time.Hour)},
		{ChatbotID: 1, FileHash: "fresh", URL: "https://b.example", CronJob: "0 0 * * *", LastUpdate: now.Add(-time.Hour)},
		{ChatbotID: 2, FileHash: "bad", URL: "https://c.example", CronJob: "every tuesday", LastUpdate: now.Add(-48 * time.Hour)},
		{ChatbotID: 2, FileHash: "daily", URL: "https://d.example", CronJob: "@daily", UseCag: true, LastUpdate: now.Add(-48 * time.Hour)},
	}}
	sub := &recordingSubmitter{}
	s := NewScheduler(sources, sub, time.Minute, nil)
	s.now = func() time.Time { return now }

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sub.tasks, 2)
	assert.Equal(t, "https://a.example", sub.tasks[0].URL)
	assert.Equal(t, 500, sub.tasks[0].ChunkSize)
	assert.Equal(t, "https://d.example", sub.tasks[1].URL)
	assert.True(t, sub.tasks[1].UseCag)

	n, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "pending refreshes are not enqueued twice")
}

func TestScheduler_FailedRefreshRetriedAtNextSlot(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	sources := &fakeSources{refs: []repository.SourceRef{
		{ChatbotID: 1, FileHash: "hourly", URL: "https://a.example", CronJob: "0 * * * *", ChunkSize: 500, OverlapSize: 50, LastUpdate: start.Add(-2 * time.Hour)},
	}}
	sub := &recordingSubmitter{}
	s := NewScheduler(sources, sub, time.Minute, nil)

	now := start
	s.now = func() time.Time { return now }

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	now = start.Add(10 * time.Minute)
	n, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "still inside the slot it was enqueued in")

	// LastUpdate never moved: the task failed
	now = start.Add(24 * time.Hour)
	n, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sub.tasks, 2)
}

func TestScheduler_CompletedRefreshEnqueuedAgainWhenDue(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	sources := &fakeSources{refs: []repository.SourceRef{
		{ChatbotID: 1, FileHash: "hourly", URL: "https://a.example", CronJob: "0 * * * *", ChunkSize: 500, OverlapSize: 50, LastUpdate: start.Add(-2 * time.Hour)},
	}}
	sub := &recordingSubmitter{}
	s := NewScheduler(sources, sub, time.Minute, nil)

	now := start
	s.now = func() time.Time { return now }

	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	sources.refs[0].LastUpdate = start.Add(time.Minute)
	now = start.Add(45 * time.Minute)
	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s.mu.Lock()
	last := s.enqueued["1:hourly"]
	s.mu.Unlock()
	assert.True(t, last.Equal(now))
}
