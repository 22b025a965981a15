package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "github.com/aihub/chatbot-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_FailureRecordsImportErrorThenWaits(t *testing.T) {
	cause := errors.New("fetch https://example.com: status 500")
	audit := &fakeAudit{}
	w := NewWorker(NewMemoryQueue(1), &fakeProcessor{err: cause}, audit, 30*time.Millisecond, nil)

	task := &Task{ID: "task-1", ChatbotID: 5, URL: "https://example.com", ChunkSize: 1000, OverlapSize: 200, CronJob: "0 * * * *"}
	start := time.Now()
	err := w.handle(context.Background(), task)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, apperrors.ErrCodeIngestionFailed, apperrors.GetAppError(err).Code)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)

	require.Len(t, audit.failures, 1)
	rec := audit.failures[0]
	assert.Equal(t, uint(5), rec.ChatbotID)
	assert.Equal(t, "task-1", rec.TaskID)
	assert.Contains(t, rec.Error, "status 500")

	var payload Task
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, *task, payload)
}

func TestWorker_SuccessWritesNoImportError(t *testing.T) {
	audit := &fakeAudit{}
	w := NewWorker(NewMemoryQueue(1), &fakeProcessor{}, audit, time.Second, nil)

	require.NoError(t, w.handle(context.Background(), &Task{ID: "ok", ChatbotID: 1}))
	assert.Empty(t, audit.failures)
}

func TestWorker_CancelledDelayReturnsPromptly(t *testing.T) {
	w := NewWorker(NewMemoryQueue(1), &fakeProcessor{err: errors.New("boom")}, &fakeAudit{}, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- w.handle(ctx, &Task{ID: "x", ChatbotID: 1}) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not return after cancellation")
	}
}

func TestWorker_RunContinuesAfterFailure(t *testing.T) {
	q := NewMemoryQueue(4)
	audit := &fakeAudit{}
	proc := &sequenceProcessor{fail: map[string]bool{"a": true}}
	w := NewWorker(q, proc, audit, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Publish(ctx, &Task{ID: id, ChatbotID: 1}))
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return proc.count() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, []string{"a", "b", "c"}, proc.seen())
	assert.Len(t, audit.failures, 1)
}
