package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceProcessor 记录处理顺序，并检查同一时刻只有一个任务在处理
type sequenceProcessor struct {
	mu       sync.Mutex
	ids      []string
	fail     map[string]bool
	inFlight int
	overlap  bool
}

func (p *sequenceProcessor) Process(_ context.Context, task *Task) (*Result, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	p.ids = append(p.ids, task.ID)
	if p.fail[task.ID] {
		return nil, errors.New("failed " + task.ID)
	}
	return &Result{TaskID: task.ID, Mode: ModeDocument}, nil
}

func (p *sequenceProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

func (p *sequenceProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func TestMemoryQueue_ManyProducersOneConsumer(t *testing.T) {
	q := NewMemoryQueue(2)
	proc := &sequenceProcessor{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.Consume(ctx, func(ctx context.Context, task *Task) error {
		_, err := proc.Process(ctx, task)
		return err
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				assert.NoError(t, q.Publish(ctx, &Task{ID: "t", ChatbotID: 1}))
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return proc.count() == 20 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, proc.overlap)
}

func TestMemoryQueue_PublishBlocksWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Publish(context.Background(), &Task{ID: "1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, &Task{ID: "2"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len())
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Publish(context.Background(), &Task{}), ErrQueueClosed)
	assert.ErrorIs(t, q.Consume(context.Background(), func(context.Context, *Task) error { return nil }), ErrQueueClosed)
}
