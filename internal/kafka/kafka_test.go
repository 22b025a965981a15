package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/aihub/chatbot-go/internal/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProducer_PublishEncodesTask(t *testing.T) {
	mock := mocks.NewSyncProducer(t, newProducerConfig(0))
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var task ingestion.Task
		if err := json.Unmarshal(val, &task); err != nil {
			return err
		}
		if task.ID != "t-1" || task.ChatbotID != 9 {
			return fmt.Errorf("unexpected task %+v", task)
		}
		return nil
	})

	p := newProducer(mock, "chatbot-ingestion", zap.NewNop())
	err := p.Publish(context.Background(), &ingestion.Task{ID: "t-1", ChatbotID: 9, URL: "https://example.com"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_PublishFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, newProducerConfig(0))
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newProducer(mock, "chatbot-ingestion", nil)
	err := p.Publish(context.Background(), &ingestion.Task{ID: "t-2", ChatbotID: 1})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestProducer_PublishCancelled(t *testing.T) {
	mock := mocks.NewSyncProducer(t, newProducerConfig(0))
	p := newProducer(mock, "chatbot-ingestion", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, &ingestion.Task{ID: "t-3"}), context.Canceled)
	require.NoError(t, p.Close())
}

func TestTaskHandler_Dispatch(t *testing.T) {
	var got []*ingestion.Task
	h := &taskHandler{
		handler: func(_ context.Context, task *ingestion.Task) error {
			got = append(got, task)
			return errors.New("recorded as import error")
		},
		logger: zap.NewNop(),
	}

	data, err := json.Marshal(&ingestion.Task{ID: "t-4", ChatbotID: 2, FileName: "a.txt", FileContent: []byte("hi")})
	require.NoError(t, err)

	h.dispatch(context.Background(), &sarama.ConsumerMessage{Value: data})
	h.dispatch(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")})

	require.Len(t, got, 1)
	assert.Equal(t, "t-4", got[0].ID)
	assert.Equal(t, []byte("hi"), got[0].FileContent)
}
