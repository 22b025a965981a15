package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_chat_requests_total",
			Help: "Chat completion requests by outcome",
		},
		[]string{"outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_chat_request_duration_seconds",
			Help:    "End-to-end chat completion latency",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 300},
		},
		[]string{"channel"},
	)

	retrievedChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_chat_retrieved_chunks",
			Help:    "Similarity-ranked chunks included per request",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
		},
	)
)
