package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_ingestion_tasks_total",
			Help: "Ingestion tasks by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	chunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_ingestion_chunks_total",
			Help: "Knowledge chunks written by ingestion",
		},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_ingestion_task_duration_seconds",
			Help:    "Time spent processing one ingestion task",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)
)
