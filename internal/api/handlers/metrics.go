package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus 指标
var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripgazer_predictions_total",
		Help: "Total number of prediction requests by status",
	}, []string{"status"})

	predictionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripgazer_prediction_duration_seconds",
		Help:    "Latency of single prediction requests",
		Buckets: prometheus.DefBuckets,
	})

	driftChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripgazer_drift_checks_total",
		Help: "Total number of drift detection runs by result",
	}, []string{"result"})
)
