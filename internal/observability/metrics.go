package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantid",
		Name:      "cache_lookups_total",
		Help:      "Catalog memo lookups by table and result",
	}, []string{"table", "result"})

	HealthResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantid",
		Name:      "health_results_total",
		Help:      "Operation outcomes recorded by the health tracker",
	}, []string{"component", "status"})

	SyncRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantid",
		Name:      "sync_records_total",
		Help:      "Plant records processed by bulk sync",
	}, []string{"result"})

	WriteBacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantid",
		Name:      "write_backs_total",
		Help:      "Remote records written back to the local store",
	}, []string{"result"})

	OutboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "plantid",
		Name:      "outbox_depth",
		Help:      "Number of pending remote writes",
	})

	OutboxAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantid",
		Name:      "outbox_attempts_total",
		Help:      "Outbox delivery attempts by kind and result",
	}, []string{"kind", "result"})

	Identifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantid",
		Name:      "identifications_total",
		Help:      "Identification attempts by outcome",
	}, []string{"outcome"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "plantid",
		Name:      "inference_duration_seconds",
		Help:      "Duration of model inference",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plantid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
