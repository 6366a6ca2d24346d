package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// total requests per route, method and status code
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_http_requests_total",
			Help: "Total API requests received",
		},
		[]string{"route", "method", "status"},
	)

	// request latency in seconds per route/method
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_http_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// report submissions by outcome (accepted, duplicate, invalid)
	ReportsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_reports_total",
			Help: "Report submissions by outcome",
		},
		[]string{"target_type", "outcome"},
	)

	// escalation evaluations by resulting action
	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_escalations_total",
			Help: "Escalation actions fired",
		},
		[]string{"target_type", "action"},
	)

	// weighted aggregate seen at evaluation time
	AggregateWeight = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moderation_aggregate_weight",
			Help:    "Weighted report aggregate observed on evaluation",
			Buckets: []float64{0.5, 1, 2, 3, 5, 7.5, 10, 15, 25, 50},
		},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_decisions_total",
			Help: "Decisions recorded",
		},
		[]string{"decision", "origin"},
	)

	Appeals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_appeals_total",
			Help: "Appeal submissions and resolutions",
		},
		[]string{"outcome"},
	)

	Strikes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_strikes_total",
			Help: "Strikes added, labelled by whether the ceiling was crossed",
		},
		[]string{"ceiling"},
	)

	SLARestorations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_sla_restorations_total",
			Help: "Targets restored after the review SLA elapsed",
		},
		[]string{"target_type"},
	)

	// classifier calls labelled by outcome (safe, violation, fail_open)
	ClassifierRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_classifier_requests_total",
			Help: "Classifier oracle calls by outcome",
		},
		[]string{"outcome"},
	)

	ClassifierLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moderation_classifier_duration_seconds",
			Help:    "Duration of classifier oracle calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// background tasks by kind and result (ok, error, dropped)
	BackgroundTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_background_tasks_total",
			Help: "Background tasks processed",
		},
		[]string{"kind", "result"},
	)

	TaskQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moderation_task_queue_depth",
			Help: "Tasks waiting in the background queue",
		},
	)

	NotificationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_notification_errors_total",
			Help: "Notifications that failed to publish",
		},
	)
)
