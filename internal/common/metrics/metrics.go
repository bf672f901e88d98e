// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gate_http_request_duration_seconds",
			Help:    "Duration of HTTP request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_access_decisions_total",
			Help: "Access gate decisions by reason and tier",
		},
		[]string{"reason", "tier"},
	)

	OracleLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_oracle_lookups_total",
			Help: "Balance oracle lookups by outcome",
		},
		[]string{"outcome"},
	)

	OracleLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gate_oracle_lookup_duration_seconds",
			Help:    "Latency of balance oracle lookups",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	TicketClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_ticket_claims_total",
			Help: "Ticket claims by resource and outcome",
		},
		[]string{"resource_id", "outcome"},
	)

	TicketClaimAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gate_ticket_claim_attempts",
			Help:    "Allocator attempts consumed per claim",
			Buckets: []float64{1, 2, 3, 5, 8},
		},
	)

	PassesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_access_passes_issued_total",
			Help: "Degraded-mode access passes issued by tier",
		},
		[]string{"tier"},
	)

	InventoryAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_inventory_alerts_total",
			Help: "Sold-out alerts by channel and result",
		},
		[]string{"channel", "result"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
