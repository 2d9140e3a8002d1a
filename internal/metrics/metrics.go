package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SettlementRequests   prometheus.Counter
	SettlementApprovals  *prometheus.CounterVec
	DeletedRecords       prometheus.Counter
	WageMismatches       prometheus.Counter
	NotificationFailures *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SettlementRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "settlement_requests_created_total",
			Help: "Settlement requests created by workers.",
		}),
		SettlementApprovals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_approvals_total",
			Help: "Settlement approval attempts by result.",
		}, []string{"result"}),
		DeletedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "schedule_records_deleted_total",
			Help: "Schedule records cleared by approved settlements.",
		}),
		WageMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "settlement_wage_mismatches_total",
			Help: "Approvals whose declared total differs from the cleared schedule wages.",
		}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Notifications that could not be dispatched.",
		}, []string{"kind"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Handled HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
