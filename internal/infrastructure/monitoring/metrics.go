package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	ApplicationsSubmittedTotal prometheus.Counter
	WorkflowTransitionsTotal   *prometheus.CounterVec
	LoansApprovedTotal         prometheus.Counter
	PaymentsTotal              *prometheus.CounterVec
	CreditAdjustmentsTotal     *prometheus.CounterVec
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greenloan_http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "greenloan_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
	}

	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "greenloan_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		ApplicationsSubmittedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "greenloan_applications_submitted_total",
				Help: "Total number of loan applications submitted.",
			},
		),
		WorkflowTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greenloan_workflow_transitions_total",
				Help: "Total number of application workflow transitions.",
			},
			[]string{"target", "status"},
		),
		LoansApprovedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "greenloan_loans_approved_total",
				Help: "Total number of loans approved.",
			},
		),
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greenloan_payments_total",
				Help: "Total number of payment confirmations processed.",
			},
			[]string{"method", "status"},
		),
		CreditAdjustmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greenloan_credit_adjustments_total",
				Help: "Total number of credit score adjustments applied.",
			},
			[]string{"reason"},
		),
	}
)

func RecordHTTPRequest(method, path, code string, duration time.Duration) {
	HTTP.RequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTP.RequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordTransition(target, status string) {
	Business.WorkflowTransitionsTotal.WithLabelValues(target, status).Inc()
}

func RecordPayment(method, status string) {
	Business.PaymentsTotal.WithLabelValues(method, status).Inc()
}

func RecordCreditAdjustment(reason string) {
	Business.CreditAdjustmentsTotal.WithLabelValues(reason).Inc()
}
