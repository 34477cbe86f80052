package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcabot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dcabot_http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)

	// Runs
	RunsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcabot_runs_started_total",
			Help: "Runs created, by entry mode (immediate or waiting)",
		},
		[]string{"mode"},
	)
	RunsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcabot_runs_finished_total",
			Help: "Runs that reached a terminal status",
		},
		[]string{"status"},
	)
	ControlRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcabot_control_requests_total",
			Help: "Pause, resume and stop requests by outcome",
		},
		[]string{"op", "result"},
	)

	// Exchange
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcabot_orders_total",
			Help: "Orders sent to exchanges",
		},
		[]string{"exchange", "side", "type", "result"},
	)
	ExchangeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dcabot_exchange_request_duration_seconds",
			Help: "Duration of exchange API calls in seconds",
		},
		[]string{"exchange", "op"},
	)

	// Webhooks and conditions
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcabot_webhook_deliveries_total",
			Help: "Webhook deliveries by kind and result",
		},
		[]string{"kind", "result"},
	)
	ConditionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dcabot_conditions_expired_total",
			Help: "Triggered conditions that outlived their validity window",
		},
	)
)

var initOnce sync.Once

// InitMetrics registers every collector with the default registry
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)

		prometheus.MustRegister(RunsStarted)
		prometheus.MustRegister(RunsFinished)
		prometheus.MustRegister(ControlRequests)

		prometheus.MustRegister(OrdersTotal)
		prometheus.MustRegister(ExchangeRequestDuration)

		prometheus.MustRegister(WebhookDeliveries)
		prometheus.MustRegister(ConditionsExpired)
	})
}

// Result turns an error into a low-cardinality label value
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
