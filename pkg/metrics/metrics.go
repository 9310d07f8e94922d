// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settlement"

var (
	// NotificationsTotal counts processed payment notifications by provider and outcome.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Payment notifications processed, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// LedgerAppendsTotal counts ledger appends by entry kind and result.
	LedgerAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_appends_total",
			Help:      "Ledger append attempts, by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// PayoutTransitionsTotal counts payout state changes by target status.
	PayoutTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_transitions_total",
			Help:      "Payout status transitions, by target status.",
		},
		[]string{"status"},
	)

	// OpDuration observes service operation latency.
	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Settlement operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"op"},
	)

	// BalanceAuditMismatches is the number of wallets whose cached balance
	// disagreed with the ledger in the last audit sweep.
	BalanceAuditMismatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_audit_mismatches",
			Help:      "Wallets out of sync with their ledger in the last audit sweep.",
		},
	)

	// BalanceAuditWallets is the number of wallets checked in the last sweep.
	BalanceAuditWallets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_audit_wallets",
			Help:      "Wallets checked in the last audit sweep.",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes HTTP latency by route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		NotificationsTotal,
		LedgerAppendsTotal,
		PayoutTransitionsTotal,
		OpDuration,
		BalanceAuditMismatches,
		BalanceAuditWallets,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ObserveOp starts timing op and returns the function that records it.
func ObserveOp(op string) func() {
	start := time.Now()
	return func() {
		OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry for the /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
