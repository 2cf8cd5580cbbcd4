/*
metrics.go - Prometheus instrumentation

Counters are labeled by operation and result so dashboards can separate
rejected business operations (insufficient funds, exhausted schemes) from
genuine server failures. Exposed on /metrics via promhttp.
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coin_engine",
		Name:      "operations_total",
		Help:      "Ledger operations processed, by operation and result.",
	}, []string{"op", "result"})

	coinsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coin_engine",
		Name:      "coins_moved_total",
		Help:      "Coins moved through completed operations, by transaction type.",
	}, []string{"type"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coin_engine",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)

func recordOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	opsTotal.WithLabelValues(op, result).Inc()
}
