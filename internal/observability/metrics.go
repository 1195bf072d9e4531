// Package observability exposes Prometheus metrics for the payment core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderpay",
			Name:      "settlements_total",
			Help:      "Orders reaching a terminal status",
		},
		[]string{"status"},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orderpay",
			Name:      "signature_failures_total",
			Help:      "Gateway callbacks rejected by signature verification",
		},
	)

	ConcurrencyConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orderpay",
			Name:      "concurrency_conflicts_total",
			Help:      "Version-guarded writes lost to a concurrent mutation",
		},
	)

	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orderpay",
			Name:      "payment_sessions_opened_total",
			Help:      "Gateway sessions opened, including retries",
		},
	)

	ReservationReleases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderpay",
			Name:      "reservation_releases_total",
			Help:      "Inventory reservation release outcomes",
		},
		[]string{"result"},
	)
)
