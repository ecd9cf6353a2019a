// Package metrics holds the Prometheus collectors for the reservation core
// and the handler that exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "campus_reservation"

// Outcome label values for Reservations.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeConflict  = "conflict"
	OutcomeInvalid   = "invalid"
	OutcomeNotFound  = "not_found"
	OutcomeTransient = "transient"
	OutcomeDuplicate = "duplicate"
)

var (
	// Reservations counts reserve and confirm attempts by unit kind and outcome.
	Reservations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "coordinator",
		Name:      "reservations_total",
		Help:      "Reservation attempts by unit kind and outcome.",
	}, []string{"kind", "outcome"})

	Cancellations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "coordinator",
		Name:      "cancellations_total",
		Help:      "Bookings cancelled.",
	})

	HoldsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "coordinator",
		Name:      "holds_expired_total",
		Help:      "Holds returned to available by the sweeper.",
	})

	LedgerRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "ledger",
		Name:      "retries_total",
		Help:      "Ledger operations retried after an infrastructure error.",
	}, []string{"op"})

	LedgerSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "ledger",
		Name:      "op_seconds",
		Help:      "Latency of ledger writes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	NotifyErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "notify",
		Name:      "errors_total",
		Help:      "Booking notifications that could not be delivered.",
	}, []string{"event"})
)

// Registry holds the collectors above plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Reservations, Cancellations, HoldsExpired, LedgerRetries, LedgerSeconds, NotifyErrors,
	)
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Time observes the seconds elapsed until the returned func is called.
//
//	defer metrics.Time(metrics.LedgerSeconds.WithLabelValues("create"))()
func Time(o prometheus.Observer) func() {
	start := time.Now()
	return func() { o.Observe(time.Since(start).Seconds()) }
}
