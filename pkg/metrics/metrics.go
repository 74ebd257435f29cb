// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Orders by terminal outcome: completed, failed, cancelled.
	OrdersTotal *prometheus.CounterVec
	// Reservations currently held against inventory.
	ReservationsActive prometheus.Gauge
	// Reservations released by the expiry sweep.
	ReservationsExpiredTotal prometheus.Counter

	// Journal chain length.
	JournalEntriesTotal prometheus.Counter
	// Set to 1 when verification finds a hash mismatch. Operator alert;
	// never cleared by the engine itself.
	JournalTamperDetected prometheus.Gauge

	// Payment gateway calls by result: success, retryable, declined.
	PaymentCallsTotal *prometheus.CounterVec
}

// New builds and registers the engine collectors under the given service name.
func New(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "orders_total",
			Help:      "Orders by terminal outcome",
		}, []string{"outcome"}),
		ReservationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "reservations_active",
			Help:      "Inventory reservations currently held",
		}),
		ReservationsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "reservations_expired_total",
			Help:      "Reservations released by the expiry sweep",
		}),
		JournalEntriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "journal_entries_total",
			Help:      "Journal entries appended",
		}),
		JournalTamperDetected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "journal_tamper_detected",
			Help:      "1 when journal verification found a hash mismatch",
		}),
		PaymentCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brickvest",
			Subsystem: serviceName,
			Name:      "payment_calls_total",
			Help:      "Payment gateway calls by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersTotal,
		m.ReservationsActive,
		m.ReservationsExpiredTotal,
		m.JournalEntriesTotal,
		m.JournalTamperDetected,
		m.PaymentCallsTotal,
	)
	return m
}

// ExposeHTTP serves /metrics on the given port. Blocks; run in a goroutine.
func (m *Metrics) ExposeHTTP(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
