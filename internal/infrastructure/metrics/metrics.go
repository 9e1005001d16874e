package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/kasa/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Settlement metrics
	SettlementsClosed    prometheus.Counter
	SettlementFailures   *prometheus.CounterVec
	SettlementDuration   prometheus.Histogram
	SettlementShortfalls prometheus.Counter
	AmountDistributed    prometheus.Counter
	CarryOutstanding     prometheus.Gauge

	// API metrics
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	HTTPInFlight   prometheus.Gauge
	RateLimitHits  prometheus.Counter
	AuthFailures   *prometheus.CounterVec
	IdempotentHits prometheus.Counter

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
	PublishErrors   prometheus.Counter
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Settlement metrics
		SettlementsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kasa_settlements_closed_total",
			Help: "Total number of periods closed",
		}),
		SettlementFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kasa_settlement_failures_total",
				Help: "Total number of failed period closes by reason",
			},
			[]string{"reason"},
		),
		SettlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kasa_settlement_duration_seconds",
			Help:    "Duration of period close operations",
			Buckets: prometheus.DefBuckets,
		}),
		SettlementShortfalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "kasa_settlement_shortfalls_total",
			Help: "Total number of closes where claims exceeded the pool",
		}),
		AmountDistributed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kasa_amount_distributed_total",
			Help: "Total cash paid out to shareholders",
		}),
		CarryOutstanding: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kasa_carry_outstanding",
			Help: "Net carry balance after the latest close",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kasa_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kasa_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kasa_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		RateLimitHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "kasa_rate_limit_hits_total",
			Help: "Total rate limited requests",
		}),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kasa_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),
		IdempotentHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "kasa_idempotent_replays_total",
			Help: "Total requests answered from the idempotency store",
		}),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kasa_events_published_total",
				Help: "Total outbox events published",
			},
			[]string{"event_type"},
		),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "kasa_event_publish_errors_total",
			Help: "Total outbox publish failures",
		}),
	}
}

// SettlementClosed implements usecase.SettlementRecorder.
func (m *Metrics) SettlementClosed(result *domain.DistributionResult, duration time.Duration) {
	m.SettlementsClosed.Inc()
	m.SettlementDuration.Observe(duration.Seconds())
	if result == nil {
		return
	}
	if result.Shortfall {
		m.SettlementShortfalls.Inc()
	}
	m.AmountDistributed.Add(result.TotalPaid.InexactFloat64())
	m.CarryOutstanding.Set(result.Carry().Total().InexactFloat64())
}

// SettlementFailed implements usecase.SettlementRecorder.
func (m *Metrics) SettlementFailed(reason string) {
	m.SettlementFailures.WithLabelValues(reason).Inc()
}

// EventPublished records one published outbox event.
func (m *Metrics) EventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// EventPublishFailed records one failed publish attempt.
func (m *Metrics) EventPublishFailed() {
	m.PublishErrors.Inc()
}
