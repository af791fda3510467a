// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradegate/internal/domain"
)

// Metrics holds all Prometheus metrics for the engine.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Tick metrics
	TicksTotal   *prometheus.CounterVec
	TickDuration prometheus.Histogram

	// Decision metrics
	SignalsTotal    *prometheus.CounterVec
	DecisionsTotal  *prometheus.CounterVec
	OrdersSubmitted prometheus.Counter
	OrdersDuplicate prometheus.Counter
	ClosesTotal     *prometheus.CounterVec

	// Risk metrics
	RiskMode       *prometheus.GaugeVec
	DailyPnL       prometheus.Gauge
	BreakerTripped prometheus.Gauge
	OpenPositions  prometheus.Gauge

	// Health metrics
	LastSuccessfulTick prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "tradegate"
	}
	factory := promauto.With(reg)

	return &Metrics{
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Total number of ticks by status",
		}, []string{"status"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Tick execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		SignalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "signals_total",
			Help:      "Total number of winning signals by strategy",
		}, []string{"strategy"}),
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "decisions_total",
			Help:      "Total number of per-instrument decisions by outcome and code",
		}, []string{"outcome", "code"}),
		OrdersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "submitted_total",
			Help:      "Total number of orders sent to the broker",
		}),
		OrdersDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "duplicate_total",
			Help:      "Total number of submissions resolved from the idempotency ledger",
		}),
		ClosesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "closes_total",
			Help:      "Total number of position closes by reason",
		}, []string{"reason"}),

		RiskMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "mode",
			Help:      "Current risk mode (1 for the active mode)",
		}, []string{"mode"}),
		DailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "daily_pnl",
			Help:      "Realized P&L since the last day rollover",
		}),
		BreakerTripped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "breaker_tripped",
			Help:      "1 while the daily circuit breaker is tripped",
		}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "open",
			Help:      "Number of open positions",
		}),

		LastSuccessfulTick: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_tick_timestamp",
			Help:      "Unix timestamp of last completed tick",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordTick records a finished tick.
func (m *Metrics) RecordTick(status string, seconds float64, finishedUnix int64) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(status).Inc()
	m.TickDuration.Observe(seconds)
	if status == "ok" {
		m.LastSuccessfulTick.Set(float64(finishedUnix))
	}
}

// RecordSignal counts a winning signal.
func (m *Metrics) RecordSignal(strategy string) {
	if m == nil {
		return
	}
	m.SignalsTotal.WithLabelValues(strategy).Inc()
}

// RecordDecision counts a journaled decision.
func (m *Metrics) RecordDecision(outcome domain.Outcome, code domain.RejectReason) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(string(outcome), string(code)).Inc()
}

// RecordOrder counts a submission.
func (m *Metrics) RecordOrder(duplicate bool) {
	if m == nil {
		return
	}
	if duplicate {
		m.OrdersDuplicate.Inc()
		return
	}
	m.OrdersSubmitted.Inc()
}

// RecordClose counts an applied close.
func (m *Metrics) RecordClose(reason domain.CloseReason) {
	if m == nil {
		return
	}
	m.ClosesTotal.WithLabelValues(string(reason)).Inc()
}

// SetRiskState updates the risk gauges.
func (m *Metrics) SetRiskState(mode domain.RiskMode, st domain.RiskState, openPositions int) {
	if m == nil {
		return
	}
	for _, candidate := range []domain.RiskMode{domain.RiskModeNormal, domain.RiskModeDefensive, domain.RiskModeLockedOut} {
		v := 0.0
		if candidate == mode {
			v = 1
		}
		m.RiskMode.WithLabelValues(string(candidate)).Set(v)
	}
	m.DailyPnL.Set(st.DailyPnL)
	if st.BreakerTripped {
		m.BreakerTripped.Set(1)
	} else {
		m.BreakerTripped.Set(0)
	}
	m.OpenPositions.Set(float64(openPositions))
}
