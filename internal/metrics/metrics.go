package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/elys-network/ammvault/internal/types"
)

const namespace = "ammvault"

// Metrics holds the vault's Prometheus collectors on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	calls           *prometheus.CounterVec
	venueCalls      *prometheus.CounterVec
	hookNoops       prometheus.Counter
	rollbacks       *prometheus.CounterVec
	persistFailures prometheus.Counter
	eventsEmitted   *prometheus.CounterVec

	totalShares *prometheus.GaugeVec
	reserves    *prometheus.GaugeVec
	placed      *prometheus.GaugeVec
}

// New registers every collector, plus the Go and process collectors, on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "State-changing vault calls by operation and result kind",
		}, []string{"op", "result"}),
		venueCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "venue_calls_total",
			Help:      "Position calls made to the venue",
		}, []string{"op"}),
		hookNoops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_noops_total",
			Help:      "Update hook calls where the queued positions equal the placed ones",
		}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Calls rolled back, by whether venue compensation succeeded",
		}, []string{"compensated"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Committed calls whose state could not be persisted",
		}),
		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events emitted by type",
		}, []string{"type"}),
		totalShares: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_total_shares",
			Help:      "Share supply per market",
		}, []string{"market"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_reserves",
			Help:      "Idle reserves per market and leg",
		}, []string{"market", "leg"}),
		placed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_placed_positions",
			Help:      "Positions held at the venue per market",
		}, []string{"market"}),
	}

	registry.MustRegister(
		m.calls, m.venueCalls, m.hookNoops, m.rollbacks, m.persistFailures, m.eventsEmitted,
		m.totalShares, m.reserves, m.placed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall counts a state-changing call. The result label is "ok" or the error kind.
func (m *Metrics) ObserveCall(op string, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, Result(err)).Inc()
}

// VenueCall counts one venue position call.
func (m *Metrics) VenueCall(op string) {
	if m == nil {
		return
	}
	m.venueCalls.WithLabelValues(op).Inc()
}

func (m *Metrics) HookNoop() {
	if m == nil {
		return
	}
	m.hookNoops.Inc()
}

func (m *Metrics) Rollback(compensated bool) {
	if m == nil {
		return
	}
	label := "true"
	if !compensated {
		label = "false"
	}
	m.rollbacks.WithLabelValues(label).Inc()
}

func (m *Metrics) PersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Metrics) EventEmitted(typ string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(typ).Inc()
}

// SetMarket publishes the gauges of one market.
func (m *Metrics) SetMarket(state types.MarketState) {
	if m == nil {
		return
	}
	id := state.ID.String()
	reserves := state.Reserves.Normalize()
	if !state.TotalShares.IsNil() {
		m.totalShares.WithLabelValues(id).Set(toFloat(state.TotalShares.String()))
	}
	m.reserves.WithLabelValues(id, "base").Set(toFloat(reserves.Base.String()))
	m.reserves.WithLabelValues(id, "quote").Set(toFloat(reserves.Quote.String()))
	m.placed.WithLabelValues(id).Set(float64(len(state.Placed)))
}

// Result maps an error to its metric label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := types.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal"
}

// toFloat converts an integer string to a gauge value. Amounts beyond float64 precision lose their low digits.
func toFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
