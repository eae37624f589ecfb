package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// engineMetrics is the exchange core's Prometheus surface: order/action
// lifecycle outcomes, trade events, claimable-collateral routing,
// position-cut (liquidation/ADL) activity, and RPC request outcomes, using a
// lazily-initialized CounterVec/HistogramVec-per-concern registry idiom.
type engineMetrics struct {
	orders       *prometheus.CounterVec
	orderLatency *prometheus.HistogramVec
	trades       *prometheus.CounterVec
	claimable    *prometheus.CounterVec
	positionCuts *prometheus.CounterVec
	reverts      prometheus.Counter
	rpcRequests  *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *engineMetrics
)

// Engine returns the lazily-initialized exchange-core metrics registry.
func Engine() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &engineMetrics{
			orders: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gmsolcore",
				Subsystem: "order",
				Name:      "executions_total",
				Help:      "Total order/action executions segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			orderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gmsolcore",
				Subsystem: "order",
				Name:      "execute_duration_seconds",
				Help:      "Latency of a single Execute call segmented by order kind.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			trades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gmsolcore",
				Subsystem: "tradeevent",
				Name:      "appended_total",
				Help:      "Total TradeEvent records appended to the per-keeper buffer.",
			}, []string{"kind"}),
			claimable: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gmsolcore",
				Subsystem: "claimable",
				Name:      "deferred_total",
				Help:      "Total payouts routed to a claimable account instead of a direct transfer-out.",
			}, []string{"beneficiary_kind"}),
			positionCuts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gmsolcore",
				Subsystem: "positioncut",
				Name:      "executions_total",
				Help:      "Total liquidation/ADL cuts segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			reverts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gmsolcore",
				Subsystem: "revertible",
				Name:      "discarded_total",
				Help:      "Total Revertible Market overlays dropped without a commit.",
			}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gmsolcore",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total HTTP entry-point invocations segmented by route and outcome.",
			}, []string{"route", "outcome"}),
		}
		prometheus.MustRegister(
			engineRegistry.orders,
			engineRegistry.orderLatency,
			engineRegistry.trades,
			engineRegistry.claimable,
			engineRegistry.positionCuts,
			engineRegistry.reverts,
			engineRegistry.rpcRequests,
		)
	})
	return engineRegistry
}

// ObserveOrderExecution records a completed, cancelled, or errored order/
// action execution and its latency, following native/order.Execute's and
// native/action.Execute's own kind string (types.OrderKind.String /
// types.ActionKind.String).
func (m *engineMetrics) ObserveOrderExecution(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(kind, outcome).Inc()
	m.orderLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordTradeEvent increments the TradeEvent append counter.
func (m *engineMetrics) RecordTradeEvent(kind string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(kind).Inc()
}

// RecordClaimableDeferral increments the claimable-routing counter when a
// decrease's payout is capped and deferred.
func (m *engineMetrics) RecordClaimableDeferral(beneficiaryKind string) {
	if m == nil {
		return
	}
	m.claimable.WithLabelValues(beneficiaryKind).Inc()
}

// RecordPositionCut increments the liquidation/ADL counter.
func (m *engineMetrics) RecordPositionCut(kind, outcome string) {
	if m == nil {
		return
	}
	m.positionCuts.WithLabelValues(kind, outcome).Inc()
}

// RecordRevertDiscarded increments the Revertible Market discard counter.
// native/order.Execute calls it when it drops an Overlay after a
// trigger-price or dispatch failure; overlays dropped on other error paths,
// including native/action's, are not counted.
func (m *engineMetrics) RecordRevertDiscarded() {
	if m == nil {
		return
	}
	m.reverts.Inc()
}

// RecordRPCRequest increments the HTTP entry-point counter ( "Ledger
// program surface") segmented by route and outcome ("ok", "error",
// "unauthorized", "rate_limited").
func (m *engineMetrics) RecordRPCRequest(route, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(route, outcome).Inc()
}
