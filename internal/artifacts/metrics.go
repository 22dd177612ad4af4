// Prometheus instrumentation for the artifact layer, grounded on
// chidi150c-coinbase/metrics.go's CounterVec/GaugeVec set (bot_orders_total,
// bot_trades_total{result}, bot_exit_reasons_total{reason,side},
// bot_equity_usd). Unlike that donor, Metrics is not package-level vars
// registered in init() against prometheus's default registry: a backtest
// core runs many Plays/symbols concurrently within one process (spec.md
// §5), and a shared default registry would panic on the second run's
// identical metric names. Each Metrics instance owns its own Registry so
// concurrent runs never collide.
package artifacts

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atlas-quant/tradecore/pkg/types"
)

// Metrics is one run's exported counters/gauges (spec.md doesn't name
// metrics as a required artifact, but C10's engine and this package are
// natural instrumentation points, and the donor pack's convention is to
// expose Prometheus series for exactly this kind of run bookkeeping).
type Metrics struct {
	Registry *prometheus.Registry

	barsProcessed prometheus.Gauge
	execBars      prometheus.Gauge
	fillsTotal    *prometheus.CounterVec
	tradesTotal   *prometheus.CounterVec
	exitReasons   *prometheus.CounterVec
	equity        prometheus.Gauge
	terminal      *prometheus.GaugeVec
}

// NewMetrics builds and registers a fresh metric set. playID/symbol become
// constant labels so one process's /metrics endpoint can distinguish
// concurrently running plays without per-series label cardinality blowing
// up (only one active run per (play, symbol) at a time, per spec.md §5's
// one-position-per-symbol constraint).
func NewMetrics(playID, symbol string) *Metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"play_id": playID, "symbol": symbol}

	m := &Metrics{
		Registry: reg,
		barsProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tradecore_bars_processed",
			Help:        "1m bars consumed by the exec-bar hot loop so far.",
			ConstLabels: labels,
		}),
		execBars: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tradecore_exec_bars",
			Help:        "Exec-role bar closes evaluated so far.",
			ConstLabels: labels,
		}),
		fillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tradecore_fills_total",
			Help:        "Fills by side.",
			ConstLabels: labels,
		}, []string{"side"}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tradecore_trades_total",
			Help:        "Closed trades by result (win|loss).",
			ConstLabels: labels,
		}, []string{"result"}),
		exitReasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tradecore_exit_reasons_total",
			Help:        "Closed trades by exit reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "tradecore_equity",
			Help:        "Most recently recorded equity value.",
			ConstLabels: labels,
		}),
		terminal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "tradecore_terminal_reason",
			Help:        "1 against the run's terminal reason label, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"reason"}),
	}

	reg.MustRegister(m.barsProcessed, m.execBars, m.fillsTotal, m.tradesTotal, m.exitReasons, m.equity, m.terminal)
	return m
}

// ObserveProgress folds one engine.Progress tick into the gauges.
// barsProcessed/execBars are already running totals (engine.Progress
// reports cumulative counts, not per-tick deltas), so they're gauges set
// to the latest snapshot rather than counters incremented by a delta.
func (m *Metrics) ObserveProgress(barsProcessed uint64, execBars int, equity float64) {
	m.barsProcessed.Set(float64(barsProcessed))
	m.execBars.Set(float64(execBars))
	m.equity.Set(equity)
}

// ObserveTrade records one closed trade's result and exit reason.
func (m *Metrics) ObserveTrade(t types.Trade) {
	result := "loss"
	if t.NetPnL.IsPositive() {
		result = "win"
	}
	m.tradesTotal.WithLabelValues(result).Inc()
	m.exitReasons.WithLabelValues(t.ExitReason).Inc()
}

// ObserveFill records one fill by side.
func (m *Metrics) ObserveFill(side types.OrderSide) {
	m.fillsTotal.WithLabelValues(string(side)).Inc()
}

// ObserveTerminal marks the run's terminal reason as the active series.
func (m *Metrics) ObserveTerminal(reason types.TerminalReason) {
	m.terminal.WithLabelValues(string(reason)).Set(1)
}
