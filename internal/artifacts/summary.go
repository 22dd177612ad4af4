// Performance summary, grounded on donor's
// internal/backtester/metrics.go's MetricsCalculator.Calculate: win rate,
// profit factor, total return, Sharpe/Sortino, and max drawdown, all
// computed directly off the already-finalized trades/equity slices
// (spec.md §6.3 doesn't name this artifact, but nothing forbids an
// additional reporting-only file; it never feeds back into a decision,
// so it doesn't affect the determinism contract over trades/equity/
// run_id). Reuses pkg/utils' decimal statistics helpers rather than
// reimplementing mean/stddev/Sharpe here, since that package already
// carries the donor's identical formulas forward.
package artifacts

import (
	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/pkg/types"
	"github.com/atlas-quant/tradecore/pkg/utils"
)

// Summary is a run's headline performance statistics.
type Summary struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	ProfitFactor  decimal.Decimal `json:"profit_factor"`
	TotalReturn   decimal.Decimal `json:"total_return"`
	MaxDrawdown   decimal.Decimal `json:"max_drawdown"`
	SharpeRatio   decimal.Decimal `json:"sharpe_ratio"`
	SortinoRatio  decimal.Decimal `json:"sortino_ratio"`
}

// periodsPerYearExec assumes one trading period per exec bar close and
// annualizes the same way the donor does for daily bars (252), used
// whenever the caller doesn't have a better bar.BarsPerYear figure.
const periodsPerYearExec float64 = 252

// Summarize computes a Summary from a finished run's trades and equity
// curve. Pass the exec role's annualization factor (bar.BarsPerYear(execTF))
// so Sharpe/Sortino match the run's actual bar cadence; 0 falls back to the
// donor's 252-trading-day convention.
func Summarize(trades []types.Trade, equity []types.EquityPoint, initialEquity decimal.Decimal, periodsPerYear float64) Summary {
	var s Summary
	s.TotalTrades = len(trades)
	if periodsPerYear <= 0 {
		periodsPerYear = periodsPerYearExec
	}

	pnls := make([]decimal.Decimal, 0, len(trades))
	for _, t := range trades {
		pnls = append(pnls, t.NetPnL)
		if t.NetPnL.GreaterThan(decimal.Zero) {
			s.WinningTrades++
		} else if t.NetPnL.LessThan(decimal.Zero) {
			s.LosingTrades++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = utils.CalculateWinRate(pnls)
	}
	s.ProfitFactor = utils.CalculateProfitFactor(pnls)

	if len(equity) > 0 && !initialEquity.IsZero() {
		final := equity[len(equity)-1].Equity
		s.TotalReturn = final.Sub(initialEquity).Div(initialEquity)
	}

	equityValues := make([]decimal.Decimal, len(equity))
	for i, p := range equity {
		equityValues[i] = p.Equity
	}
	s.MaxDrawdown = utils.CalculateMaxDrawdown(equityValues)

	returns := periodReturns(equityValues)
	s.SharpeRatio = utils.CalculateSharpeRatio(returns, decimal.Zero, periodsPerYear)
	s.SortinoRatio = utils.CalculateSortinoRatio(returns, decimal.Zero, periodsPerYear)

	return s
}

func periodReturns(equity []decimal.Decimal) []decimal.Decimal {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]decimal.Decimal, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev.IsZero() {
			continue
		}
		returns = append(returns, equity[i].Sub(prev).Div(prev))
	}
	return returns
}
