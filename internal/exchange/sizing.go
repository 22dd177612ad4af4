package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/pkg/types"
)

// SizeEntry computes an entry order's quote notional from the play's
// sizing rule (spec.md §4.9 Sizing). stopDistancePct is the bracket
// stop-loss distance as a percentage of price (e.g. 2 for 2%); it is
// only consulted by the risk_based model. The donor's PositionSizer
// (internal/sizing/position_sizer.go) additionally blends in Kelly
// fraction, regime, and correlation adjustments — dropped here per
// DESIGN.md's sizing-richness decision in favor of the three explicit
// models spec.md names.
func SizeEntry(risk types.RiskModel, equity, stopDistancePct decimal.Decimal) (decimal.Decimal, error) {
	var notional decimal.Decimal
	switch risk.Sizing.Model {
	case types.SizingPercentEquity:
		notional = equity.Mul(risk.Sizing.Value)
	case types.SizingRiskBased:
		if stopDistancePct.IsZero() {
			return decimal.Zero, fmt.Errorf("exchange: risk_based sizing requires a nonzero stop distance")
		}
		riskAmount := equity.Mul(risk.Sizing.Value)
		notional = riskAmount.Div(stopDistancePct.Div(hundred)).Mul(leverageOrOne(risk.MaxLeverage))
	case types.SizingFixedNotional:
		notional = risk.Sizing.Value
	default:
		return decimal.Zero, fmt.Errorf("exchange: unknown sizing model %q", risk.Sizing.Model)
	}

	if notional.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("exchange: computed notional %s is not positive", notional)
	}
	if risk.MinTradeNotional.IsPositive() && notional.LessThan(risk.MinTradeNotional) {
		return decimal.Zero, fmt.Errorf("exchange: computed notional %s below min_trade_notional %s", notional, risk.MinTradeNotional)
	}
	maxNotional := equity.Mul(leverageOrOne(risk.MaxLeverage))
	if notional.GreaterThan(maxNotional) {
		notional = maxNotional
	}
	return notional, nil
}

func leverageOrOne(l decimal.Decimal) decimal.Decimal {
	if l.LessThanOrEqual(decimal.Zero) {
		return one
	}
	return l
}
