// Package live implements the engine's live-execution surface: the
// LiveTransport contract spec.md §6.2 consumes, a reconnecting state
// machine wrapping it, and a minimal operator-facing event monitor.
package live

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// BarOrTick is a subscription event: either a closed bar or an
// intra-bar price tick, never both (spec.md §6.2's Stream<BarClose |
// PriceTick>).
type BarOrTick struct {
	Symbol string
	TF     bar.Timeframe
	Bar    *bar.Bar // set for a bar close
	Price  decimal.Decimal
	TsMs   int64 // set for a price tick, Bar is nil
}

// WalletSnapshot is the account-level balance state a transport reports
// back for reconciliation (spec.md §6.2 balance()).
type WalletSnapshot struct {
	WalletBalance decimal.Decimal
	MarginLocked  decimal.Decimal
	AsOfMs        int64
}

// LiveTransport is the exchange/broker boundary the live runner drives
// (spec.md §6.2). Any venue adapter implements this; the runner never
// talks to a concrete exchange SDK directly.
type LiveTransport interface {
	Subscribe(ctx context.Context, symbol string, tfs []bar.Timeframe) (<-chan BarOrTick, error)
	Submit(ctx context.Context, order types.Order) (orderID int64, err error)
	Cancel(ctx context.Context, orderID int64) error
	Positions(ctx context.Context, symbol string) (*types.Position, error)
	Balance(ctx context.Context) (WalletSnapshot, error)
}
