package artifacts_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/artifacts"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func TestMetricsIndependentRegistries(t *testing.T) {
	m1 := artifacts.NewMetrics("play-a", "BTCUSDT")
	m2 := artifacts.NewMetrics("play-a", "ETHUSDT")

	m1.ObserveTrade(types.Trade{NetPnL: decimal.NewFromInt(5), ExitReason: "take_profit"})
	m1.ObserveFill(types.OrderSideBuy)
	m1.ObserveTerminal(types.TerminalManualStop)
	m1.ObserveProgress(10, 2, 10_005)

	families, err := m1.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}

	if _, err := m2.Registry.Gather(); err != nil {
		t.Fatalf("expected a second independent registry to gather without conflict: %v", err)
	}
}
