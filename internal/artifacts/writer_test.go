package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/artifacts"
	"github.com/atlas-quant/tradecore/internal/engine"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func TestWriterWriteRunLayoutAndFiles(t *testing.T) {
	root := t.TempDir()
	w := artifacts.NewWriter(root, nil)

	p := samplePlay()
	result := &engine.Result{
		Trades: []types.Trade{
			{TradeID: 1, Symbol: "BTCUSDT", Side: types.OrderSideBuy,
				EntryPrice: decimal.NewFromInt(100), ExitPrice: decimal.NewFromInt(110),
				SizeQuote: decimal.NewFromInt(1000), Leverage: decimal.NewFromInt(1),
				RealizedPnL: decimal.NewFromInt(10), NetPnL: decimal.NewFromInt(9),
				ExitReason: "take_profit"},
		},
		Equity: []types.EquityPoint{
			{TsCloseMs: 0, Equity: decimal.NewFromInt(10_000)},
			{TsCloseMs: 60_000, Equity: decimal.NewFromInt(10_009)},
		},
		Terminal: types.TerminalManualStop,
	}

	manifest, err := artifacts.BuildManifest(p, "BTCUSDT", 0, 60_000, result, 1)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}

	if err := w.WriteRun(p.ID, "BTCUSDT", string(p.TFMapping.TF(p.ExecRole)), 0, 60_000, manifest, nil, result); err != nil {
		t.Fatalf("WriteRun: %v", err)
	}

	dir := w.RunDir(p.ID, "BTCUSDT", string(p.TFMapping.TF(p.ExecRole)), 0, 60_000, manifest.RunID)
	for _, name := range []string{"trades.parquet", "equity.parquet", "run_manifest.json", "summary.json"} {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
		if fi.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", name)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "preflight_report.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no preflight_report.json when none was supplied, got err=%v", err)
	}
}

func TestWriterRunDirDeterministic(t *testing.T) {
	w := artifacts.NewWriter(t.TempDir(), nil)
	d1 := w.RunDir("play-a", "BTCUSDT", "1m", 0, 60_000, "abc123")
	d2 := w.RunDir("play-a", "BTCUSDT", "1m", 0, 60_000, "abc123")
	if d1 != d2 {
		t.Fatalf("expected identical run directories for identical inputs, got %q and %q", d1, d2)
	}
}
