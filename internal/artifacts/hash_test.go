package artifacts_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atlas-quant/tradecore/internal/artifacts"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func samplePlay() types.Play {
	return types.Play{
		ID:             "play-a",
		SymbolUniverse: []string{"BTCUSDT"},
		TFMapping:      types.TFMapping{LowTF: bar.TF1m, MedTF: bar.TF5m, HighTF: bar.TF15m},
		ExecRole:       types.RoleLow,
		Risk: types.RiskModel{
			InitialEquity: decimal.NewFromInt(10_000),
		},
	}
}

func TestPlayHashDeterministic(t *testing.T) {
	p := samplePlay()

	h1, err := artifacts.PlayHash(p)
	if err != nil {
		t.Fatalf("PlayHash: %v", err)
	}
	h2, err := artifacts.PlayHash(p)
	if err != nil {
		t.Fatalf("PlayHash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hashes for identical plays, got %q and %q", h1, h2)
	}

	p2 := samplePlay()
	p2.ID = "play-b"
	h3, err := artifacts.PlayHash(p2)
	if err != nil {
		t.Fatalf("PlayHash: %v", err)
	}
	if h1 == h3 {
		t.Fatal("expected different hashes for differently-identified plays")
	}
}

func TestRunIDDeterministic(t *testing.T) {
	id1 := artifacts.RunID("deadbeef", "BTCUSDT", 1000, 2000)
	id2 := artifacts.RunID("deadbeef", "BTCUSDT", 1000, 2000)
	if id1 != id2 {
		t.Fatalf("expected identical run ids for identical inputs, got %q and %q", id1, id2)
	}

	id3 := artifacts.RunID("deadbeef", "ETHUSDT", 1000, 2000)
	if id1 == id3 {
		t.Fatal("expected a different run id for a different symbol")
	}
}
