package artifacts_test

import (
	"testing"

	"github.com/atlas-quant/tradecore/internal/artifacts"
	"github.com/atlas-quant/tradecore/internal/engine"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func TestBuildManifestDeterministic(t *testing.T) {
	p := samplePlay()
	result := &engine.Result{Terminal: types.TerminalManualStop}

	m1, err := artifacts.BuildManifest(p, "BTCUSDT", 1000, 2000, result, 1234)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	m2, err := artifacts.BuildManifest(p, "BTCUSDT", 1000, 2000, result, 5678)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}

	if m1.RunID != m2.RunID {
		t.Fatalf("expected run_id to be independent of createdAt, got %q vs %q", m1.RunID, m2.RunID)
	}
	if m1.PlayHash != m2.PlayHash {
		t.Fatalf("expected identical play_hash across calls, got %q vs %q", m1.PlayHash, m2.PlayHash)
	}
	if m1.CreatedAt.Equal(m2.CreatedAt) {
		t.Fatal("expected CreatedAt to vary with the supplied timestamp")
	}
	if m1.TerminalReason != types.TerminalManualStop {
		t.Fatalf("expected terminal reason to be carried from the result, got %q", m1.TerminalReason)
	}
}

func TestBuildManifestNilResult(t *testing.T) {
	p := samplePlay()
	m, err := artifacts.BuildManifest(p, "BTCUSDT", 1000, 2000, nil, 1234)
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	if m.TerminalReason != "" {
		t.Fatalf("expected zero-value terminal reason for a nil result, got %q", m.TerminalReason)
	}
}
