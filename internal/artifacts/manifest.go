package artifacts

import (
	"fmt"
	"time"

	"github.com/atlas-quant/tradecore/internal/engine"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func unixMsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// pipelineVersion identifies the build of this core producing the
// artifact; bumped whenever a change could alter deterministic output
// for identical inputs (e.g. a fill/sizing formula change), never for
// purely cosmetic edits.
const pipelineVersion = "tradecore-core/1"

// intrabarPathRule documents, in the manifest itself, which deterministic
// traversal rule produced the trade/equity artifacts (spec.md §4.9):
// useful to an auditor re-deriving a run without reading the exchange
// source.
const intrabarPathRule = "sign(close-open): bullish/flat bars walk low-then-high, bearish bars walk high-then-low"

// BuildManifest assembles the deterministic run summary (spec.md §6.3).
// createdAt is accepted as a parameter rather than read from time.Now()
// here, since internal/artifacts must never call the wall clock itself
// (spec.md §4.11's determinism contract) — the caller (internal/engine's
// driver, or a cmd/tradecore wiring layer) supplies it.
func BuildManifest(play types.Play, symbol string, windowStartMs, windowEndMs int64, result *engine.Result, createdAtUnixMs int64) (types.RunManifest, error) {
	playHash, err := PlayHash(play)
	if err != nil {
		return types.RunManifest{}, fmt.Errorf("artifacts: build manifest: %w", err)
	}
	runID := RunID(playHash, symbol, windowStartMs, windowEndMs)

	warmup := make(map[string]int, len(play.WarmupBarsByRole))
	for role, n := range play.WarmupBarsByRole {
		warmup[string(role)] = n
	}
	delay := make(map[string]int, len(play.DelayBarsByRole))
	for role, n := range play.DelayBarsByRole {
		delay[string(role)] = n
	}

	var terminal types.TerminalReason
	if result != nil {
		terminal = result.Terminal
	}

	return types.RunManifest{
		PlayHash:         playHash,
		PipelineVersion:  pipelineVersion,
		RunID:            runID,
		Symbol:           symbol,
		ExecTF:           string(play.TFMapping.TF(play.ExecRole)),
		WindowStartMs:    windowStartMs,
		WindowEndMs:      windowEndMs,
		WarmupByRole:     warmup,
		DelayByRole:      delay,
		FeeModel:         play.Risk.Fees,
		SlippageBps:      play.Risk.SlippageBps,
		Leverage:         play.Risk.MaxLeverage,
		InitialEquity:    play.Risk.InitialEquity,
		TerminalReason:   terminal,
		IntrabarPathRule: intrabarPathRule,
		CreatedAt:        unixMsToTime(createdAtUnixMs),
	}, nil
}
