// Package artifacts emits the deterministic, content-hashed run outputs
// spec.md §4.11/§6.3 names: trades, equity curve, run manifest, and the
// preflight report, laid out under a deterministic directory keyed by
// play id / symbol / exec timeframe / window / run id. Grounded on
// donor's internal/backtester/metrics.go for the performance-statistics
// half (internal/artifacts/summary.go) and on
// NimbleMarkets-dbn-go/internal/file/parquet_writer.go for the columnar
// trades/equity writers, since the donor itself never serializes a run
// to disk — it only computes in-memory PerformanceMetrics.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/engine"
	"github.com/atlas-quant/tradecore/internal/preflight"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

// Writer emits one run's artifacts under ExportRoot (spec.md §6.3).
type Writer struct {
	logger     *zap.Logger
	exportRoot string
}

// NewWriter constructs a Writer rooted at exportRoot.
func NewWriter(exportRoot string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger.Named("artifacts"), exportRoot: exportRoot}
}

// RunDir returns the deterministic directory for one run, matching
// spec.md §6.3's layout exactly:
// <export_root>/<play_id>/<symbol>/<exec_tf>/<window_start>_<window_end>_<run_id>/
func (w *Writer) RunDir(playID, symbol, execTF string, windowStartMs, windowEndMs int64, runID string) string {
	leaf := fmt.Sprintf("%d_%d_%s", windowStartMs, windowEndMs, runID)
	return filepath.Join(w.exportRoot, playID, symbol, execTF, leaf)
}

// WritePreflightOnly writes only preflight_report.json, for the case
// spec.md §7 names explicitly: a preflight failure aborts before any
// other artifact directory is created.
func (w *Writer) WritePreflightOnly(playID, symbol, execTF string, windowStartMs, windowEndMs int64, runID string, report *preflight.Report) error {
	dir := w.RunDir(playID, symbol, execTF, windowStartMs, windowEndMs, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifacts: mkdir %s: %w", dir, err)
	}
	return writeJSON(filepath.Join(dir, "preflight_report.json"), report)
}

// WriteRun emits the full artifact set for a finished (or partially
// finished, per a RuntimeError) run: trades, equity, run manifest, and
// the preflight report that gated it. result may be nil if the run
// aborted before the engine produced anything, in which case trades and
// equity are written empty and the manifest's terminal reason is left at
// its zero value — the caller is expected to have recorded the actual
// RuntimeError elsewhere (spec.md §7: runtime errors write a partial
// manifest with a failure reason through a caller-supplied override).
func (w *Writer) WriteRun(playID, symbol, execTF string, windowStartMs, windowEndMs int64, manifest types.RunManifest, preflightReport *preflight.Report, result *engine.Result) error {
	dir := w.RunDir(playID, symbol, execTF, windowStartMs, windowEndMs, manifest.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifacts: mkdir %s: %w", dir, err)
	}

	var trades []types.Trade
	var equity []types.EquityPoint
	if result != nil {
		trades = result.Trades
		equity = result.Equity
	}

	if err := WriteTradesParquet(filepath.Join(dir, "trades.parquet"), trades); err != nil {
		return err
	}
	if err := WriteEquityParquet(filepath.Join(dir, "equity.parquet"), equity); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "run_manifest.json"), manifest); err != nil {
		return err
	}
	if preflightReport != nil {
		if err := writeJSON(filepath.Join(dir, "preflight_report.json"), preflightReport); err != nil {
			return err
		}
	}

	summary := Summarize(trades, equity, manifest.InitialEquity, bar.BarsPerYear(bar.Timeframe(manifest.ExecTF)))
	if err := writeJSON(filepath.Join(dir, "summary.json"), summary); err != nil {
		return err
	}

	w.logger.Info("wrote run artifacts",
		zap.String("dir", dir),
		zap.String("run_id", manifest.RunID),
		zap.Int("trades", len(trades)),
		zap.Int("equity_points", len(equity)),
		zap.String("terminal_reason", string(manifest.TerminalReason)))

	return nil
}

// writeJSON marshals v with stable key ordering (encoding/json sorts map
// keys and preserves struct field declaration order on its own) and
// writes it with a trailing newline, matching the donor's general
// file-output convention of ending text files in a newline.
func writeJSON(path string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("artifacts: marshal %s: %w", filepath.Base(path), err)
	}
	body = append(body, '\n')
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("artifacts: write %s: %w", path, err)
	}
	return nil
}
