package barsource_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/pkg/bar"
)

func TestLoadCSVSeedsBars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")
	contents := "ts_close_ms,open,high,low,close,volume\n" +
		"60000,100,101,99,100.5,10\n" +
		"120000,100.5,102,100,101.5,12\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	src := barsource.NewMemoryBarSource(zap.NewNop())
	n, err := barsource.LoadCSV(path, src, "BTCUSDT", bar.TF1m)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}

	minTs, maxTs, ok := src.Coverage(nil, "BTCUSDT", bar.TF1m)
	if !ok {
		t.Fatal("expected coverage after LoadCSV")
	}
	if minTs != 60000 || maxTs != 120000 {
		t.Fatalf("coverage = [%d,%d], want [60000,120000]", minTs, maxTs)
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	src := barsource.NewMemoryBarSource(zap.NewNop())
	if _, err := barsource.LoadCSV("/no/such/file.csv", src, "BTCUSDT", bar.TF1m); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadCSVMalformedRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")
	contents := "ts_close_ms,open,high,low,close,volume\n" + "not_a_number,100,101,99,100.5,10\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	src := barsource.NewMemoryBarSource(zap.NewNop())
	if _, err := barsource.LoadCSV(path, src, "BTCUSDT", bar.TF1m); err == nil {
		t.Fatal("expected error for malformed row, got nil")
	}
}
