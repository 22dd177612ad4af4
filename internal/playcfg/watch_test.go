package playcfg_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/playcfg"
)

func TestNewWatcherRequiresConfigPath(t *testing.T) {
	if _, err := playcfg.NewWatcher("", nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty configPath, got nil")
	}
}

func TestNewWatcherReadsInitialConfig(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "run.yaml")
	contents := "play_path: strategy.yaml\nsymbol: BTCUSDT\nlog_level: warn\n"
	if err := os.WriteFile(configFile, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w, err := playcfg.NewWatcher(configFile, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if w == nil {
		t.Fatal("NewWatcher returned nil Watcher with nil error")
	}
}

func TestNewWatcherMissingFile(t *testing.T) {
	if _, err := playcfg.NewWatcher("/no/such/file.yaml", nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}
