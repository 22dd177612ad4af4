package playcfg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/atlas-quant/tradecore/internal/playcfg"
)

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	playcfg.BindFlags(fs)
	return fs
}

func TestLoadAppliesDefaults(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse([]string{"--play", "strategy.yaml", "--symbol", "BTCUSDT"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := playcfg.Load("", fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ExportRoot != "./runs" {
		t.Errorf("ExportRoot = %q, want ./runs", cfg.ExportRoot)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.ReconciliationPeriod != 30*time.Second {
		t.Errorf("ReconciliationPeriod = %v, want 30s", cfg.ReconciliationPeriod)
	}
	if !cfg.ValidationEnabled {
		t.Error("ValidationEnabled = false, want true by default")
	}
	if cfg.PlayPath != "strategy.yaml" || cfg.Symbol != "BTCUSDT" {
		t.Errorf("PlayPath/Symbol = %q/%q, want strategy.yaml/BTCUSDT", cfg.PlayPath, cfg.Symbol)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := playcfg.Load("", fs); err == nil {
		t.Fatal("expected error for missing play_path/symbol, got nil")
	}
}

func TestLoadRejectsInvertedWindow(t *testing.T) {
	fs := newFlagSet()
	err := fs.Parse([]string{
		"--play", "strategy.yaml",
		"--symbol", "BTCUSDT",
		"--window-start-ms", "1000",
		"--window-end-ms", "500",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := playcfg.Load("", fs); err == nil {
		t.Fatal("expected error for window_end_ms <= window_start_ms, got nil")
	}
}

func TestLoadEnvVarOverridesDefault(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse([]string{"--play", "strategy.yaml", "--symbol", "BTCUSDT"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	t.Setenv("TRADECORE_LOG_LEVEL", "debug")

	cfg, err := playcfg.Load("", fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from TRADECORE_LOG_LEVEL", cfg.LogLevel)
	}
}

func TestLoadFlagOverridesEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "run.yaml")
	contents := "log_level: warn\nexport_root: /from/file\n"
	if err := os.WriteFile(configFile, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TRADECORE_LOG_LEVEL", "debug")

	fs := newFlagSet()
	err := fs.Parse([]string{
		"--play", "strategy.yaml",
		"--symbol", "BTCUSDT",
		"--log-level", "error",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := playcfg.Load(configFile, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (flag beats env and file)", cfg.LogLevel)
	}
	if cfg.ExportRoot != "/from/file" {
		t.Errorf("ExportRoot = %q, want /from/file (file beats default, flag unset)", cfg.ExportRoot)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	fs := newFlagSet()
	if err := fs.Parse([]string{"--play", "strategy.yaml", "--symbol", "BTCUSDT"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := playcfg.Load("/no/such/file.yaml", fs); err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}
