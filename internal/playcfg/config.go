// Package playcfg binds the run configuration that wraps a Play
// (spec.md §6.4) — the operational settings a run needs beyond the Play
// schema itself: which Play/data/export paths to use, the run window,
// and the ambient logging/observability knobs — from flags, environment
// variables, and an optional config file, using
// github.com/spf13/viper as the key/value binding layer. The Play schema
// grammar itself stays out of scope per spec.md; a RunConfig only names
// where to find a Play, not what's in one.
//
// No donor file wires viper despite listing it in go.mod, so there is no
// in-pack implementation to ground this on directly; the flag/env/file
// precedence order and the Bind* calls below follow viper's own
// documented idiom (flags > env > config file > defaults), the same
// pattern spf13/cobra-based CLIs across the ecosystem use.
package playcfg

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RunConfig is the operational configuration for one invocation of the
// core: which Play to load, what symbol/window to run it over, where to
// read bars from and write artifacts to, and the ambient logging/live
// knobs.
type RunConfig struct {
	PlayPath   string `mapstructure:"play_path"`
	Symbol     string `mapstructure:"symbol"`
	ExportRoot string `mapstructure:"export_root"`

	WindowStartMs int64 `mapstructure:"window_start_ms"`
	WindowEndMs   int64 `mapstructure:"window_end_ms"`

	LogLevel string `mapstructure:"log_level"`

	Live                 bool          `mapstructure:"live"`
	MonitorAddr          string        `mapstructure:"monitor_addr"`
	ReconciliationPeriod time.Duration `mapstructure:"reconciliation_period"`

	ValidationEnabled bool `mapstructure:"validation_enabled"`
}

// defaults mirrors what a zero-configured run should do: backtest mode,
// no live monitor, info logging, validation on.
func defaults() RunConfig {
	return RunConfig{
		ExportRoot:           "./runs",
		LogLevel:             "info",
		MonitorAddr:          "127.0.0.1:8090",
		ReconciliationPeriod: 30 * time.Second,
		ValidationEnabled:    true,
	}
}

// BindFlags registers the RunConfig's flags onto fs, for a caller (e.g.
// cmd/tradecore) to add to its own flag set before calling Load.
func BindFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.String("play", "", "path to the play definition file")
	fs.String("symbol", "", "symbol to run")
	fs.String("export-root", d.ExportRoot, "root directory artifacts are written under")
	fs.Int64("window-start-ms", 0, "run window start, inclusive, exec-bar close ms")
	fs.Int64("window-end-ms", 0, "run window end, exclusive, exec-bar close ms")
	fs.String("log-level", d.LogLevel, "debug, info, warn, or error")
	fs.Bool("live", false, "run against a live transport instead of a historical BarSource")
	fs.String("monitor-addr", d.MonitorAddr, "address the live monitor's health/websocket endpoint binds to")
	fs.Duration("reconciliation-period", d.ReconciliationPeriod, "live runner positions/balance reconciliation interval, 0 disables")
	fs.Bool("validation-enabled", d.ValidationEnabled, "run the validation suite before accepting a Play")
}

// Load builds a RunConfig from, in increasing precedence: built-in
// defaults, an optional config file (configPath, empty to skip),
// TRADECORE_-prefixed environment variables, then fs's parsed flags.
func Load(configPath string, fs *pflag.FlagSet) (RunConfig, error) {
	v := viper.New()

	d := defaults()
	v.SetDefault("export_root", d.ExportRoot)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("monitor_addr", d.MonitorAddr)
	v.SetDefault("reconciliation_period", d.ReconciliationPeriod)
	v.SetDefault("validation_enabled", d.ValidationEnabled)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return RunConfig{}, fmt.Errorf("playcfg: read config %q: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("tradecore")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := bindFlagAliases(v, fs); err != nil {
			return RunConfig{}, fmt.Errorf("playcfg: bind flags: %w", err)
		}
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RunConfig{}, fmt.Errorf("playcfg: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// flagAliases maps each pflag name registered in BindFlags (hyphenated,
// the CLI convention) onto the viper/mapstructure key RunConfig's fields
// declare (underscored, matching the config-file convention), since
// viper.BindPFlags alone registers flags under their literal, hyphenated
// names.
var flagAliases = map[string]string{
	"play":                  "play_path",
	"symbol":                "symbol",
	"export-root":           "export_root",
	"window-start-ms":       "window_start_ms",
	"window-end-ms":         "window_end_ms",
	"log-level":             "log_level",
	"live":                  "live",
	"monitor-addr":          "monitor_addr",
	"reconciliation-period": "reconciliation_period",
	"validation-enabled":    "validation_enabled",
}

func bindFlagAliases(v *viper.Viper, fs *pflag.FlagSet) error {
	for flagName, key := range flagAliases {
		f := fs.Lookup(flagName)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func (c RunConfig) validate() error {
	if c.PlayPath == "" {
		return fmt.Errorf("playcfg: play_path is required")
	}
	if c.Symbol == "" {
		return fmt.Errorf("playcfg: symbol is required")
	}
	if c.WindowEndMs > 0 && c.WindowEndMs <= c.WindowStartMs {
		return fmt.Errorf("playcfg: window_end_ms (%d) must be after window_start_ms (%d)", c.WindowEndMs, c.WindowStartMs)
	}
	return nil
}
