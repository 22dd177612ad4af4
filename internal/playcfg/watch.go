package playcfg

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watcher re-runs Load whenever configPath changes on disk and delivers
// the refreshed RunConfig to onChange. It wraps viper.WatchConfig, which
// uses fsnotify under the hood; only fields meaningful to re-read at
// runtime (export root, log level, monitor address, reconciliation
// period, validation toggle) should be treated as live by callers — the
// play path, symbol, and run window identify the run itself and
// changing them mid-run is undefined.
type Watcher struct {
	configPath string
	fs         *pflag.FlagSet
	logger     *zap.Logger
	v          *viper.Viper
}

// NewWatcher prepares a Watcher for configPath. configPath must name an
// existing, readable file; use Load directly for flag/env-only
// configuration with no file to watch.
func NewWatcher(configPath string, fs *pflag.FlagSet, logger *zap.Logger) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("playcfg: NewWatcher requires a non-empty configPath")
	}
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("playcfg: read config %q: %w", configPath, err)
	}
	if fs != nil {
		if err := bindFlagAliases(v, fs); err != nil {
			return nil, fmt.Errorf("playcfg: bind flags: %w", err)
		}
	}
	return &Watcher{configPath: configPath, fs: fs, logger: logger, v: v}, nil
}

// Watch starts watching the config file and invokes onChange with each
// successfully re-parsed RunConfig. onChange is never called for a
// change that fails to unmarshal or validate; such errors are logged and
// the previous configuration remains in effect. Watch returns
// immediately; the watch runs until the process exits, per viper's
// WatchConfig contract which exposes no stop method.
func (w *Watcher) Watch(onChange func(RunConfig)) {
	w.v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg RunConfig
		if err := w.v.Unmarshal(&cfg); err != nil {
			w.logger.Warn("playcfg: reload unmarshal failed, keeping previous config", zap.Error(err))
			return
		}
		if err := cfg.validate(); err != nil {
			w.logger.Warn("playcfg: reload produced invalid config, keeping previous config", zap.Error(err))
			return
		}
		w.logger.Info("playcfg: config reloaded", zap.String("path", w.configPath))
		onChange(cfg)
	})
	w.v.WatchConfig()
}
