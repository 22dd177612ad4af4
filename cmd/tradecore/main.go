// Command tradecore is the core's CLI entry point: loads a Play and an
// operational RunConfig, gates the run through preflight, executes either
// a historical backtest or a live run, and writes the resulting
// artifacts. Grounded on cmd/server/main.go's overall shape — flag
// parsing, zap logger setup, a cancellable root context, signal-driven
// graceful shutdown — narrowed from that command's PhD-level autonomous
// stack to the operations this module actually implements.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-quant/tradecore/internal/artifacts"
	"github.com/atlas-quant/tradecore/internal/barsource"
	"github.com/atlas-quant/tradecore/internal/engine"
	"github.com/atlas-quant/tradecore/internal/exchange"
	"github.com/atlas-quant/tradecore/internal/live"
	"github.com/atlas-quant/tradecore/internal/play"
	"github.com/atlas-quant/tradecore/internal/playcfg"
	"github.com/atlas-quant/tradecore/internal/preflight"
	"github.com/atlas-quant/tradecore/internal/validation"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func main() {
	fs := pflag.NewFlagSet("tradecore", pflag.ExitOnError)
	playcfg.BindFlags(fs)
	configFile := fs.String("config", "", "optional config file (yaml/json/toml) providing defaults")
	barsCSV := fs.String("bars-csv", "", "CSV file of 1m bars to seed the historical BarSource from (backtest mode)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := playcfg.Load(*configFile, fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, cfg, *barsCSV, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg playcfg.RunConfig, barsCSVPath string, logger *zap.Logger) error {
	rawPlay, err := loadPlay(cfg.PlayPath)
	if err != nil {
		return fmt.Errorf("load play: %w", err)
	}

	loaded, err := play.Load(rawPlay, logger)
	if err != nil {
		return fmt.Errorf("play.Load: %w", err)
	}

	src := barsource.NewMemoryBarSource(logger)
	if barsCSVPath != "" {
		n, err := barsource.LoadCSV(barsCSVPath, src, cfg.Symbol, bar.TF1m)
		if err != nil {
			return fmt.Errorf("load bars csv: %w", err)
		}
		logger.Info("seeded historical bars", zap.Int("bars", n), zap.String("path", barsCSVPath))
	}

	preflightReport, err := preflight.Run(ctx, src, loaded.Play, cfg.Symbol, cfg.WindowStartMs, cfg.WindowEndMs, preflight.DefaultOptions(), logger)
	if err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	writer := artifacts.NewWriter(cfg.ExportRoot, logger)
	playHash, err := artifacts.PlayHash(loaded.Play)
	if err != nil {
		return fmt.Errorf("play hash: %w", err)
	}
	runID := artifacts.RunID(playHash, cfg.Symbol, cfg.WindowStartMs, cfg.WindowEndMs)
	execTF := string(loaded.Play.TFMapping.TF(loaded.Play.ExecRole))

	if !preflightReport.Pass {
		logger.Error("preflight failed", zap.Any("failure", preflightReport.Failure))
		if err := writer.WritePreflightOnly(loaded.Play.ID, cfg.Symbol, execTF, cfg.WindowStartMs, cfg.WindowEndMs, runID, preflightReport); err != nil {
			return fmt.Errorf("write preflight report: %w", err)
		}
		return fmt.Errorf("preflight: %s", preflightReport.Failure)
	}

	if cfg.ValidationEnabled {
		if err := runValidation(ctx, loaded, src, cfg, logger); err != nil {
			return fmt.Errorf("validation: %w", err)
		}
	}

	if cfg.Live {
		return runLive(ctx, loaded, cfg, logger)
	}
	return runBacktest(ctx, loaded, src, cfg, writer, preflightReport, runID, execTF, logger)
}

func runBacktest(ctx context.Context, loaded *play.Loaded, src barsource.BarSource, cfg playcfg.RunConfig, writer *artifacts.Writer, preflightReport *preflight.Report, runID, execTF string, logger *zap.Logger) error {
	ex := exchange.New(cfg.Symbol, loaded.Play.Risk, logger)
	e := engine.New(loaded, ex, cfg.Symbol, logger)

	metrics := artifacts.NewMetrics(loaded.Play.ID, cfg.Symbol)

	result, err := e.Run(ctx, src, cfg.WindowStartMs, cfg.WindowEndMs)
	if err != nil {
		return fmt.Errorf("engine run: %w", err)
	}

	for _, t := range result.Trades {
		metrics.ObserveTrade(t)
	}
	for _, f := range result.Fills {
		metrics.ObserveFill(f.Side)
	}
	metrics.ObserveTerminal(result.Terminal)
	if len(result.Equity) > 0 {
		metrics.ObserveProgress(result.BarsProcessed, result.ExecBars, result.Equity[len(result.Equity)-1].Equity.InexactFloat64())
	}

	manifest, err := artifacts.BuildManifest(loaded.Play, cfg.Symbol, cfg.WindowStartMs, cfg.WindowEndMs, result, nowUnixMs())
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}

	if err := writer.WriteRun(loaded.Play.ID, cfg.Symbol, execTF, cfg.WindowStartMs, cfg.WindowEndMs, manifest, preflightReport, result); err != nil {
		return fmt.Errorf("write run artifacts: %w", err)
	}

	logger.Info("backtest complete",
		zap.Int("trades", len(result.Trades)),
		zap.Uint64("bars_processed", result.BarsProcessed),
		zap.String("terminal", string(result.Terminal)),
		zap.String("run_id", runID),
	)
	return nil
}

// runLive brings up the ambient monitor endpoint and then fails, since no
// in-tree package implements a concrete exchange/broker LiveTransport —
// that adapter is deployment-specific and deliberately outside this
// module's scope (spec.md names the LiveTransport contract, not a venue
// implementation). A deployment wires its own transport and constructs
// live.NewRunner directly; this command only proves the monitor and
// config plumbing work end to end.
func runLive(ctx context.Context, loaded *play.Loaded, cfg playcfg.RunConfig, logger *zap.Logger) error {
	monitor := setupMonitor(logger, cfg.MonitorAddr)
	logger.Info("live monitor listening", zap.String("addr", cfg.MonitorAddr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer monitor.Stop(shutdownCtx)

	return fmt.Errorf("live mode requires a concrete LiveTransport wired by the deployment, none configured for %s", cfg.Symbol)
}

func runValidation(ctx context.Context, loaded *play.Loaded, src barsource.BarSource, cfg playcfg.RunConfig, logger *zap.Logger) error {
	var featureSpecs []types.FeatureSpec
	for _, specs := range loaded.Play.Features {
		featureSpecs = append(featureSpecs, specs...)
	}

	vcfg := validation.Config{
		FeatureSpecs: featureSpecs,
		RealData: &validation.RealDataConfig{
			Source:    src,
			Symbol:    cfg.Symbol,
			Timeframe: string(bar.TF1m),
			StartMs:   cfg.WindowStartMs,
			EndMs:     cfg.WindowEndMs,
		},
	}

	report, err := validation.Run(ctx, vcfg)
	if err != nil {
		return err
	}
	if !report.Pass {
		return fmt.Errorf("validation suite failed")
	}
	logger.Info("validation suite passed")
	return nil
}

// loadPlay reads a Play from a JSON document at path. spec.md keeps the
// nested Play/RuleNode YAML grammar itself out of scope, so this command
// takes the already-structured form directly; decimal.Decimal's own
// MarshalJSON/UnmarshalJSON make stdlib encoding/json sufficient here
// without any intermediate conversion layer.
func loadPlay(path string) (types.Play, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Play{}, fmt.Errorf("read %q: %w", path, err)
	}
	var p types.Play
	if err := json.Unmarshal(data, &p); err != nil {
		return types.Play{}, fmt.Errorf("parse %q: %w", path, err)
	}
	return p, nil
}

func nowUnixMs() int64 {
	return time.Now().UnixMilli()
}

// setupMonitor wires an internal/live.Monitor for a live run so external
// reconciliation tooling can watch Runner state transitions and events.
func setupMonitor(logger *zap.Logger, addr string) *live.Monitor {
	m := live.NewMonitor(logger, addr)
	m.Start()
	return m
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
