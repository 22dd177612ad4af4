package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// State is one of the runner's five states (spec.md §6.2): Stopped ->
// Starting -> Running <-> Reconnecting -> Stopping.
type State string

const (
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateReconnecting State = "reconnecting"
	StateStopping     State = "stopping"
)

// BackoffConfig controls the runner's reconnect delay growth (spec.md
// §6.2's "exponential-backoff reconnection"). Grounded on the donor's
// orchestrator mutex/stopCh Start-Stop shape, generalized here with an
// explicit growing delay between reconnect attempts rather than the
// donor's immediate-restart loops.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig doubles the delay each attempt, capped at 30s.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Initial: 500 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2}
}

func (c BackoffConfig) next(attempt int) time.Duration {
	d := c.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d > c.Max {
			return c.Max
		}
	}
	return d
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Symbol               string
	Timeframes           []bar.Timeframe
	Backoff              BackoffConfig
	ReconciliationPeriod time.Duration // periodic positions/balance poll, 0 disables
}

// EventHandler receives the runner's stream of bar/tick events. OnEvent
// runs synchronously on the runner's own goroutine, so a slow handler
// delays delivery of the next event; a handler that must do real work
// should hand off to its own queue.
type EventHandler interface {
	OnEvent(BarOrTick)
	OnReconcile(WalletSnapshot)
	OnStateChange(from, to State)
}

// Runner drives one LiveTransport subscription through the
// Stopped->Starting->Running<->Reconnecting->Stopping state machine,
// reconnecting with exponential backoff on transport failure and
// periodically reconciling positions/balance against the transport's own
// view (spec.md §6.2).
type Runner struct {
	logger    *zap.Logger
	transport LiveTransport
	cfg       RunnerConfig
	handler   EventHandler

	mu    sync.RWMutex
	state State

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner builds a stopped Runner. Call Start to begin.
func NewRunner(logger *zap.Logger, transport LiveTransport, cfg RunnerConfig, handler EventHandler) *Runner {
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return &Runner{logger: logger, transport: transport, cfg: cfg, handler: handler, state: StateStopped}
}

// State returns the runner's current state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	if prev != s {
		r.logger.Info("live runner state transition", zap.String("from", string(prev)), zap.String("to", string(s)))
		if r.handler != nil {
			r.handler.OnStateChange(prev, s)
		}
	}
}

// Start transitions Stopped -> Starting -> Running and begins the
// subscribe/reconnect loop on its own goroutine. Returns an error if the
// runner isn't currently Stopped.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateStopped {
		r.mu.Unlock()
		return fmt.Errorf("live: runner already %s", r.state)
	}
	r.mu.Unlock()

	r.setState(StateStarting)

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(runCtx)

	if r.cfg.ReconciliationPeriod > 0 {
		go r.reconcileLoop(runCtx)
	}

	return nil
}

// Stop transitions to Stopping and waits for the run loop to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.state == StateStopped || r.state == StateStopping {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.setState(StateStopping)
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
	r.setState(StateStopped)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stream, err := r.transport.Subscribe(ctx, r.cfg.Symbol, r.cfg.Timeframes)
		if err != nil {
			r.logger.Warn("live transport subscribe failed", zap.Error(err), zap.Int("attempt", attempt))
			if !r.waitBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		r.setState(StateRunning)
		attempt = 0

		if r.consume(ctx, stream) {
			return // context cancelled, clean shutdown
		}

		// stream closed unexpectedly: reconnect with backoff.
		r.setState(StateReconnecting)
		if !r.waitBackoff(ctx, attempt) {
			return
		}
		attempt++
	}
}

// consume drains stream until it closes or ctx is cancelled. Returns true
// if the caller should exit the outer loop entirely (ctx cancelled).
func (r *Runner) consume(ctx context.Context, stream <-chan BarOrTick) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case ev, ok := <-stream:
			if !ok {
				return false
			}
			if r.handler != nil {
				r.handler.OnEvent(ev)
			}
		}
	}
}

func (r *Runner) waitBackoff(ctx context.Context, attempt int) bool {
	delay := r.cfg.Backoff.next(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconciliationPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := r.transport.Balance(ctx)
			if err != nil {
				r.logger.Warn("live reconciliation balance fetch failed", zap.Error(err))
				continue
			}
			if r.handler != nil {
				r.handler.OnReconcile(snap)
			}
		}
	}
}
