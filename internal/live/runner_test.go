package live_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/live"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

type fakeTransport struct {
	mu           sync.Mutex
	subscribeErr error
	stream       chan live.BarOrTick
	balance      live.WalletSnapshot
	subscribes   int
}

func (f *fakeTransport) Subscribe(ctx context.Context, symbol string, tfs []bar.Timeframe) (<-chan live.BarOrTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.stream, nil
}

func (f *fakeTransport) Submit(ctx context.Context, order types.Order) (int64, error) { return 1, nil }
func (f *fakeTransport) Cancel(ctx context.Context, orderID int64) error              { return nil }
func (f *fakeTransport) Positions(ctx context.Context, symbol string) (*types.Position, error) {
	return nil, nil
}
func (f *fakeTransport) Balance(ctx context.Context) (live.WalletSnapshot, error) {
	return f.balance, nil
}

type recordingHandler struct {
	events       atomic.Int64
	reconciles   atomic.Int64
	transitions  []string
	mu           sync.Mutex
}

func (h *recordingHandler) OnEvent(live.BarOrTick)                  { h.events.Add(1) }
func (h *recordingHandler) OnReconcile(live.WalletSnapshot)         { h.reconciles.Add(1) }
func (h *recordingHandler) OnStateChange(from, to live.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, string(from)+"->"+string(to))
}

func TestRunnerReachesRunningAndDeliversEvents(t *testing.T) {
	stream := make(chan live.BarOrTick, 4)
	transport := &fakeTransport{stream: stream}
	handler := &recordingHandler{}

	r := live.NewRunner(zap.NewNop(), transport, live.RunnerConfig{Symbol: "BTCUSDT", Timeframes: []bar.Timeframe{bar.TF1m}}, handler)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stream <- live.BarOrTick{Symbol: "BTCUSDT", TF: bar.TF1m, Bar: &bar.Bar{}}

	deadline := time.Now().Add(2 * time.Second)
	for r.State() != live.StateRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.State() != live.StateRunning {
		t.Fatalf("expected StateRunning, got %s", r.State())
	}

	for handler.events.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if handler.events.Load() == 0 {
		t.Fatal("expected at least one delivered event")
	}

	r.Stop()
	if r.State() != live.StateStopped {
		t.Fatalf("expected StateStopped after Stop, got %s", r.State())
	}
}

func TestRunnerReconnectsOnSubscribeFailure(t *testing.T) {
	transport := &fakeTransport{subscribeErr: errors.New("connection refused")}
	handler := &recordingHandler{}

	cfg := live.RunnerConfig{
		Symbol:     "BTCUSDT",
		Timeframes: []bar.Timeframe{bar.TF1m},
		Backoff:    live.BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
	}
	r := live.NewRunner(zap.NewNop(), transport, cfg, handler)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		transport.mu.Lock()
		n := transport.subscribes
		transport.mu.Unlock()
		if n >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 3 subscribe attempts, got %d", n)
		}
		time.Sleep(time.Millisecond)
	}

	r.Stop()
}
