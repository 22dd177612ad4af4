package validation_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/validation"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	cfg := validation.DefaultPoolConfig()
	cfg.NumWorkers = 2
	p := validation.NewPool(zap.NewNop(), cfg)
	p.Start()
	defer p.Stop()

	var completed atomic.Int64
	const jobs = 10
	for i := 0; i < jobs; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			completed.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for completed.Load() < jobs && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := completed.Load(); got != jobs {
		t.Fatalf("completed = %d, want %d", got, jobs)
	}
}

func TestPoolSubmitBeforeStartFails(t *testing.T) {
	p := validation.NewPool(zap.NewNop(), validation.DefaultPoolConfig())
	err := p.Submit(func(ctx context.Context) error { return nil })
	if err != validation.ErrPoolStopped {
		t.Fatalf("expected ErrPoolStopped, got %v", err)
	}
}
