package live_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/internal/live"
)

func TestMonitorHealthzAndBroadcast(t *testing.T) {
	addr := "127.0.0.1:18099"
	m := live.NewMonitor(zap.NewNop(), addr)
	m.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	}()

	var resp *http.Response
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Broadcast with no websocket clients connected must not block or panic.
	m.Broadcast(live.MonitorEvent{ID: "1", Kind: "bar_close", TsMs: 1000})
}
