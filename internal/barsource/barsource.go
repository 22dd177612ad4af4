// Package barsource defines the BarSource contract the core consumes for
// historical and live bar data (spec.md §6.1) plus an in-memory reference
// implementation. Grounded on donor's internal/data/store.go (mutex-
// protected per-(symbol,timeframe) cache, zap-logged, context-aware
// reads), generalized from OHLCV+time.Time to the module's own
// bar.Bar+millisecond-timestamp model and narrowed to the three-method
// BarSource contract instead of a full on-disk store.
package barsource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// FillReport summarizes one BarSource.Fill call (spec.md §6.1).
type FillReport struct {
	RequestedStartMs int64
	RequestedEndMs   int64
	BarsAdded        int
}

// BarSource is the core's only dependency on historical/live data.
// fetch is inclusive-exclusive on [startMs, endMs) and returns closed
// bars only, strictly increasing, no duplicates (spec.md §6.1).
type BarSource interface {
	Fetch(ctx context.Context, symbol string, tf bar.Timeframe, startMs, endMs int64) ([]bar.Bar, error)
	Coverage(ctx context.Context, symbol string, tf bar.Timeframe) (minTsMs, maxTsMs int64, ok bool)
}

// Filler is implemented by a BarSource that can backfill missing ranges.
// Preflight's auto_sync heal loop (spec.md §4.8 step 5) uses this only
// when the concrete BarSource supports it.
type Filler interface {
	Fill(ctx context.Context, symbol string, tf bar.Timeframe, startMs, endMs int64) (FillReport, error)
}

type seriesKey struct {
	symbol string
	tf     bar.Timeframe
}

// MemoryBarSource is a reference, test/demo-oriented BarSource backed by
// sorted in-memory slices, one per (symbol, tf) pair.
type MemoryBarSource struct {
	logger *zap.Logger
	mu     sync.RWMutex
	series map[seriesKey][]bar.Bar
}

// NewMemoryBarSource constructs an empty in-memory BarSource.
func NewMemoryBarSource(logger *zap.Logger) *MemoryBarSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBarSource{logger: logger.Named("barsource-memory"), series: make(map[seriesKey][]bar.Bar)}
}

// Seed replaces the stored bars for (symbol, tf), sorting by close time
// and rejecting any bar that fails the §3 OHLC invariant or duplicates
// an existing timestamp.
func (m *MemoryBarSource) Seed(symbol string, tf bar.Timeframe, bars []bar.Bar) error {
	sorted := append([]bar.Bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampCloseMs < sorted[j].TimestampCloseMs })
	for i, b := range sorted {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("barsource: %s %s bar %d: %w", symbol, tf, i, err)
		}
		if i > 0 && sorted[i-1].TimestampCloseMs == b.TimestampCloseMs {
			return fmt.Errorf("barsource: %s %s: duplicate timestamp %d", symbol, tf, b.TimestampCloseMs)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[seriesKey{symbol, tf}] = sorted
	m.logger.Debug("seeded series", zap.String("symbol", symbol), zap.String("tf", string(tf)), zap.Int("bars", len(sorted)))
	return nil
}

// Fetch returns the closed bars in [startMs, endMs).
func (m *MemoryBarSource) Fetch(_ context.Context, symbol string, tf bar.Timeframe, startMs, endMs int64) ([]bar.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bars := m.series[seriesKey{symbol, tf}]
	lo := sort.Search(len(bars), func(i int) bool { return bars[i].TimestampCloseMs >= startMs })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].TimestampCloseMs >= endMs })
	if lo >= hi {
		return nil, nil
	}
	out := make([]bar.Bar, hi-lo)
	copy(out, bars[lo:hi])
	return out, nil
}

// Coverage returns the stored series' min/max close timestamps.
func (m *MemoryBarSource) Coverage(_ context.Context, symbol string, tf bar.Timeframe) (int64, int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bars := m.series[seriesKey{symbol, tf}]
	if len(bars) == 0 {
		return 0, 0, false
	}
	return bars[0].TimestampCloseMs, bars[len(bars)-1].TimestampCloseMs, true
}
