package bar_test

import (
	"testing"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

func TestCeilFloorToClose(t *testing.T) {
	tf := bar.TF5m
	d := bar.DurationMs(tf)

	if got := bar.FloorToClose(d*3, tf); got != d*3 {
		t.Fatalf("floor of an exact close should be itself: got %d want %d", got, d*3)
	}
	if got := bar.CeilToClose(d*3, tf); got != d*3 {
		t.Fatalf("ceil of an exact close should be itself: got %d want %d", got, d*3)
	}
	if got := bar.FloorToClose(d*3+1, tf); got != d*3 {
		t.Fatalf("floor should round down: got %d want %d", got, d*3)
	}
	if got := bar.CeilToClose(d*3+1, tf); got != d*4 {
		t.Fatalf("ceil should round up: got %d want %d", got, d*4)
	}
}

func TestBarsBetween(t *testing.T) {
	tf := bar.TF1m
	d := bar.DurationMs(tf)
	if got := bar.BarsBetween(tf, 0, d*10); got != 10 {
		t.Fatalf("got %d want 10", got)
	}
	if got := bar.BarsBetween(tf, d*5, d*5); got != 0 {
		t.Fatalf("equal range should be 0 bars, got %d", got)
	}
}

func TestValidateRejectsBadOHLC(t *testing.T) {
	b := bar.Bar{TimestampCloseMs: 1000, Open: 10, High: 9, Low: 8, Close: 10.5, Volume: 1}
	if err := b.Validate(); err == nil {
		t.Fatal("expected invariant violation (close above high)")
	}
}

func TestValidateSeriesDetectsGap(t *testing.T) {
	tf := bar.TF1m
	d := bar.DurationMs(tf)
	bars := []bar.Bar{
		{TimestampCloseMs: d, Open: 1, High: 1, Low: 1, Close: 1},
		{TimestampCloseMs: d * 3, Open: 1, High: 1, Low: 1, Close: 1},
	}
	if err := bar.ValidateSeries(bars, tf); err == nil {
		t.Fatal("expected gap detection error")
	}
}
