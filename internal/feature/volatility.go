package feature

import (
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// --- atr / natr (Wilder smoothing) ---

type atr struct {
	base
	length           int
	asPercent        bool
	prevClose        float64
	seeded           bool
	trBuf            *ringBuffer
	value            float64
	smoothed         bool
	lastCloseForNatr float64
}

func newATR(params map[string]float64, asPercent bool) (*atr, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &atr{base: base{warmup: length + 1}, length: length, asPercent: asPercent, trBuf: newRingBuffer(length)}, nil
}

func trueRange(b bar.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

func (a *atr) Update(b bar.Bar) {
	a.tick()
	a.lastCloseForNatr = b.Close
	if !a.seeded {
		a.prevClose = b.Close
		a.seeded = true
		return
	}
	tr := trueRange(b, a.prevClose)
	a.prevClose = b.Close

	if !a.smoothed {
		a.trBuf.push(tr)
		if a.trBuf.len() == a.length {
			a.value = mean(a.trBuf.values())
			a.smoothed = true
		}
		return
	}
	a.value = (a.value*float64(a.length-1) + tr) / float64(a.length)
}

func (a *atr) Values() map[string]float64 {
	if !a.ready() {
		return map[string]float64{"": math.NaN()}
	}
	v := a.value
	if a.asPercent && a.lastCloseForNatr != 0 {
		v = v / a.lastCloseForNatr * 100
	}
	return map[string]float64{"": v}
}

// --- bbands ---

type bbands struct {
	base
	buf    *ringBuffer
	stddev float64
}

func newBBands(params map[string]float64) (*bbands, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &bbands{base: base{warmup: length}, buf: newRingBuffer(length), stddev: paramFloat(params, "stddev", 2)}, nil
}

func (bb *bbands) Update(b bar.Bar) {
	bb.tick()
	bb.buf.push(b.Close)
}

func (bb *bbands) Values() map[string]float64 {
	if !bb.ready() {
		return map[string]float64{"upper": math.NaN(), "middle": math.NaN(), "lower": math.NaN()}
	}
	vals := bb.buf.values()
	m := mean(vals)
	variance := 0.0
	for _, v := range vals {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(vals))
	sd := math.Sqrt(variance)
	return map[string]float64{
		"upper":  m + bb.stddev*sd,
		"middle": m,
		"lower":  m - bb.stddev*sd,
	}
}

// --- stoch ---

type stoch struct {
	base
	k, d, smoothK int
	highs, lows   *ringBuffer
	rawK          *ringBuffer // raw %K history, for smoothing
	smoothedK     *ringBuffer // smoothed %K history, for %D
}

func newStoch(params map[string]float64) (*stoch, error) {
	k, err := requireIntParam(params, "k")
	if err != nil {
		return nil, err
	}
	d := paramInt(params, "d", 3)
	smoothK := paramInt(params, "smooth_k", 3)
	return &stoch{
		base: base{warmup: k + smoothK + d}, k: k, d: d, smoothK: smoothK,
		highs: newRingBuffer(k), lows: newRingBuffer(k),
		rawK: newRingBuffer(smoothK), smoothedK: newRingBuffer(d),
	}, nil
}

func (s *stoch) Update(b bar.Bar) {
	s.tick()
	s.highs.push(b.High)
	s.lows.push(b.Low)
	if s.highs.len() < s.k {
		return
	}
	hh, ll := maxOf(s.highs.values()), minOf(s.lows.values())
	raw := 50.0
	if hh != ll {
		raw = (b.Close - ll) / (hh - ll) * 100
	}
	s.rawK.push(raw)
	if s.rawK.len() < s.smoothK {
		return
	}
	s.smoothedK.push(mean(s.rawK.values()))
}

func (s *stoch) Values() map[string]float64 {
	if !s.ready() || s.smoothedK.len() < s.d {
		return map[string]float64{"k": math.NaN(), "d": math.NaN()}
	}
	dVals := s.smoothedK.values()
	return map[string]float64{"k": dVals[len(dVals)-1], "d": mean(dVals)}
}

// --- stochrsi ---

type stochrsi struct {
	base
	rsi           *rsi
	rsiWindow     *ringBuffer
	k, d          int
	rawK          *ringBuffer
	smoothedK     *ringBuffer
}

func newStochRSI(params map[string]float64) (*stochrsi, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	rsiLength := paramInt(params, "rsi_length", length)
	k := paramInt(params, "k", 3)
	d := paramInt(params, "d", 3)
	r, _ := newRSI(map[string]float64{"length": float64(rsiLength)})
	maxKD := k
	if d > maxKD {
		maxKD = d
	}
	return &stochrsi{
		base:      base{warmup: rsiLength + length + maxKD},
		rsi:       r,
		rsiWindow: newRingBuffer(length),
		k:         k, d: d,
		rawK: newRingBuffer(k), smoothedK: newRingBuffer(d),
	}, nil
}

func (s *stochrsi) Update(b bar.Bar) {
	s.tick()
	s.rsi.Update(b)
	if !s.rsi.ready() {
		return
	}
	rv := s.rsi.Values()[""]
	s.rsiWindow.push(rv)
	if s.rsiWindow.len() < len(s.rsiWindow.data) {
		return
	}
	vals := s.rsiWindow.values()
	hh, ll := maxOf(vals), minOf(vals)
	raw := 50.0
	if hh != ll {
		raw = (rv - ll) / (hh - ll) * 100
	}
	s.rawK.push(raw)
	if s.rawK.len() < len(s.rawK.data) {
		return
	}
	s.smoothedK.push(mean(s.rawK.values()))
}

func (s *stochrsi) Values() map[string]float64 {
	if !s.ready() || s.smoothedK.len() < len(s.smoothedK.data) {
		return map[string]float64{"k": math.NaN(), "d": math.NaN()}
	}
	kVals := s.smoothedK.values()
	return map[string]float64{"k": kVals[len(kVals)-1], "d": mean(kVals)}
}
