package feature

import (
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// --- rsi (Wilder smoothing) ---

type rsi struct {
	base
	length            int
	avgGain, avgLoss  float64
	prevClose         float64
	seeded            bool
	gainBuf, lossBuf  *ringBuffer
}

func newRSI(params map[string]float64) (*rsi, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &rsi{
		base:    base{warmup: length + 1},
		length:  length,
		gainBuf: newRingBuffer(length),
		lossBuf: newRingBuffer(length),
	}, nil
}

func (r *rsi) Update(b bar.Bar) {
	r.tick()
	if !r.seeded {
		r.prevClose = b.Close
		r.seeded = true
		return
	}
	change := b.Close - r.prevClose
	gain, loss := math.Max(change, 0), math.Max(-change, 0)
	r.prevClose = b.Close

	if r.Count() <= r.length+1 {
		r.gainBuf.push(gain)
		r.lossBuf.push(loss)
		if r.Count() == r.length+1 {
			r.avgGain = mean(r.gainBuf.values())
			r.avgLoss = mean(r.lossBuf.values())
		}
		return
	}
	r.avgGain = (r.avgGain*float64(r.length-1) + gain) / float64(r.length)
	r.avgLoss = (r.avgLoss*float64(r.length-1) + loss) / float64(r.length)
}

func (r *rsi) Values() map[string]float64 {
	if !r.ready() {
		return map[string]float64{"": math.NaN()}
	}
	if r.avgLoss == 0 {
		return map[string]float64{"": 100}
	}
	rs := r.avgGain / r.avgLoss
	return map[string]float64{"": 100 - 100/(1+rs)}
}

// --- cmo (Chande momentum oscillator) ---

type cmo struct {
	base
	prevClose float64
	seeded    bool
	ups, dns  *ringBuffer
}

func newCMO(params map[string]float64) (*cmo, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &cmo{base: base{warmup: length + 1}, ups: newRingBuffer(length), dns: newRingBuffer(length)}, nil
}

func (c *cmo) Update(b bar.Bar) {
	c.tick()
	if !c.seeded {
		c.prevClose = b.Close
		c.seeded = true
		return
	}
	change := b.Close - c.prevClose
	c.prevClose = b.Close
	c.ups.push(math.Max(change, 0))
	c.dns.push(math.Max(-change, 0))
}

func (c *cmo) Values() map[string]float64 {
	up, dn := sum(c.ups.values()), sum(c.dns.values())
	v := 0.0
	if up+dn != 0 {
		v = 100 * (up - dn) / (up + dn)
	}
	return map[string]float64{"": nanIf(c.ready(), v)}
}

// --- mom ---

type mom struct {
	base
	buf *ringBuffer
}

func newMOM(params map[string]float64) (*mom, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &mom{base: base{warmup: length + 1}, buf: newRingBuffer(length + 1)}, nil
}

func (m *mom) Update(b bar.Bar) {
	m.tick()
	m.buf.push(b.Close)
}

func (m *mom) Values() map[string]float64 {
	v := math.NaN()
	if m.buf.len() == len(m.buf.data) {
		vals := m.buf.values()
		v = vals[len(vals)-1] - vals[0]
	}
	return map[string]float64{"": nanIf(m.ready(), v)}
}

// --- roc ---

type roc struct {
	base
	buf *ringBuffer
}

func newROC(params map[string]float64) (*roc, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &roc{base: base{warmup: length + 1}, buf: newRingBuffer(length + 1)}, nil
}

func (r *roc) Update(b bar.Bar) {
	r.tick()
	r.buf.push(b.Close)
}

func (r *roc) Values() map[string]float64 {
	v := math.NaN()
	if r.buf.len() == len(r.buf.data) {
		vals := r.buf.values()
		base := vals[0]
		if base != 0 {
			v = (vals[len(vals)-1] - base) / base * 100
		}
	}
	return map[string]float64{"": nanIf(r.ready(), v)}
}

// --- cci ---

type cci struct {
	base
	buf *ringBuffer
}

func newCCI(params map[string]float64) (*cci, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &cci{base: base{warmup: length}, buf: newRingBuffer(length)}, nil
}

func typicalPrice(b bar.Bar) float64 { return (b.High + b.Low + b.Close) / 3 }

func (c *cci) Update(b bar.Bar) {
	c.tick()
	c.buf.push(typicalPrice(b))
}

func (c *cci) Values() map[string]float64 {
	if !c.ready() {
		return map[string]float64{"": math.NaN()}
	}
	vals := c.buf.values()
	m := mean(vals)
	meanDev := 0.0
	for _, v := range vals {
		meanDev += math.Abs(v - m)
	}
	meanDev /= float64(len(vals))
	tp := vals[len(vals)-1]
	v := math.NaN()
	if meanDev != 0 {
		v = (tp - m) / (0.015 * meanDev)
	}
	return map[string]float64{"": v}
}

// --- willr ---

type willr struct {
	base
	highs, lows *ringBuffer
	closes      *ringBuffer
}

func newWillR(params map[string]float64) (*willr, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &willr{base: base{warmup: length}, highs: newRingBuffer(length), lows: newRingBuffer(length), closes: newRingBuffer(length)}, nil
}

func (w *willr) Update(b bar.Bar) {
	w.tick()
	w.highs.push(b.High)
	w.lows.push(b.Low)
	w.closes.push(b.Close)
}

func (w *willr) Values() map[string]float64 {
	if !w.ready() {
		return map[string]float64{"": math.NaN()}
	}
	hh := maxOf(w.highs.values())
	ll := minOf(w.lows.values())
	cl := w.closes.values()
	close := cl[len(cl)-1]
	v := 0.0
	if hh != ll {
		v = (hh - close) / (hh - ll) * -100
	}
	return map[string]float64{"": v}
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs {
		if x < m {
			m = x
		}
	}
	return m
}

// --- uo (ultimate oscillator) ---

type uo struct {
	base
	l1, l2, l3          int
	bp1, bp2, bp3       *ringBuffer
	tr1, tr2, tr3       *ringBuffer
	prevClose           float64
	seeded              bool
}

func newUO(params map[string]float64) (*uo, error) {
	l1 := paramInt(params, "length1", 7)
	l2 := paramInt(params, "length2", 14)
	l3 := paramInt(params, "length3", 28)
	return &uo{
		base: base{warmup: l3 + 1},
		l1:   l1, l2: l2, l3: l3,
		bp1: newRingBuffer(l1), bp2: newRingBuffer(l2), bp3: newRingBuffer(l3),
		tr1: newRingBuffer(l1), tr2: newRingBuffer(l2), tr3: newRingBuffer(l3),
	}, nil
}

func (u *uo) Update(b bar.Bar) {
	u.tick()
	if !u.seeded {
		u.prevClose = b.Close
		u.seeded = true
		return
	}
	low := math.Min(b.Low, u.prevClose)
	high := math.Max(b.High, u.prevClose)
	bp := b.Close - low
	tr := high - low
	u.prevClose = b.Close
	u.bp1.push(bp)
	u.bp2.push(bp)
	u.bp3.push(bp)
	u.tr1.push(tr)
	u.tr2.push(tr)
	u.tr3.push(tr)
}

func (u *uo) Values() map[string]float64 {
	if !u.ready() {
		return map[string]float64{"": math.NaN()}
	}
	avg1 := sum(u.bp1.values()) / sum(u.tr1.values())
	avg2 := sum(u.bp2.values()) / sum(u.tr2.values())
	avg3 := sum(u.bp3.values()) / sum(u.tr3.values())
	v := 100 * (4*avg1 + 2*avg2 + avg3) / 7
	return map[string]float64{"": v}
}

// --- adx (Wilder; also exposes +DI/-DI) ---

type adx struct {
	base
	length                   int
	prevHigh, prevLow, prevClose float64
	seeded                   bool
	atrW                     float64
	plusDMW, minusDMW        float64
	smoothedCount            int
	adxValue                 float64
	dxBuf                    *ringBuffer
	adxSeeded                bool
}

func newADX(params map[string]float64) (*adx, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &adx{base: base{warmup: 2 * length}, length: length, dxBuf: newRingBuffer(length)}, nil
}

func (a *adx) Update(b bar.Bar) {
	a.tick()
	if !a.seeded {
		a.prevHigh, a.prevLow, a.prevClose = b.High, b.Low, b.Close
		a.seeded = true
		return
	}
	upMove := b.High - a.prevHigh
	downMove := a.prevLow - b.Low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := math.Max(b.High-b.Low, math.Max(math.Abs(b.High-a.prevClose), math.Abs(b.Low-a.prevClose)))
	a.prevHigh, a.prevLow, a.prevClose = b.High, b.Low, b.Close

	n := float64(a.length)
	if a.smoothedCount < a.length {
		a.atrW += tr
		a.plusDMW += plusDM
		a.minusDMW += minusDM
		a.smoothedCount++
	} else {
		a.atrW = a.atrW - a.atrW/n + tr
		a.plusDMW = a.plusDMW - a.plusDMW/n + plusDM
		a.minusDMW = a.minusDMW - a.minusDMW/n + minusDM
	}
	if a.smoothedCount < a.length || a.atrW == 0 {
		return
	}
	plusDI := 100 * a.plusDMW / a.atrW
	minusDI := 100 * a.minusDMW / a.atrW
	dx := 0.0
	if plusDI+minusDI != 0 {
		dx = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}
	a.dxBuf.push(dx)
	if a.dxBuf.len() == a.length {
		if !a.adxSeeded {
			a.adxValue = mean(a.dxBuf.values())
			a.adxSeeded = true
		} else {
			a.adxValue = (a.adxValue*(n-1) + dx) / n
		}
	}
}

func (a *adx) Values() map[string]float64 {
	warm := a.ready() && a.atrW != 0
	plusDI, minusDI := math.NaN(), math.NaN()
	if warm {
		plusDI = 100 * a.plusDMW / a.atrW
		minusDI = 100 * a.minusDMW / a.atrW
	}
	return map[string]float64{
		"adx":      nanIf(a.adxSeeded, a.adxValue),
		"plus_di":  plusDI,
		"minus_di": minusDI,
	}
}

// --- vortex ---

type vortex struct {
	base
	length      int
	prevHigh, prevLow, prevClose float64
	seeded      bool
	vmPlus, vmMinus, trBuf *ringBuffer
}

func newVortex(params map[string]float64) (*vortex, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &vortex{
		base: base{warmup: length + 1}, length: length,
		vmPlus: newRingBuffer(length), vmMinus: newRingBuffer(length), trBuf: newRingBuffer(length),
	}, nil
}

func (v *vortex) Update(b bar.Bar) {
	v.tick()
	if !v.seeded {
		v.prevHigh, v.prevLow, v.prevClose = b.High, b.Low, b.Close
		v.seeded = true
		return
	}
	vmP := math.Abs(b.High - v.prevLow)
	vmM := math.Abs(b.Low - v.prevHigh)
	tr := math.Max(b.High-b.Low, math.Max(math.Abs(b.High-v.prevClose), math.Abs(b.Low-v.prevClose)))
	v.prevHigh, v.prevLow, v.prevClose = b.High, b.Low, b.Close
	v.vmPlus.push(vmP)
	v.vmMinus.push(vmM)
	v.trBuf.push(tr)
}

func (v *vortex) Values() map[string]float64 {
	trSum := sum(v.trBuf.values())
	plusVI, minusVI := math.NaN(), math.NaN()
	if v.ready() && trSum != 0 {
		plusVI = sum(v.vmPlus.values()) / trSum
		minusVI = sum(v.vmMinus.values()) / trSum
	}
	return map[string]float64{"plus_vi": plusVI, "minus_vi": minusVI}
}

// --- mfi (money flow index) ---

type mfi struct {
	base
	prevTP         float64
	seeded         bool
	posFlow, negFlow *ringBuffer
}

func newMFI(params map[string]float64) (*mfi, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &mfi{base: base{warmup: length + 1}, posFlow: newRingBuffer(length), negFlow: newRingBuffer(length)}, nil
}

func (m *mfi) Update(b bar.Bar) {
	m.tick()
	tp := typicalPrice(b)
	if !m.seeded {
		m.prevTP = tp
		m.seeded = true
		return
	}
	rawFlow := tp * b.Volume
	if tp > m.prevTP {
		m.posFlow.push(rawFlow)
		m.negFlow.push(0)
	} else if tp < m.prevTP {
		m.posFlow.push(0)
		m.negFlow.push(rawFlow)
	} else {
		m.posFlow.push(0)
		m.negFlow.push(0)
	}
	m.prevTP = tp
}

func (m *mfi) Values() map[string]float64 {
	if !m.ready() {
		return map[string]float64{"": math.NaN()}
	}
	posSum, negSum := sum(m.posFlow.values()), sum(m.negFlow.values())
	if negSum == 0 {
		return map[string]float64{"": 100}
	}
	ratio := posSum / negSum
	return map[string]float64{"": 100 - 100/(1+ratio)}
}
