package feature

import (
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// --- sma ---

type sma struct {
	base
	buf *ringBuffer
}

func newSMA(params map[string]float64) (*sma, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &sma{base: base{warmup: length}, buf: newRingBuffer(length)}, nil
}

func (s *sma) Update(b bar.Bar) {
	s.tick()
	s.buf.push(b.Close)
}

func (s *sma) Values() map[string]float64 {
	v := math.NaN()
	if s.ready() {
		v = mean(s.buf.values())
	}
	return map[string]float64{"": v}
}

// --- ema (also backs zlma's base smoothing) ---

type ema struct {
	base
	length int
	alpha  float64
	value  float64
	seeded bool
}

func newEMA(params map[string]float64, warmupMult int) (*ema, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &ema{
		base:   base{warmup: warmupMult * length},
		length: length,
		alpha:  2.0 / float64(length+1),
	}, nil
}

func (e *ema) updateValue(x float64) {
	if !e.seeded {
		e.value = x
		e.seeded = true
		return
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
}

func (e *ema) Update(b bar.Bar) {
	e.tick()
	e.updateValue(b.Close)
}

func (e *ema) Values() map[string]float64 {
	return map[string]float64{"": nanIf(e.ready(), e.value)}
}

// --- wma ---

type wma struct {
	base
	buf *ringBuffer
}

func newWMA(params map[string]float64) (*wma, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &wma{base: base{warmup: 3 * length}, buf: newRingBuffer(length)}, nil
}

func (w *wma) Update(b bar.Bar) {
	w.tick()
	w.buf.push(b.Close)
}

func (w *wma) Values() map[string]float64 {
	if !w.ready() || w.buf.len() < len(w.buf.data) {
		return map[string]float64{"": math.NaN()}
	}
	vals := w.buf.values()
	num, den := 0.0, 0.0
	for i, v := range vals {
		weight := float64(i + 1)
		num += v * weight
		den += weight
	}
	return map[string]float64{"": num / den}
}

// --- dema ---

type dema struct {
	base
	ema1, ema2 *ema
}

func newDEMA(params map[string]float64) (*dema, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	e1, _ := newEMA(params, 1)
	e2, _ := newEMA(map[string]float64{"length": float64(length)}, 1)
	return &dema{base: base{warmup: 4 * length}, ema1: e1, ema2: e2}, nil
}

func (d *dema) Update(b bar.Bar) {
	d.tick()
	d.ema1.updateValue(b.Close)
	d.ema2.updateValue(d.ema1.value)
}

func (d *dema) Values() map[string]float64 {
	v := 2*d.ema1.value - d.ema2.value
	return map[string]float64{"": nanIf(d.ready(), v)}
}

// --- tema ---

type tema struct {
	base
	ema1, ema2, ema3 *ema
}

func newTEMA(params map[string]float64) (*tema, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	p := map[string]float64{"length": float64(length)}
	e1, _ := newEMA(p, 1)
	e2, _ := newEMA(p, 1)
	e3, _ := newEMA(p, 1)
	return &tema{base: base{warmup: 5 * length}, ema1: e1, ema2: e2, ema3: e3}, nil
}

func (t *tema) Update(b bar.Bar) {
	t.tick()
	t.ema1.updateValue(b.Close)
	t.ema2.updateValue(t.ema1.value)
	t.ema3.updateValue(t.ema2.value)
}

func (t *tema) Values() map[string]float64 {
	v := 3*t.ema1.value - 3*t.ema2.value + t.ema3.value
	return map[string]float64{"": nanIf(t.ready(), v)}
}

// --- trima (triangular MA: SMA of SMA) ---

type trima struct {
	base
	inner *sma
	outer *sma
}

func newTRIMA(params map[string]float64) (*trima, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	n1 := (length + 1) / 2
	n2 := length - n1 + 1
	inner, _ := newSMA(map[string]float64{"length": float64(n1)})
	outer, _ := newSMA(map[string]float64{"length": float64(n2)})
	return &trima{base: base{warmup: 3 * length}, inner: inner, outer: outer}, nil
}

func (t *trima) Update(b bar.Bar) {
	t.tick()
	t.inner.Update(b)
	if t.inner.ready() {
		t.outer.buf.push(mean(t.inner.buf.values()))
	}
}

func (t *trima) Values() map[string]float64 {
	outerFull := t.outer.buf.len() == len(t.outer.buf.data)
	v := math.NaN()
	if outerFull {
		v = mean(t.outer.buf.values())
	}
	return map[string]float64{"": nanIf(t.ready() && outerFull, v)}
}

// --- kama ---

type kama struct {
	base
	length           int
	fastSC, slowSC   float64
	closes           *ringBuffer
	diffWindow       *ringBuffer
	value            float64
	seeded           bool
	lastClose        float64
}

func newKAMA(params map[string]float64) (*kama, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	fast := paramFloat(params, "fast", 2)
	slow := paramFloat(params, "slow", 30)
	return &kama{
		base:       base{warmup: 3 * length},
		length:     length,
		fastSC:     2 / (fast + 1),
		slowSC:     2 / (slow + 1),
		closes:     newRingBuffer(length + 1),
		diffWindow: newRingBuffer(length),
	}, nil
}

func (k *kama) Update(b bar.Bar) {
	k.tick()
	if k.seeded {
		k.diffWindow.push(math.Abs(b.Close - k.lastClose))
	}
	k.closes.push(b.Close)
	k.lastClose = b.Close

	if k.closes.len() < k.length+1 {
		if !k.seeded {
			k.value = b.Close
			k.seeded = true
		}
		return
	}

	closes := k.closes.values()
	change := math.Abs(closes[len(closes)-1] - closes[0])
	volatility := sum(k.diffWindow.values())
	er := 0.0
	if volatility != 0 {
		er = change / volatility
	}
	sc := math.Pow(er*(k.fastSC-k.slowSC)+k.slowSC, 2)
	k.value = k.value + sc*(b.Close-k.value)
}

func (k *kama) Values() map[string]float64 {
	return map[string]float64{"": nanIf(k.ready(), k.value)}
}

// --- zlma (zero-lag EMA) ---

type zlma struct {
	base
	lag    int
	buf    *ringBuffer
	e      *ema
}

func newZLMA(params map[string]float64) (*zlma, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	lag := (length - 1) / 2
	e, _ := newEMA(params, 1)
	return &zlma{base: base{warmup: 3 * length}, lag: lag, buf: newRingBuffer(lag + 1), e: e}, nil
}

func (z *zlma) Update(b bar.Bar) {
	z.tick()
	z.buf.push(b.Close)
	lagged := b.Close
	if z.buf.len() > z.lag {
		vals := z.buf.values()
		lagged = vals[0]
	}
	adjusted := b.Close + (b.Close - lagged)
	z.e.updateValue(adjusted)
}

func (z *zlma) Values() map[string]float64 {
	return map[string]float64{"": nanIf(z.ready(), z.e.value)}
}

// --- alma (Arnaud Legoux MA) ---

type alma struct {
	base
	buf     *ringBuffer
	weights []float64
}

func newALMA(params map[string]float64) (*alma, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	sigma := paramFloat(params, "sigma", 6)
	offset := paramFloat(params, "offset", 0.85)

	m := math.Floor(offset * float64(length-1))
	s := float64(length) / sigma
	weights := make([]float64, length)
	total := 0.0
	for i := 0; i < length; i++ {
		w := math.Exp(-math.Pow(float64(i)-m, 2) / (2 * s * s))
		weights[i] = w
		total += w
	}
	for i := range weights {
		weights[i] /= total
	}
	return &alma{base: base{warmup: 3 * length}, buf: newRingBuffer(length), weights: weights}, nil
}

func (a *alma) Update(b bar.Bar) {
	a.tick()
	a.buf.push(b.Close)
}

func (a *alma) Values() map[string]float64 {
	if a.buf.len() < len(a.buf.data) {
		return map[string]float64{"": math.NaN()}
	}
	vals := a.buf.values()
	v := 0.0
	for i, x := range vals {
		v += x * a.weights[i]
	}
	return map[string]float64{"": nanIf(a.ready(), v)}
}
