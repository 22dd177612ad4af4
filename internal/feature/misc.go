package feature

import (
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// --- linreg (linear regression forecast at the current bar) ---

type linreg struct {
	base
	buf *ringBuffer
}

func newLinReg(params map[string]float64) (*linreg, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &linreg{base: base{warmup: length}, buf: newRingBuffer(length)}, nil
}

func (l *linreg) Update(b bar.Bar) {
	l.tick()
	l.buf.push(b.Close)
}

func (l *linreg) Values() map[string]float64 {
	if !l.ready() {
		return map[string]float64{"": math.NaN()}
	}
	ys := l.buf.values()
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return map[string]float64{"": ys[len(ys)-1]}
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	// forecast at the most recent x (n-1)
	return map[string]float64{"": intercept + slope*(n-1)}
}

// --- midprice ---

type midprice struct {
	base
	highs, lows *ringBuffer
}

func newMidprice(params map[string]float64) (*midprice, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &midprice{base: base{warmup: length}, highs: newRingBuffer(length), lows: newRingBuffer(length)}, nil
}

func (m *midprice) Update(b bar.Bar) {
	m.tick()
	m.highs.push(b.High)
	m.lows.push(b.Low)
}

func (m *midprice) Values() map[string]float64 {
	if !m.ready() {
		return map[string]float64{"": math.NaN()}
	}
	v := (maxOf(m.highs.values()) + minOf(m.lows.values())) / 2
	return map[string]float64{"": v}
}

// --- ohlc4 ---

type ohlc4 struct {
	base
	value float64
}

func newOHLC4(_ map[string]float64) (*ohlc4, error) {
	return &ohlc4{base: base{warmup: 1}}, nil
}

func (o *ohlc4) Update(b bar.Bar) {
	o.tick()
	o.value = (b.Open + b.High + b.Low + b.Close) / 4
}

func (o *ohlc4) Values() map[string]float64 {
	return map[string]float64{"": nanIf(o.ready(), o.value)}
}
