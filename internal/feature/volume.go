package feature

import (
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

// --- obv (on-balance volume) ---

type obv struct {
	base
	value     float64
	prevClose float64
	seeded    bool
}

func newOBV(_ map[string]float64) (*obv, error) {
	return &obv{base: base{warmup: 1}}, nil
}

func (o *obv) Update(b bar.Bar) {
	o.tick()
	if !o.seeded {
		o.prevClose = b.Close
		o.seeded = true
		return
	}
	switch {
	case b.Close > o.prevClose:
		o.value += b.Volume
	case b.Close < o.prevClose:
		o.value -= b.Volume
	}
	o.prevClose = b.Close
}

func (o *obv) Values() map[string]float64 {
	return map[string]float64{"": nanIf(o.ready(), o.value)}
}

// --- cmf (Chaikin money flow) ---

type cmf struct {
	base
	mfVolume, volume *ringBuffer
}

func newCMF(params map[string]float64) (*cmf, error) {
	length, err := requireIntParam(params, "length")
	if err != nil {
		return nil, err
	}
	return &cmf{base: base{warmup: length}, mfVolume: newRingBuffer(length), volume: newRingBuffer(length)}, nil
}

func (c *cmf) Update(b bar.Bar) {
	c.tick()
	rangeHL := b.High - b.Low
	mfMultiplier := 0.0
	if rangeHL != 0 {
		mfMultiplier = ((b.Close - b.Low) - (b.High - b.Close)) / rangeHL
	}
	c.mfVolume.push(mfMultiplier * b.Volume)
	c.volume.push(b.Volume)
}

func (c *cmf) Values() map[string]float64 {
	if !c.ready() {
		return map[string]float64{"": math.NaN()}
	}
	volSum := sum(c.volume.values())
	v := 0.0
	if volSum != 0 {
		v = sum(c.mfVolume.values()) / volSum
	}
	return map[string]float64{"": v}
}

// --- vwap (cumulative from run start; no session reset — spec.md does not
// declare a session boundary concept, so this accumulates over the whole
// run, matching the donor's lack of an intraday-session abstraction) ---

type vwap struct {
	base
	cumPV, cumVol float64
}

func newVWAP(_ map[string]float64) (*vwap, error) {
	return &vwap{base: base{warmup: 1}}, nil
}

func (v *vwap) Update(b bar.Bar) {
	v.tick()
	tp := typicalPrice(b)
	v.cumPV += tp * b.Volume
	v.cumVol += b.Volume
}

func (v *vwap) Values() map[string]float64 {
	val := math.NaN()
	if v.cumVol != 0 {
		val = v.cumPV / v.cumVol
	}
	return map[string]float64{"": nanIf(v.ready(), val)}
}
