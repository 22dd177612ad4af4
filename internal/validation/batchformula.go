// Independent closed-form reference formulas backing the math-parity audit
// (mathparity.go). Each function recomputes one indicator kind's value at
// the end of a bar window directly from OHLCV arrays, using the textbook
// definition for that kind rather than internal/feature's own incremental
// state machine — so a bug specific to that incremental implementation (an
// off-by-one in a Wilder-smoothing recursion, a wrong ring-buffer window)
// actually produces a mismatch instead of the two sides trivially agreeing
// by construction. feature.Warmup supplies only the bar count after which a
// kind's output is defined — a pure function of the spec's params, not of
// any computed value — so the NaN gating here always lines up with what the
// incremental implementation itself declares ready.
package validation

import (
	"fmt"
	"math"

	"github.com/atlas-quant/tradecore/internal/feature"
	"github.com/atlas-quant/tradecore/pkg/bar"
	"github.com/atlas-quant/tradecore/pkg/types"
)

func batchReference(spec types.FeatureSpec, bars []bar.Bar, i int) (map[string]float64, error) {
	warmup, err := feature.Warmup(spec.Kind, spec.Params)
	if err != nil {
		return nil, fmt.Errorf("validation: batch reference %q: %w", spec.ID, err)
	}
	keys := outputKeysForKind(spec.Kind)
	if i+1 < warmup {
		return nanMap(keys), nil
	}

	window := bars[:i+1]
	closes, highs, lows, volumes, opens := closesOf(window), highsOf(window), lowsOf(window), volumesOf(window), opensOf(window)
	p := spec.Params

	switch spec.Kind {
	case types.KindSMA:
		length := int(p["length"])
		return one(vecMean(closes[len(closes)-length:])), nil
	case types.KindEMA:
		length := int(p["length"])
		return one(last(batchEMASeries(closes, length))), nil
	case types.KindWMA:
		return one(batchWMA(closes, int(p["length"]))), nil
	case types.KindDEMA:
		length := int(p["length"])
		e1 := batchEMASeries(closes, length)
		e2 := batchEMASeries(e1, length)
		return one(2*last(e1) - last(e2)), nil
	case types.KindTEMA:
		length := int(p["length"])
		e1 := batchEMASeries(closes, length)
		e2 := batchEMASeries(e1, length)
		e3 := batchEMASeries(e2, length)
		return one(3*last(e1) - 3*last(e2) + last(e3)), nil
	case types.KindTRIMA:
		return one(batchTRIMA(closes, int(p["length"]))), nil
	case types.KindKAMA:
		length := int(p["length"])
		return one(batchKAMA(closes, length, pFloat(p, "fast", 2), pFloat(p, "slow", 30))), nil
	case types.KindZLMA:
		return one(batchZLMA(closes, int(p["length"]))), nil
	case types.KindALMA:
		length := int(p["length"])
		return one(batchALMA(closes, length, pFloat(p, "sigma", 6), pFloat(p, "offset", 0.85))), nil
	case types.KindRSI:
		return one(batchRSI(closes, int(p["length"]))), nil
	case types.KindATR:
		return one(batchATR(highs, lows, closes, int(p["length"]), false)), nil
	case types.KindNATR:
		return one(batchATR(highs, lows, closes, int(p["length"]), true)), nil
	case types.KindMACD:
		return batchMACD(closes, int(p["fast"]), int(p["slow"]), int(p["signal"])), nil
	case types.KindBBands:
		return batchBBands(closes, int(p["length"]), pFloat(p, "stddev", 2)), nil
	case types.KindStoch:
		k := int(p["k"])
		return batchStoch(highs, lows, closes, k, pInt(p, "d", 3), pInt(p, "smooth_k", 3)), nil
	case types.KindStochRSI:
		length := int(p["length"])
		rsiLength := pInt(p, "rsi_length", length)
		return batchStochRSI(closes, rsiLength, length, pInt(p, "k", 3), pInt(p, "d", 3)), nil
	case types.KindCCI:
		return one(batchCCI(highs, lows, closes, int(p["length"]))), nil
	case types.KindWillR:
		return one(batchWillR(highs, lows, closes, int(p["length"]))), nil
	case types.KindCMO:
		return one(batchCMO(closes, int(p["length"]))), nil
	case types.KindMOM:
		length := int(p["length"])
		return one(closes[len(closes)-1] - closes[len(closes)-1-length]), nil
	case types.KindROC:
		length := int(p["length"])
		base := closes[len(closes)-1-length]
		v := math.NaN()
		if base != 0 {
			v = (closes[len(closes)-1] - base) / base * 100
		}
		return one(v), nil
	case types.KindMFI:
		return one(batchMFI(highs, lows, closes, volumes, int(p["length"]))), nil
	case types.KindUO:
		return one(batchUO(highs, lows, closes, pInt(p, "length1", 7), pInt(p, "length2", 14), pInt(p, "length3", 28))), nil
	case types.KindADX:
		return batchADX(highs, lows, closes, int(p["length"])), nil
	case types.KindVortex:
		return batchVortex(highs, lows, closes, int(p["length"])), nil
	case types.KindOBV:
		return one(batchOBV(closes, volumes)), nil
	case types.KindCMF:
		return one(batchCMF(highs, lows, closes, volumes, int(p["length"]))), nil
	case types.KindVWAP:
		return one(batchVWAP(highs, lows, closes, volumes)), nil
	case types.KindLinReg:
		return one(batchLinReg(closes, int(p["length"]))), nil
	case types.KindMidprice:
		return one(batchMidprice(highs, lows, int(p["length"]))), nil
	case types.KindOHLC4:
		n := len(closes) - 1
		return one((opens[n] + highs[n] + lows[n] + closes[n]) / 4), nil
	default:
		return nil, fmt.Errorf("validation: batch reference: unregistered indicator kind %q", spec.Kind)
	}
}

func outputKeysForKind(kind types.IndicatorKind) []string {
	switch kind {
	case types.KindMACD:
		return []string{"macd", "signal", "hist"}
	case types.KindBBands:
		return []string{"upper", "middle", "lower"}
	case types.KindStoch, types.KindStochRSI:
		return []string{"k", "d"}
	case types.KindADX:
		return []string{"adx", "plus_di", "minus_di"}
	case types.KindVortex:
		return []string{"plus_vi", "minus_vi"}
	default:
		return []string{""}
	}
}

func nanMap(keys []string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = math.NaN()
	}
	return out
}

func one(v float64) map[string]float64 { return map[string]float64{"": v} }

func last(xs []float64) float64 { return xs[len(xs)-1] }

func pInt(p map[string]float64, key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

func pFloat(p map[string]float64, key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func closesOf(bars []bar.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highsOf(bars []bar.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lowsOf(bars []bar.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func volumesOf(bars []bar.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func opensOf(bars []bar.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Open
	}
	return out
}

func vecSum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func vecMean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return vecSum(xs) / float64(len(xs))
}

func vecMax(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func vecMin(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs {
		if x < m {
			m = x
		}
	}
	return m
}

// batchEMASeries computes the plain recursive EMA over every index of xs,
// seeded at xs[0], matching internal/feature's ema.updateValue but written
// independently against a slice instead of the incremental struct.
func batchEMASeries(xs []float64, length int) []float64 {
	alpha := 2.0 / (float64(length) + 1)
	out := make([]float64, len(xs))
	for i, x := range xs {
		if i == 0 {
			out[i] = x
			continue
		}
		out[i] = alpha*x + (1-alpha)*out[i-1]
	}
	return out
}

func batchWMA(closes []float64, length int) float64 {
	window := closes[len(closes)-length:]
	num, den := 0.0, 0.0
	for i, v := range window {
		w := float64(i + 1)
		num += v * w
		den += w
	}
	return num / den
}

func batchTRIMA(closes []float64, length int) float64 {
	n1 := (length + 1) / 2
	n2 := length - n1 + 1
	var sma1 []float64
	for k := n1 - 1; k < len(closes); k++ {
		sma1 = append(sma1, vecMean(closes[k-n1+1:k+1]))
	}
	if len(sma1) < n2 {
		return math.NaN()
	}
	return vecMean(sma1[len(sma1)-n2:])
}

func batchKAMA(closes []float64, length int, fast, slow float64) float64 {
	fastSC := 2 / (fast + 1)
	slowSC := 2 / (slow + 1)
	value := closes[0]
	for i := 1; i < len(closes); i++ {
		if i < length {
			continue
		}
		change := math.Abs(closes[i] - closes[i-length])
		volatility := 0.0
		for j := i - length + 1; j <= i; j++ {
			volatility += math.Abs(closes[j] - closes[j-1])
		}
		er := 0.0
		if volatility != 0 {
			er = change / volatility
		}
		sc := math.Pow(er*(fastSC-slowSC)+slowSC, 2)
		value = value + sc*(closes[i]-value)
	}
	return value
}

func batchZLMA(closes []float64, length int) float64 {
	lag := (length - 1) / 2
	adjusted := make([]float64, len(closes))
	for i, c := range closes {
		lagged := c
		if i >= lag {
			lagged = closes[i-lag]
		}
		adjusted[i] = c + (c - lagged)
	}
	return last(batchEMASeries(adjusted, length))
}

func batchALMA(closes []float64, length int, sigma, offset float64) float64 {
	window := closes[len(closes)-length:]
	m := math.Floor(offset * float64(length-1))
	s := float64(length) / sigma
	num, den := 0.0, 0.0
	for i, x := range window {
		w := math.Exp(-math.Pow(float64(i)-m, 2) / (2 * s * s))
		num += x * w
		den += w
	}
	return num / den
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func batchRSI(closes []float64, length int) float64 {
	gains := make([]float64, 0, length)
	losses := make([]float64, 0, length)
	for i := 1; i <= length; i++ {
		change := closes[i] - closes[i-1]
		gains = append(gains, math.Max(change, 0))
		losses = append(losses, math.Max(-change, 0))
	}
	avgGain, avgLoss := vecMean(gains), vecMean(losses)
	for i := length + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := math.Max(change, 0), math.Max(-change, 0)
		avgGain = (avgGain*float64(length-1) + gain) / float64(length)
		avgLoss = (avgLoss*float64(length-1) + loss) / float64(length)
	}
	return rsiFromAvg(avgGain, avgLoss)
}

// batchRSISeries is batchRSI evaluated at every index, used by stochRSI.
func batchRSISeries(closes []float64, length int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(closes) < length+1 {
		return out
	}
	gains := make([]float64, 0, length)
	losses := make([]float64, 0, length)
	for i := 1; i <= length; i++ {
		change := closes[i] - closes[i-1]
		gains = append(gains, math.Max(change, 0))
		losses = append(losses, math.Max(-change, 0))
	}
	avgGain, avgLoss := vecMean(gains), vecMean(losses)
	out[length] = rsiFromAvg(avgGain, avgLoss)
	for i := length + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := math.Max(change, 0), math.Max(-change, 0)
		avgGain = (avgGain*float64(length-1) + gain) / float64(length)
		avgLoss = (avgLoss*float64(length-1) + loss) / float64(length)
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func batchCMO(closes []float64, length int) float64 {
	up, dn := 0.0, 0.0
	start := len(closes) - length
	for i := start; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		up += math.Max(change, 0)
		dn += math.Max(-change, 0)
	}
	if up+dn == 0 {
		return 0
	}
	return 100 * (up - dn) / (up + dn)
}

func batchCCI(highs, lows, closes []float64, length int) float64 {
	tp := make([]float64, length)
	for k := 0; k < length; k++ {
		idx := len(closes) - length + k
		tp[k] = (highs[idx] + lows[idx] + closes[idx]) / 3
	}
	m := vecMean(tp)
	meanDev := 0.0
	for _, v := range tp {
		meanDev += math.Abs(v - m)
	}
	meanDev /= float64(length)
	if meanDev == 0 {
		return math.NaN()
	}
	return (tp[length-1] - m) / (0.015 * meanDev)
}

func batchWillR(highs, lows, closes []float64, length int) float64 {
	hh := vecMax(highs[len(highs)-length:])
	ll := vecMin(lows[len(lows)-length:])
	if hh == ll {
		return 0
	}
	return (hh - closes[len(closes)-1]) / (hh - ll) * -100
}

func batchUO(highs, lows, closes []float64, l1, l2, l3 int) float64 {
	L := len(closes)
	var bp, tr []float64
	for i := 1; i < L; i++ {
		lo := math.Min(lows[i], closes[i-1])
		hi := math.Max(highs[i], closes[i-1])
		bp = append(bp, closes[i]-lo)
		tr = append(tr, hi-lo)
	}
	avg := func(k int) float64 {
		return vecSum(bp[len(bp)-k:]) / vecSum(tr[len(tr)-k:])
	}
	avg1, avg2, avg3 := avg(l1), avg(l2), avg(l3)
	return 100 * (4*avg1 + 2*avg2 + avg3) / 7
}

func batchADX(highs, lows, closes []float64, length int) map[string]float64 {
	out := map[string]float64{"adx": math.NaN(), "plus_di": math.NaN(), "minus_di": math.NaN()}
	n := float64(length)
	var atrW, plusDMW, minusDMW float64
	smoothedCount := 0
	var dxs []float64
	var adxValue float64
	adxSeeded := false

	for i := 1; i < len(closes); i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		plusDM, minusDM := 0.0, 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))

		if smoothedCount < length {
			atrW += tr
			plusDMW += plusDM
			minusDMW += minusDM
			smoothedCount++
		} else {
			atrW = atrW - atrW/n + tr
			plusDMW = plusDMW - plusDMW/n + plusDM
			minusDMW = minusDMW - minusDMW/n + minusDM
		}
		if smoothedCount < length || atrW == 0 {
			continue
		}

		plusDI := 100 * plusDMW / atrW
		minusDI := 100 * minusDMW / atrW
		out["plus_di"] = plusDI
		out["minus_di"] = minusDI

		dx := 0.0
		if plusDI+minusDI != 0 {
			dx = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
		}
		dxs = append(dxs, dx)
		switch {
		case len(dxs) < length:
		case len(dxs) == length:
			adxValue = vecMean(dxs)
			adxSeeded = true
		default:
			adxValue = (adxValue*(n-1) + dx) / n
		}
	}
	if adxSeeded {
		out["adx"] = adxValue
	}
	return out
}

func batchVortex(highs, lows, closes []float64, length int) map[string]float64 {
	out := map[string]float64{"plus_vi": math.NaN(), "minus_vi": math.NaN()}
	var vmP, vmM, tr []float64
	for i := 1; i < len(closes); i++ {
		vmP = append(vmP, math.Abs(highs[i]-lows[i-1]))
		vmM = append(vmM, math.Abs(lows[i]-highs[i-1]))
		tr = append(tr, math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1]))))
	}
	trSum := vecSum(tr[len(tr)-length:])
	if trSum == 0 {
		return out
	}
	out["plus_vi"] = vecSum(vmP[len(vmP)-length:]) / trSum
	out["minus_vi"] = vecSum(vmM[len(vmM)-length:]) / trSum
	return out
}

func batchMFI(highs, lows, closes, volumes []float64, length int) float64 {
	var pos, neg []float64
	prevTP := (highs[0] + lows[0] + closes[0]) / 3
	for i := 1; i < len(closes); i++ {
		tp := (highs[i] + lows[i] + closes[i]) / 3
		raw := tp * volumes[i]
		switch {
		case tp > prevTP:
			pos, neg = append(pos, raw), append(neg, 0)
		case tp < prevTP:
			pos, neg = append(pos, 0), append(neg, raw)
		default:
			pos, neg = append(pos, 0), append(neg, 0)
		}
		prevTP = tp
	}
	posSum, negSum := vecSum(pos[len(pos)-length:]), vecSum(neg[len(neg)-length:])
	if negSum == 0 {
		return 100
	}
	return 100 - 100/(1+posSum/negSum)
}

func batchATR(highs, lows, closes []float64, length int, asPercent bool) float64 {
	trs := make([]float64, 0, length)
	for i := 1; i <= length; i++ {
		trs = append(trs, math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1]))))
	}
	value := vecMean(trs)
	for i := length + 1; i < len(closes); i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		value = (value*float64(length-1) + tr) / float64(length)
	}
	last := closes[len(closes)-1]
	if asPercent && last != 0 {
		value = value / last * 100
	}
	return value
}

func batchBBands(closes []float64, length int, mult float64) map[string]float64 {
	window := closes[len(closes)-length:]
	m := vecMean(window)
	variance := 0.0
	for _, v := range window {
		variance += (v - m) * (v - m)
	}
	variance /= float64(length)
	sd := math.Sqrt(variance)
	return map[string]float64{"upper": m + mult*sd, "middle": m, "lower": m - mult*sd}
}

func batchStoch(highs, lows, closes []float64, k, d, smoothK int) map[string]float64 {
	out := map[string]float64{"k": math.NaN(), "d": math.NaN()}
	var rawK []float64
	for i := k - 1; i < len(closes); i++ {
		hh, ll := vecMax(highs[i-k+1:i+1]), vecMin(lows[i-k+1:i+1])
		raw := 50.0
		if hh != ll {
			raw = (closes[i] - ll) / (hh - ll) * 100
		}
		rawK = append(rawK, raw)
	}
	if len(rawK) < smoothK {
		return out
	}
	var smoothedK []float64
	for i := smoothK - 1; i < len(rawK); i++ {
		smoothedK = append(smoothedK, vecMean(rawK[i-smoothK+1:i+1]))
	}
	if len(smoothedK) < d {
		return out
	}
	out["k"] = smoothedK[len(smoothedK)-1]
	out["d"] = vecMean(smoothedK[len(smoothedK)-d:])
	return out
}

func batchStochRSI(closes []float64, rsiLength, length, k, d int) map[string]float64 {
	out := map[string]float64{"k": math.NaN(), "d": math.NaN()}
	rsiSeries := batchRSISeries(closes, rsiLength)
	var rv []float64
	for i := rsiLength; i < len(rsiSeries); i++ {
		rv = append(rv, rsiSeries[i])
	}
	if len(rv) < length {
		return out
	}
	var rawK []float64
	for i := length - 1; i < len(rv); i++ {
		window := rv[i-length+1 : i+1]
		hh, ll := vecMax(window), vecMin(window)
		raw := 50.0
		if hh != ll {
			raw = (rv[i] - ll) / (hh - ll) * 100
		}
		rawK = append(rawK, raw)
	}
	if len(rawK) < k {
		return out
	}
	var smoothedK []float64
	for i := k - 1; i < len(rawK); i++ {
		smoothedK = append(smoothedK, vecMean(rawK[i-k+1:i+1]))
	}
	if len(smoothedK) < d {
		return out
	}
	out["k"] = smoothedK[len(smoothedK)-1]
	out["d"] = vecMean(smoothedK[len(smoothedK)-d:])
	return out
}

func batchOBV(closes, volumes []float64) float64 {
	value := 0.0
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			value += volumes[i]
		case closes[i] < closes[i-1]:
			value -= volumes[i]
		}
	}
	return value
}

func batchCMF(highs, lows, closes, volumes []float64, length int) float64 {
	L := len(closes)
	mfv := make([]float64, L)
	for i := 0; i < L; i++ {
		rangeHL := highs[i] - lows[i]
		mult := 0.0
		if rangeHL != 0 {
			mult = ((closes[i] - lows[i]) - (highs[i] - closes[i])) / rangeHL
		}
		mfv[i] = mult * volumes[i]
	}
	volSum := vecSum(volumes[L-length:])
	if volSum == 0 {
		return 0
	}
	return vecSum(mfv[L-length:]) / volSum
}

func batchVWAP(highs, lows, closes, volumes []float64) float64 {
	var cumPV, cumVol float64
	for i := range closes {
		tp := (highs[i] + lows[i] + closes[i]) / 3
		cumPV += tp * volumes[i]
		cumVol += volumes[i]
	}
	if cumVol == 0 {
		return math.NaN()
	}
	return cumPV / cumVol
}

func batchLinReg(closes []float64, length int) float64 {
	window := closes[len(closes)-length:]
	n := float64(length)
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range window {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return window[length-1]
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return intercept + slope*(n-1)
}

func batchMidprice(highs, lows []float64, length int) float64 {
	return (vecMax(highs[len(highs)-length:]) + vecMin(lows[len(lows)-length:])) / 2
}

func batchMACD(closes []float64, fastLen, slowLen, signalLen int) map[string]float64 {
	fast := batchEMASeries(closes, fastLen)
	slow := batchEMASeries(closes, slowLen)
	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = fast[i] - slow[i]
	}
	sig := batchEMASeries(diff, signalLen)
	macdLine := last(diff)
	signal := last(sig)
	return map[string]float64{"macd": macdLine, "signal": signal, "hist": macdLine - signal}
}
