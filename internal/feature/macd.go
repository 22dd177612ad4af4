package feature

import (
	"math"

	"github.com/atlas-quant/tradecore/pkg/bar"
)

type macd struct {
	base
	fast, slow, signal *ema
}

func newMACD(params map[string]float64) (*macd, error) {
	fastLen, err := requireIntParam(params, "fast")
	if err != nil {
		return nil, err
	}
	slowLen, err := requireIntParam(params, "slow")
	if err != nil {
		return nil, err
	}
	signalLen, err := requireIntParam(params, "signal")
	if err != nil {
		return nil, err
	}
	fast, _ := newEMA(map[string]float64{"length": float64(fastLen)}, 1)
	slow, _ := newEMA(map[string]float64{"length": float64(slowLen)}, 1)
	signal, _ := newEMA(map[string]float64{"length": float64(signalLen)}, 1)
	return &macd{
		base:   base{warmup: 3*slowLen + signalLen},
		fast:   fast,
		slow:   slow,
		signal: signal,
	}, nil
}

func (m *macd) Update(b bar.Bar) {
	m.tick()
	m.fast.updateValue(b.Close)
	m.slow.updateValue(b.Close)
	m.signal.updateValue(m.fast.value - m.slow.value)
}

func (m *macd) Values() map[string]float64 {
	macdLine := m.fast.value - m.slow.value
	hist := macdLine - m.signal.value
	if !m.ready() {
		return map[string]float64{"macd": math.NaN(), "signal": math.NaN(), "hist": math.NaN()}
	}
	return map[string]float64{"macd": macdLine, "signal": m.signal.value, "hist": hist}
}
