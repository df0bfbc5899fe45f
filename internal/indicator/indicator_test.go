package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	values := []float64{10, 10, 10, 10}
	out := EMA(values, 3)
	require.Len(t, out, 4)
	// константный ряд — EMA равна ряду
	for _, v := range out {
		assert.InDelta(t, 10, v, 1e-9)
	}

	// первая точка — сама цена
	out = EMA([]float64{5, 10}, 3)
	assert.InDelta(t, 5, out[0], 1e-9)
	// alpha = 0.5: 0.5*10 + 0.5*5
	assert.InDelta(t, 7.5, out[1], 1e-9)
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.InDelta(t, 1, out[0], 1e-9)   // окно из одного
	assert.InDelta(t, 1.5, out[1], 1e-9) // окно из двух
	assert.InDelta(t, 2, out[2], 1e-9)
	assert.InDelta(t, 3, out[3], 1e-9)
	assert.InDelta(t, 4, out[4], 1e-9)
}

func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}

	rsiUp := RSI(up, 14)
	assert.InDelta(t, 100, rsiUp[len(rsiUp)-1], 1e-9)

	rsiDown := RSI(down, 14)
	assert.InDelta(t, 0, rsiDown[len(rsiDown)-1], 1e-9)

	// до прогрева нейтральные 50
	assert.InDelta(t, 50, rsiUp[0], 1e-9)
	assert.InDelta(t, 50, rsiUp[5], 1e-9)
}

func TestRSIFlatSeries(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	out := RSI(flat, 14)
	// нет ни роста, ни падения — нейтральные 50
	assert.InDelta(t, 50, out[len(out)-1], 1e-9)
}

func TestMACDCrossesOnTrendChange(t *testing.T) {
	// рост, затем разворот
	values := make([]float64, 0, 80)
	for i := 0; i < 40; i++ {
		values = append(values, 100+float64(i))
	}
	for i := 0; i < 40; i++ {
		values = append(values, 140-float64(i)*2)
	}

	macd, sig := MACD(values, 12, 26, 9)
	require.Len(t, macd, len(values))
	require.Len(t, sig, len(values))

	// на пике тренда MACD выше сигнальной, в конце падения — ниже
	assert.Greater(t, macd[39], sig[39])
	assert.Less(t, macd[len(macd)-1], sig[len(sig)-1])
}

func TestVolatility(t *testing.T) {
	flat := []float64{100, 100, 100, 100}
	assert.Zero(t, Volatility(flat, 20))

	noisy := []float64{100, 110, 100, 110, 100}
	assert.Greater(t, Volatility(noisy, 20), 0.0)

	assert.Zero(t, Volatility([]float64{100}, 20))
	assert.Zero(t, Volatility(nil, 20))
}
