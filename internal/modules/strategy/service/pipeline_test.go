package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
)

func pipelineConfig(strategies ...string) *config.Config {
	cfg := &config.Config{}
	cfg.Strategies = strategies
	cfg.MinConfidence = 0.65
	return cfg
}

// свечи с постоянным объёмом: подтверждение объёмом всегда проходит
func flatVolumeCandles(closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	start := time.Now().Add(-time.Duration(len(closes)) * 5 * time.Minute)
	for i, c := range closes {
		out[i] = models.Candle{
			Start: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:  c, High: c * 1.01, Low: c * 0.99, Close: c,
			Volume: 100,
		}
	}
	return out
}

func TestNewPipelineUnknownStrategySkipped(t *testing.T) {
	p := NewPipeline(pipelineConfig("trend_following", "astrology"))
	assert.Len(t, p.strategies, 1)
}

func TestDedupeBestKeepsHighestConfidence(t *testing.T) {
	in := []models.Signal{
		{Ticker: "A", Action: models.EnterLong, Confidence: 0.7},
		{Ticker: "A", Action: models.EnterLong, Confidence: 0.9},
		{Ticker: "A", Action: models.ExitLong, Confidence: 0.6},
		{Ticker: "B", Action: models.EnterShort, Confidence: 0.8},
	}

	out := dedupeBest(in)
	require.Len(t, out, 3)
	// отсортировано по убыванию уверенности
	assert.InDelta(t, 0.9, out[0].Confidence, 1e-9)
	assert.Equal(t, "A", out[0].Ticker)
	assert.InDelta(t, 0.8, out[1].Confidence, 1e-9)
	assert.InDelta(t, 0.6, out[2].Confidence, 1e-9)
}

func TestMeanReversionOversold(t *testing.T) {
	s := NewMeanReversion()

	// затяжное падение загоняет RSI в перепроданность
	closes := make([]float64, 40)
	px := 100.0
	for i := range closes {
		px *= 0.99
		closes[i] = px
	}

	signals := s.Analyze("BTC-USDT-SWAP", flatVolumeCandles(closes))
	require.Len(t, signals, 1)
	sig := signals[0]
	assert.Equal(t, models.EnterLong, sig.Action)
	assert.Equal(t, models.StrategyMeanReversion, sig.Strategy)
	assert.Less(t, sig.StopLoss, sig.Price)
	assert.Greater(t, sig.TakeProfit, sig.Price)
	assert.GreaterOrEqual(t, sig.Confidence, 0.6)
}

func TestMeanReversionOverbought(t *testing.T) {
	s := NewMeanReversion()

	closes := make([]float64, 40)
	px := 100.0
	for i := range closes {
		px *= 1.01
		closes[i] = px
	}

	signals := s.Analyze("BTC-USDT-SWAP", flatVolumeCandles(closes))
	require.Len(t, signals, 1)
	assert.Equal(t, models.EnterShort, signals[0].Action)
	assert.Greater(t, signals[0].StopLoss, signals[0].Price)
}

func TestTrendFollowingNeedsHistory(t *testing.T) {
	s := NewTrendFollowing()
	assert.Empty(t, s.Analyze("BTC-USDT-SWAP", flatVolumeCandles([]float64{1, 2, 3})))
}

func TestBreakoutChannel(t *testing.T) {
	s := NewBreakout()

	// плоский канал и пробой вверх последним баром
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	candles := flatVolumeCandles(closes)
	candles[len(candles)-1].Close = 105

	signals := s.Analyze("BTC-USDT-SWAP", candles)
	require.Len(t, signals, 1)
	assert.Equal(t, models.EnterLong, signals[0].Action)
	assert.InDelta(t, 101, signals[0].Metadata["channel_high"], 1e-9)

	// пробой вниз
	candles[len(candles)-1].Close = 95
	signals = s.Analyze("BTC-USDT-SWAP", candles)
	require.Len(t, signals, 1)
	assert.Equal(t, models.EnterShort, signals[0].Action)
}

func TestPipelineFiltersLowConfidence(t *testing.T) {
	p := NewPipeline(pipelineConfig("mean_reversion"))
	p.minConfidence = 1.01 // заведомо выше любого сигнала

	closes := make([]float64, 40)
	px := 100.0
	for i := range closes {
		px *= 0.995
		closes[i] = px
	}

	out := p.Analyze(map[string][]models.Candle{"BTC-USDT-SWAP": flatVolumeCandles(closes)})
	assert.Empty(t, out)
	assert.Empty(t, p.History())
}

func TestPipelineVolumeConfirmation(t *testing.T) {
	p := NewPipeline(pipelineConfig("mean_reversion"))

	closes := make([]float64, 40)
	px := 100.0
	for i := range closes {
		px *= 0.99
		closes[i] = px
	}
	candles := flatVolumeCandles(closes)

	out := p.Analyze(map[string][]models.Candle{"BTC-USDT-SWAP": candles})
	require.Len(t, out, 1)

	// высохший объём последнего бара валит подтверждение
	candles[len(candles)-1].Volume = 1
	out = p.Analyze(map[string][]models.Candle{"BTC-USDT-SWAP": candles})
	assert.Empty(t, out)

	// история накапливается append-only: только подтверждённый сигнал
	assert.Len(t, p.History(), 1)
}

func TestVolumeConfirmsShortHistory(t *testing.T) {
	// мало баров — подтверждение не валим
	assert.True(t, volumeConfirms(flatVolumeCandles([]float64{1, 2, 3})))
	assert.True(t, volumeConfirms(nil))
}
