package service

import (
	"time"

	"trade_engine/internal/indicator"
	"trade_engine/internal/models"
)

// MeanReversion — RSI на экстремумах: перепроданность покупаем,
// перекупленность продаём.
type MeanReversion struct {
	period     int
	oversold   float64
	overbought float64
	slPct      float64
	tpPct      float64
}

func NewMeanReversion() *MeanReversion {
	return &MeanReversion{
		period:     14,
		oversold:   30,
		overbought: 70,
		slPct:      0.02,
		tpPct:      0.03,
	}
}

func (s *MeanReversion) Name() models.StrategyType { return models.StrategyMeanReversion }

func (s *MeanReversion) Analyze(ticker string, candles []models.Candle) []models.Signal {
	if len(candles) < s.period+2 {
		return nil
	}

	px := closes(candles)
	rsi := indicator.RSI(px, s.period)

	n := len(px) - 1
	last := px[n]

	var out []models.Signal
	switch {
	case rsi[n] < s.oversold:
		// чем глубже перепроданность, тем увереннее сигнал
		conf := 0.6 + 0.4*(s.oversold-rsi[n])/s.oversold
		out = append(out, models.Signal{
			Ticker:     ticker,
			Action:     models.EnterLong,
			Price:      last,
			Confidence: clamp01(conf),
			StopLoss:   last * (1 - s.slPct),
			TakeProfit: last * (1 + s.tpPct),
			Strategy:   models.StrategyMeanReversion,
			Metadata:   map[string]float64{"rsi": rsi[n]},
			CreatedAt:  time.Now(),
		})
	case rsi[n] > s.overbought:
		conf := 0.6 + 0.4*(rsi[n]-s.overbought)/(100-s.overbought)
		out = append(out, models.Signal{
			Ticker:     ticker,
			Action:     models.EnterShort,
			Price:      last,
			Confidence: clamp01(conf),
			StopLoss:   last * (1 + s.slPct),
			TakeProfit: last * (1 - s.tpPct),
			Strategy:   models.StrategyMeanReversion,
			Metadata:   map[string]float64{"rsi": rsi[n]},
			CreatedAt:  time.Now(),
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
