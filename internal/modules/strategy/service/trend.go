package service

import (
	"time"

	"trade_engine/internal/indicator"
	"trade_engine/internal/models"
)

// TrendFollowing — пересечение EMA fast/slow с подтверждением MACD.
type TrendFollowing struct {
	emaFast    int
	emaSlow    int
	macdSignal int
	slPct      float64
	tpPct      float64
}

func NewTrendFollowing() *TrendFollowing {
	return &TrendFollowing{
		emaFast:    12,
		emaSlow:    26,
		macdSignal: 9,
		slPct:      0.02,
		tpPct:      0.04,
	}
}

func (s *TrendFollowing) Name() models.StrategyType { return models.StrategyTrendFollowing }

func (s *TrendFollowing) Analyze(ticker string, candles []models.Candle) []models.Signal {
	if len(candles) < 50 {
		return nil
	}

	px := closes(candles)
	fast := indicator.EMA(px, s.emaFast)
	slow := indicator.EMA(px, s.emaSlow)
	macd, sig := indicator.MACD(px, s.emaFast, s.emaSlow, s.macdSignal)

	n := len(px) - 1
	last := px[n]

	crossedUp := fast[n] > slow[n] && fast[n-1] <= slow[n-1]
	crossedDown := fast[n] < slow[n] && fast[n-1] >= slow[n-1]

	var out []models.Signal
	switch {
	case crossedUp && macd[n] > sig[n]:
		out = append(out, models.Signal{
			Ticker:     ticker,
			Action:     models.EnterLong,
			Price:      last,
			Confidence: 0.7,
			StopLoss:   last * (1 - s.slPct),
			TakeProfit: last * (1 + s.tpPct),
			Strategy:   models.StrategyTrendFollowing,
			Metadata: map[string]float64{
				"ema_diff":  fast[n] - slow[n],
				"macd_diff": macd[n] - sig[n],
			},
			CreatedAt: time.Now(),
		})
	case crossedDown && macd[n] < sig[n]:
		out = append(out, models.Signal{
			Ticker:     ticker,
			Action:     models.EnterShort,
			Price:      last,
			Confidence: 0.7,
			StopLoss:   last * (1 + s.slPct),
			TakeProfit: last * (1 - s.tpPct),
			Strategy:   models.StrategyTrendFollowing,
			Metadata: map[string]float64{
				"ema_diff":  fast[n] - slow[n],
				"macd_diff": macd[n] - sig[n],
			},
			CreatedAt: time.Now(),
		})
	}
	return out
}
