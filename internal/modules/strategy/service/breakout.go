package service

import (
	"time"

	"trade_engine/internal/models"
)

// Breakout — выход цены за границы канала Дончиана последних period баров.
type Breakout struct {
	period int
	slPct  float64
	tpPct  float64
}

func NewBreakout() *Breakout {
	return &Breakout{
		period: 20,
		slPct:  0.02,
		tpPct:  0.05,
	}
}

func (s *Breakout) Name() models.StrategyType { return models.StrategyBreakout }

func (s *Breakout) Analyze(ticker string, candles []models.Candle) []models.Signal {
	if len(candles) < s.period+1 {
		return nil
	}

	n := len(candles) - 1
	last := candles[n].Close

	// канал строится по барам до текущего
	hi, lo := candles[n-s.period].High, candles[n-s.period].Low
	for _, c := range candles[n-s.period : n] {
		if c.High > hi {
			hi = c.High
		}
		if c.Low < lo {
			lo = c.Low
		}
	}

	var out []models.Signal
	switch {
	case last > hi:
		out = append(out, models.Signal{
			Ticker:     ticker,
			Action:     models.EnterLong,
			Price:      last,
			Confidence: 0.65,
			StopLoss:   last * (1 - s.slPct),
			TakeProfit: last * (1 + s.tpPct),
			Strategy:   models.StrategyBreakout,
			Metadata:   map[string]float64{"channel_high": hi, "channel_low": lo},
			CreatedAt:  time.Now(),
		})
	case last < lo:
		out = append(out, models.Signal{
			Ticker:     ticker,
			Action:     models.EnterShort,
			Price:      last,
			Confidence: 0.65,
			StopLoss:   last * (1 + s.slPct),
			TakeProfit: last * (1 - s.tpPct),
			Strategy:   models.StrategyBreakout,
			Metadata:   map[string]float64{"channel_high": hi, "channel_low": lo},
			CreatedAt:  time.Now(),
		})
	}
	return out
}
