package service

import "trade_engine/internal/models"

// Strategy — генератор кандидатов-сигналов по одному инструменту.
// Реализации чистые: вся история приходит срезом свечей, никакого I/O.
type Strategy interface {
	Analyze(ticker string, candles []models.Candle) []models.Signal
	Name() models.StrategyType
}

func closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func volumes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
