package models

import "time"

// Candle — закрытая OHLCV свеча.
type Candle struct {
	Ticker string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Start  time.Time
}

type BookLevel struct {
	Price  float64
	Volume float64
}

type OrderBook struct {
	Ticker string
	Bids   []BookLevel // по убыванию цены
	Asks   []BookLevel // по возрастанию цены
}
