package models

import "time"

type SignalAction string

const (
	EnterLong  SignalAction = "ENTER_LONG"
	EnterShort SignalAction = "ENTER_SHORT"
	ExitLong   SignalAction = "EXIT_LONG"
	ExitShort  SignalAction = "EXIT_SHORT"
	Hold       SignalAction = "HOLD"
)

// IsEntry — сигнал открывает новую экспозицию (важно для дневного лимита убытков).
func (a SignalAction) IsEntry() bool { return a == EnterLong || a == EnterShort }

type StrategyType string

const (
	StrategyTrendFollowing StrategyType = "trend_following"
	StrategyMeanReversion  StrategyType = "mean_reversion"
	StrategyBreakout       StrategyType = "breakout"
)

// Signal — торговый сигнал. Живёт один цикл, после создания не мутируется;
// история хранится append-only для аудита.
type Signal struct {
	Ticker     string
	Action     SignalAction
	Price      float64 // референсная цена на момент генерации
	Confidence float64 // [0,1]
	StopLoss   float64 // 0 == не задан
	TakeProfit float64 // 0 == не задан
	Strategy   StrategyType
	Metadata   map[string]float64
	CreatedAt  time.Time
}
