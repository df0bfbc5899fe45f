package models

import "time"

type OrderSide string

const (
	OrderBuy        OrderSide = "BUY"
	OrderSell       OrderSide = "SELL"
	OrderStopLoss   OrderSide = "STOP_LOSS"
	OrderTakeProfit OrderSide = "TAKE_PROFIT"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderFailed          OrderStatus = "FAILED"
)

// Order — торговый ордер. Пока активен, им владеет координатор исполнения,
// леджер получает только копии.
type Order struct {
	ID           string
	Ticker       string
	Side         OrderSide
	Price        float64 // запрошенная (лимитная) цена
	Volume       float64 // запрошенный объём
	FilledVolume float64
	AvgFillPrice float64
	Status       OrderStatus
	Reason       string // зачем создан: сигнал/flatten/risk_reduction
	CreatedAt    time.Time
}

// Remaining — неисполненный остаток.
func (o Order) Remaining() float64 { return o.Volume - o.FilledVolume }

// ExecutionReport — отчёт площадки об исполнении ордера.
type ExecutionReport struct {
	OrderID         string
	ExecTime        time.Time
	FilledVolume    float64
	FillPrice       float64
	Commission      float64
	RemainingVolume float64
}
