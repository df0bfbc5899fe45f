package models

import "time"

type PositionStatus string

const (
	PositionOpen    PositionStatus = "OPEN"
	PositionClosed  PositionStatus = "CLOSED"
	PositionPending PositionStatus = "PENDING"
)

// PositionSide как на бирже: "long"/"short". Объём всегда положительный.
type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

type Position struct {
	Ticker      string
	Side        PositionSide
	Entry       float64 // средняя цена входа (усредняется при доборе)
	Current     float64
	Volume      float64
	Status      PositionStatus
	OpenTime    time.Time
	CloseTime   *time.Time
	RealizedPnL float64
}

// Notional — грубая оценка экспозиции по последней известной цене.
func (p Position) Notional() float64 {
	px := p.Current
	if px <= 0 {
		px = p.Entry
	}
	return p.Volume * px
}
