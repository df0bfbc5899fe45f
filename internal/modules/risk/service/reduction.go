package service

import (
	"time"

	"trade_engine/internal/models"
)

// ReductionOrder — чистая функция (уровень риска, позиция) -> корректирующий
// ордер. HIGH режет 50% объёма, EXTREME — 80%. Гейт сам ничего не исполняет,
// ордер потребляет ночная/риск-редукционная рутина.
func ReductionOrder(level models.RiskLevel, pos models.Position) *models.Order {
	if pos.Status != models.PositionOpen || pos.Volume <= 0 {
		return nil
	}

	var frac float64
	switch level {
	case models.RiskHigh:
		frac = 0.5
	case models.RiskExtreme:
		frac = 0.8
	default:
		return nil
	}

	side := models.OrderSell
	if pos.Side == models.SideShort {
		side = models.OrderBuy
	}

	return &models.Order{
		Ticker:    pos.Ticker,
		Side:      side,
		Price:     pos.Current,
		Volume:    pos.Volume * frac,
		Status:    models.OrderPending,
		Reason:    "risk_reduction_" + string(level),
		CreatedAt: time.Now(),
	}
}

// DrawdownTracker следит за пиком капитала и текущей просадкой.
type DrawdownTracker struct {
	maxDrawdown float64
	peak        float64
	current     float64
}

func NewDrawdownTracker(maxDrawdown float64) *DrawdownTracker {
	return &DrawdownTracker{maxDrawdown: maxDrawdown}
}

// Update — true, когда просадка превысила допустимую.
func (d *DrawdownTracker) Update(value float64) bool {
	if value > d.peak {
		d.peak = value
		d.current = 0
		return false
	}
	if d.peak > 0 {
		d.current = (d.peak - value) / d.peak
	}
	return d.current > d.maxDrawdown
}

func (d *DrawdownTracker) Current() float64 { return d.current }
