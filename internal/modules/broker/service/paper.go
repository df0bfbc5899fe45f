package service

import (
	"context"
	"sync"
	"time"

	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

// Paper — бумажная площадка: полная заливка по запрошенной цене,
// без комиссии. Для режима paper и интеграционных прогонов.
type Paper struct {
	mu        sync.Mutex
	submitted map[string]models.Order
}

func NewPaper() *Paper {
	return &Paper{submitted: make(map[string]models.Order)}
}

func (p *Paper) SubmitOrder(_ context.Context, order models.Order) (models.ExecutionReport, error) {
	p.mu.Lock()
	p.submitted[order.ID] = order
	p.mu.Unlock()

	logger.Info("[PAPER] fill %s %s %.4f @ %.4f", order.Ticker, order.Side, order.Volume, order.Price)
	return models.ExecutionReport{
		OrderID:         order.ID,
		ExecTime:        time.Now(),
		FilledVolume:    order.Volume,
		FillPrice:       order.Price,
		Commission:      0,
		RemainingVolume: 0,
	}, nil
}

func (p *Paper) CancelOrder(_ context.Context, order models.Order) error {
	p.mu.Lock()
	delete(p.submitted, order.ID)
	p.mu.Unlock()
	return nil
}

// Submitted — для тестов: что площадка реально видела.
func (p *Paper) Submitted(orderID string) (models.Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.submitted[orderID]
	return o, ok
}
