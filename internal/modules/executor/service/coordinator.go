package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"trade_engine/internal/models"
	broker "trade_engine/internal/modules/broker/service"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

// ErrValidation — ордер не прошёл локальную проверку. Не ретраится.
var ErrValidation = errors.New("invalid order")

// ExecutionError — площадка не исполнила ордер. Решение о ретрае
// принимает вызывающий, координатор ошибку не глотает.
type ExecutionError struct {
	OrderID string
	Ticker  string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s (%s): %v", e.OrderID, e.Ticker, e.Err)
}

func (e *ExecutionError) Cause() error  { return e.Err }
func (e *ExecutionError) Unwrap() error { return e.Err }

// LastPriceSource — минимум, который нужен для closeAll: последняя
// наблюдаемая цена инструмента.
type LastPriceSource interface {
	GetLastPrice(ctx context.Context, ticker string) (float64, error)
}

// Coordinator — единственный владелец таблицы активных ордеров.
type Coordinator struct {
	cfg   *config.Config
	venue broker.Venue
	data  LastPriceSource

	mu      sync.Mutex
	active  map[string]*models.Order
	counter int64
}

func NewCoordinator(cfg *config.Config, venue broker.Venue, data LastPriceSource) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		venue:  venue,
		data:   data,
		active: make(map[string]*models.Order),
	}
}

// nextOrderID — уникален в рамках процесса: дата + монотонный счётчик.
func (c *Coordinator) nextOrderID() string {
	c.counter++
	return fmt.Sprintf("%s_%d", time.Now().Format("20060102"), c.counter)
}

// Execute проводит ордер через валидацию, слиппедж и площадку.
// Слиппедж двигает лимитную цену в невыгодную сторону: покупки дороже,
// продажи дешевле.
func (c *Coordinator) Execute(ctx context.Context, order models.Order) (models.ExecutionReport, error) {
	if err := c.validate(order); err != nil {
		return models.ExecutionReport{}, err
	}

	c.mu.Lock()
	if order.ID == "" {
		order.ID = c.nextOrderID()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.Status = models.OrderPending
	registered := order
	c.active[order.ID] = &registered
	c.mu.Unlock()

	toVenue := order
	toVenue.Price = c.applySlippage(order.Side, order.Price)

	report, err := c.venue.SubmitOrder(ctx, toVenue)
	if err != nil {
		c.setStatus(order.ID, models.OrderFailed)
		return models.ExecutionReport{}, &ExecutionError{OrderID: order.ID, Ticker: order.Ticker, Err: err}
	}
	report.OrderID = order.ID

	c.applyReport(report)

	logger.Info("[EXEC] %s %s %s %.4f @ %.4f -> filled %.4f",
		order.ID, order.Ticker, order.Side, order.Volume, toVenue.Price, report.FilledVolume)
	return report, nil
}

func (c *Coordinator) validate(order models.Order) error {
	if order.Price <= 0 {
		return errors.Wrapf(ErrValidation, "price %.4f", order.Price)
	}
	if order.Volume <= 0 {
		return errors.Wrapf(ErrValidation, "volume %.4f", order.Volume)
	}
	if !c.cfg.Tracked(order.Ticker) {
		return errors.Wrapf(ErrValidation, "ticker %s вне вселенной", order.Ticker)
	}
	return nil
}

func (c *Coordinator) applySlippage(side models.OrderSide, price float64) float64 {
	s := c.cfg.Slippage
	if s <= 0 {
		return price
	}
	if side == models.OrderBuy || side == models.OrderTakeProfit {
		return price * (1 + s)
	}
	return price * (1 - s)
}

func (c *Coordinator) setStatus(orderID string, st models.OrderStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.active[orderID]; ok {
		o.Status = st
	}
}

func (c *Coordinator) applyReport(report models.ExecutionReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.active[report.OrderID]
	if !ok {
		return
	}

	switch {
	case report.RemainingVolume <= 0 && report.FilledVolume > 0:
		o.Status = models.OrderFilled
	case report.FilledVolume > 0:
		o.Status = models.OrderPartiallyFilled
	default:
		o.Status = models.OrderRejected
	}
	o.FilledVolume = report.FilledVolume
	if report.FillPrice > 0 {
		o.AvgFillPrice = report.FillPrice
	}
}

// Cancel — false, если ордер не в отменяемом статусе. CANCELLED ставим
// только после подтверждения площадки.
func (c *Coordinator) Cancel(ctx context.Context, orderID string) bool {
	c.mu.Lock()
	o, ok := c.active[orderID]
	if !ok || !cancellable(o.Status) {
		c.mu.Unlock()
		return false
	}
	snapshot := *o
	c.mu.Unlock()

	if err := c.venue.CancelOrder(ctx, snapshot); err != nil {
		logger.Warn("[EXEC] отмена %s не подтверждена: %v", orderID, err)
		return false
	}

	c.setStatus(orderID, models.OrderCancelled)
	logger.Info("[EXEC] %s отменён", orderID)
	return true
}

func cancellable(st models.OrderStatus) bool {
	return st == models.OrderPending || st == models.OrderPartiallyFilled
}

// CloseAll — для каждого живого ордера синтезирует встречный на
// неисполненный остаток по последней наблюдаемой цене. Ошибки по одному
// ордеру логируются и не прерывают обход остальных: на shutdown важна
// попытка по каждому.
func (c *Coordinator) CloseAll(ctx context.Context) []models.ExecutionReport {
	c.mu.Lock()
	live := make([]models.Order, 0, len(c.active))
	for _, o := range c.active {
		if cancellable(o.Status) {
			live = append(live, *o)
		}
	}
	c.mu.Unlock()

	reports := make([]models.ExecutionReport, 0, len(live))
	for _, o := range live {
		px, err := c.data.GetLastPrice(ctx, o.Ticker)
		if err != nil || px <= 0 {
			logger.Warn("[EXEC] closeAll %s: нет последней цены (%v), берём цену ордера", o.ID, err)
			px = o.Price
		}

		opp := models.Order{
			Ticker:    o.Ticker,
			Side:      opposite(o.Side),
			Price:     px,
			Volume:    o.Remaining(),
			Reason:    "close_" + o.ID,
			CreatedAt: time.Now(),
		}
		if opp.Volume <= 0 {
			continue
		}

		report, err := c.Execute(ctx, opp)
		if err != nil {
			logger.Error("[EXEC] closeAll %s: %v", o.ID, err)
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

func opposite(side models.OrderSide) models.OrderSide {
	if side == models.OrderBuy || side == models.OrderTakeProfit {
		return models.OrderSell
	}
	return models.OrderBuy
}

// Order — копия ордера из таблицы активных.
func (c *Coordinator) Order(orderID string) (models.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.active[orderID]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

func (c *Coordinator) ActiveOrders() []models.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Order, 0, len(c.active))
	for _, o := range c.active {
		out = append(out, *o)
	}
	return out
}
