package service

import (
	"sync"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/notify"
	"trade_engine/pkg/logger"
)

const volumeEps = 1e-9

// Ledger — владелец позиций и состояния жизненного цикла бота.
// Все мутации сериализованы одним мьютексом: чтение read-modify-write
// позиции одного тикера не может перемешаться между двумя заливками.
// Наружу отдаём только копии.
type Ledger struct {
	mu sync.Mutex

	positions map[string]*models.Position
	applied   map[string]struct{} // order_id -> уже применён (ретраи шлют отчёты повторно)
	realized  float64

	state models.BotState
	n     notify.Notifier
}

func New(n notify.Notifier) *Ledger {
	if n == nil {
		n = notify.Noop{}
	}
	return &Ledger{
		positions: make(map[string]*models.Position),
		applied:   make(map[string]struct{}),
		state:     models.StateStarting,
		n:         n,
	}
}

// ApplyFill применяет исполненный ордер к позициям. Идемпотентен по order_id.
// Ордер без заливки (filled == 0) позиции не трогает, но помечается
// применённым он не будет — отчёт ещё может доисполниться.
func (l *Ledger) ApplyFill(order models.Order) {
	if order.FilledVolume <= 0 {
		return
	}
	if order.Side != models.OrderBuy && order.Side != models.OrderSell {
		logger.Warn("[LEDGER] fill %s: сторона %s позицию не меняет, пропускаем", order.ID, order.Side)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.applied[order.ID]; ok {
		logger.Info("[LEDGER] fill %s уже применён, пропускаем", order.ID)
		return
	}
	l.applied[order.ID] = struct{}{}

	price := order.AvgFillPrice
	if price <= 0 {
		price = order.Price
	}
	fillTime := order.CreatedAt
	if fillTime.IsZero() {
		fillTime = time.Now()
	}

	pos, ok := l.positions[order.Ticker]
	if !ok || pos.Status != models.PositionOpen {
		// новая экспозиция с нуля
		side := models.SideLong
		if order.Side == models.OrderSell {
			side = models.SideShort
		}
		l.positions[order.Ticker] = &models.Position{
			Ticker:   order.Ticker,
			Side:     side,
			Entry:    price,
			Current:  price,
			Volume:   order.FilledVolume,
			Status:   models.PositionOpen,
			OpenTime: fillTime,
		}
		logger.Info("[LEDGER] %s открыта %s %.4f @ %.4f", order.Ticker, side, order.FilledVolume, price)
		return
	}

	sameDirection := (order.Side == models.OrderBuy && pos.Side == models.SideLong) ||
		(order.Side == models.OrderSell && pos.Side == models.SideShort)

	if sameDirection {
		// усреднение: entry и volume меняются только вместе
		total := pos.Volume + order.FilledVolume
		pos.Entry = (pos.Entry*pos.Volume + price*order.FilledVolume) / total
		pos.Volume = total
		pos.Current = price
		logger.Info("[LEDGER] %s усреднение: vol=%.4f entry=%.4f", order.Ticker, pos.Volume, pos.Entry)
		return
	}

	// встречная заливка: частичное сокращение либо полное закрытие
	closeVol := order.FilledVolume
	if closeVol > pos.Volume {
		logger.Warn("[LEDGER] %s встречный объём %.4f больше позиции %.4f, излишек игнорируем",
			order.Ticker, closeVol, pos.Volume)
		closeVol = pos.Volume
	}

	var pnl float64
	if pos.Side == models.SideLong {
		pnl = (price - pos.Entry) * closeVol
	} else {
		pnl = (pos.Entry - price) * closeVol
	}

	pos.Volume -= closeVol
	pos.RealizedPnL += pnl
	pos.Current = price
	l.realized += pnl

	if pos.Volume <= volumeEps {
		pos.Volume = 0
		pos.Status = models.PositionClosed
		t := fillTime
		pos.CloseTime = &t
		logger.Info("[LEDGER] %s закрыта, pnl=%.2f", order.Ticker, pos.RealizedPnL)
	} else {
		logger.Info("[LEDGER] %s сокращена до %.4f, pnl+=%.2f", order.Ticker, pos.Volume, pnl)
	}
}

// MarkPrice обновляет текущую цену открытой позиции (для оценки экспозиции).
func (l *Ledger) MarkPrice(ticker string, price float64) {
	if price <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok := l.positions[ticker]; ok && pos.Status == models.PositionOpen {
		pos.Current = price
	}
}

// Snapshot — консистентная копия всех позиций на момент вызова.
func (l *Ledger) Snapshot() map[string]models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]models.Position, len(l.positions))
	for k, v := range l.positions {
		out[k] = *v
	}
	return out
}

func (l *Ledger) OpenPositions() []models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Position, 0, len(l.positions))
	for _, v := range l.positions {
		if v.Status == models.PositionOpen {
			out = append(out, *v)
		}
	}
	return out
}

func (l *Ledger) Position(ticker string) (models.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[ticker]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// RealizedPnL — суммарный реализованный результат за время работы процесса.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

func (l *Ledger) State() models.BotState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SetState — переход жизненного цикла. Логируем каждый переход и запускаем
// обработчик нового состояния.
func (l *Ledger) SetState(newState models.BotState) {
	l.mu.Lock()
	old := l.state
	l.state = newState
	openCount := 0
	for _, v := range l.positions {
		if v.Status == models.PositionOpen {
			openCount++
		}
	}
	l.mu.Unlock()

	if old == newState {
		return
	}
	logger.Info("[STATE] %s -> %s", old, newState)

	switch newState {
	case models.StateStarting:
		logger.Info("[STATE] инициализация леджера")
	case models.StateRunning:
		logger.Info("[STATE] бот запущен")
		l.n.Sendf("🤖 Бот запущен")
	case models.StatePaused:
		logger.Warn("[STATE] пауза — новые позиции не открываем")
		l.n.Sendf("⏸ Пауза: новые входы остановлены")
	case models.StateShuttingDown:
		if openCount > 0 {
			logger.Warn("[STATE] shutdown: осталось %d открытых позиций", openCount)
			l.n.Sendf("⚠️ Shutdown: осталось %d открытых позиций", openCount)
		}
	case models.StateError:
		logger.Critical("[STATE] бот в состоянии ERROR")
		if openCount > 0 {
			logger.Critical("[STATE] ERROR при %d открытых позициях!", openCount)
			l.n.Sendf("🆘 ERROR: %d открытых позиций требуют внимания", openCount)
		}
	}
}
