package runner

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"trade_engine/internal/helper"
	"trade_engine/internal/indicator"
	"trade_engine/internal/models"
	brokersvc "trade_engine/internal/modules/broker/service"
	"trade_engine/internal/modules/config"
	execsvc "trade_engine/internal/modules/executor/service"
	healthsvc "trade_engine/internal/modules/health/service"
	journalsvc "trade_engine/internal/modules/journal/service"
	ledgersvc "trade_engine/internal/modules/ledger/service"
	mdsvc "trade_engine/internal/modules/marketdata/service"
	risksvc "trade_engine/internal/modules/risk/service"
	strategysvc "trade_engine/internal/modules/strategy/service"
	"trade_engine/internal/notify"
	"trade_engine/pkg/logger"
	"trade_engine/pkg/retry"
)

// fetchWorkers — одновременных запросов свечей к площадке.
const fetchWorkers = 4

// Runner — оркестратор торгового цикла: данные -> сигналы -> риск ->
// исполнение -> леджер. Один цикл на половину бара, пауза не короче floor.
type Runner struct {
	cfg    *config.Config
	led    *ledgersvc.Ledger
	gate   *risksvc.Gate
	pipe   *strategysvc.Pipeline
	exec   *execsvc.Coordinator
	data   mdsvc.Source
	jrnl   *journalsvc.Journal
	health *healthsvc.State
	n      notify.Notifier

	dd *risksvc.DrawdownTracker

	// трейлинг-стопы по открытым позициям: пик цены и подтянутый стоп
	peaks      map[string]float64
	trailStops map[string]float64

	// дневной стоп на новые входы; выходы работают всегда
	dayStart    time.Time
	dayBaseline float64
	haltEntries bool

	fetchRetry retry.Policy
	execRetry  retry.Policy

	shutdownOnce sync.Once
}

func New(
	cfg *config.Config,
	led *ledgersvc.Ledger,
	gate *risksvc.Gate,
	pipe *strategysvc.Pipeline,
	exec *execsvc.Coordinator,
	data mdsvc.Source,
	jrnl *journalsvc.Journal,
	health *healthsvc.State,
	n notify.Notifier,
) *Runner {
	return &Runner{
		cfg:    cfg,
		led:    led,
		gate:   gate,
		pipe:   pipe,
		exec:   exec,
		data:   data,
		jrnl:   jrnl,
		health: health,
		n:      n,

		dd:          risksvc.NewDrawdownTracker(cfg.MaxDrawdown),
		peaks:       make(map[string]float64),
		trailStops:  make(map[string]float64),
		dayStart:    startOfDay(time.Now()),
		dayBaseline: cfg.InitialBalance,

		fetchRetry: retry.Policy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Classify:    mdsvc.Retryable,
		},
		execRetry: retry.Policy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Classify:    brokersvc.Retryable,
		},
	}
}

// Run крутит циклы до отмены контекста. Паника внутри цикла переводит
// бота в ERROR и возвращает true: вызывающий обязан провести Shutdown
// и погасить процесс. Процесс не роняем.
func (r *Runner) Run(ctx context.Context) (fatal bool) {
	r.jrnl.RecordTransition(ctx, r.led.State(), models.StateRunning)
	r.led.SetState(models.StateRunning)
	r.health.SetReady(true)
	r.health.SetBotState(models.StateRunning)
	r.n.Sendf("🤖 Движок запущен | режим=%s | тикеров=%d", r.cfg.Mode, len(r.cfg.Tickers))

	interval := helper.CycleInterval(r.cfg.Timeframe, r.cfg.CycleFloor)
	logger.Info("[RUNNER] таймфрейм %s, пауза между циклами %s", r.cfg.Timeframe, interval)

	for {
		if ctx.Err() != nil {
			return false
		}
		if !r.safeCycle(ctx) {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

// safeCycle — false, когда цикл упал и торговлю надо останавливать.
func (r *Runner) safeCycle(ctx context.Context) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			logger.Critical("[RUNNER] паника в цикле: %v", p)
			r.jrnl.RecordTransition(context.Background(), r.led.State(), models.StateError)
			r.led.SetState(models.StateError)
			r.health.SetBotState(models.StateError)
			r.health.SetReady(false)
			r.n.Sendf("🆘 Паника в торговом цикле: %v", p)
			ok = false
		}
	}()

	r.cycle(ctx)
	return true
}

func (r *Runner) cycle(ctx context.Context) {
	span := opentracing.StartSpan("cycle")
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	r.rolloverDay(time.Now())

	market := r.fetchMarket(ctx)
	if len(market) == 0 {
		logger.Warn("[RUNNER] цикл без данных, пропускаем")
		return
	}

	// отметка цен до анализа: экспозиция в леджере актуальна для гейта
	for ticker, candles := range market {
		if len(candles) > 0 {
			r.led.MarkPrice(ticker, candles[len(candles)-1].Close)
		}
	}

	r.applyTrailingStops(ctx, market)

	equity := r.cfg.InitialBalance + r.led.RealizedPnL()
	r.updateRisk(ctx, market, equity)

	signals := r.analyze(ctx, market)
	accepted := r.guard(ctx, signals, equity)
	r.execute(ctx, accepted, equity)

	r.health.TouchCycle(time.Now())
	r.health.SetOpenPositions(len(r.led.OpenPositions()))
}

// fetchMarket собирает свечи по вселенной инструментов: ограниченный
// фан-аут, ретраи на временных ошибках. Инструмент без данных просто
// выпадает из цикла.
func (r *Runner) fetchMarket(ctx context.Context) map[string][]models.Candle {
	span, ctx := opentracing.StartSpanFromContext(ctx, "fetch_market")
	defer span.Finish()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, fetchWorkers)
		market = make(map[string][]models.Candle, len(r.cfg.Tickers))
	)

	for _, ticker := range r.cfg.Tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			candles, err := retry.Do(ctx, r.fetchRetry, func(ctx context.Context) ([]models.Candle, error) {
				return r.data.GetRecentBars(ctx, ticker, r.cfg.Timeframe)
			})
			if err != nil {
				logger.Error("[RUNNER] свечи %s не получены: %v", ticker, err)
				return
			}
			if len(candles) == 0 {
				return
			}

			mu.Lock()
			market[ticker] = candles
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()
	return market
}

func (r *Runner) analyze(ctx context.Context, market map[string][]models.Candle) []models.Signal {
	span, ctx := opentracing.StartSpanFromContext(ctx, "analyze")
	defer span.Finish()

	signals := r.pipe.Analyze(market)
	for _, s := range signals {
		logger.Info("[RUNNER] сигнал %s %s @ %.4f (conf=%.2f, %s)",
			s.Ticker, s.Action, s.Price, s.Confidence, s.Strategy)
		r.jrnl.RecordSignal(ctx, s)
	}
	return signals
}

// updateRisk пересчитывает уровень риска и дневной стоп, при HIGH/EXTREME
// режет открытые позиции корректирующими ордерами.
func (r *Runner) updateRisk(ctx context.Context, market map[string][]models.Candle, equity float64) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "update_risk")
	defer span.Finish()

	r.dd.Update(equity)

	vol := marketVolatility(market)
	level := r.gate.UpdateRiskLevel(r.dd.Current(), vol)

	if !r.haltEntries && r.gate.CheckDailyLossLimit(r.dayBaseline, equity) {
		r.haltEntries = true
		r.n.Sendf("⛔️ Дневной лимит убытков, новые входы остановлены до завтра")
	}

	if level != models.RiskHigh && level != models.RiskExtreme {
		return
	}
	for _, pos := range r.led.OpenPositions() {
		order := risksvc.ReductionOrder(level, pos)
		if order == nil {
			continue
		}
		logger.Warn("[RUNNER] риск %s: режем %s на %.4f", level, pos.Ticker, order.Volume)
		r.submit(ctx, *order)
	}
}

// applyTrailingStops подтягивает стоп за пиком цены каждой открытой
// позиции и закрывает её при пробое. Стоп двигается только в выгодную
// сторону.
func (r *Runner) applyTrailingStops(ctx context.Context, market map[string][]models.Candle) {
	if r.cfg.TrailingStopPct <= 0 {
		return
	}

	open := make(map[string]struct{})
	for _, pos := range r.led.OpenPositions() {
		open[pos.Ticker] = struct{}{}

		candles := market[pos.Ticker]
		if len(candles) == 0 {
			continue
		}
		px := candles[len(candles)-1].Close

		peak, ok := r.peaks[pos.Ticker]
		if !ok {
			peak = pos.Entry
		}
		if pos.Side == models.SideLong && px > peak || pos.Side == models.SideShort && px < peak {
			peak = px
		}
		r.peaks[pos.Ticker] = peak

		stop := risksvc.TrailingStop(pos.Side, peak, r.trailStops[pos.Ticker], r.cfg.TrailingStopPct)
		r.trailStops[pos.Ticker] = stop

		breached := pos.Side == models.SideLong && px <= stop ||
			pos.Side == models.SideShort && px >= stop
		if !breached {
			continue
		}

		logger.Warn("[RUNNER] %s: трейлинг-стоп %.4f пробит ценой %.4f, закрываем", pos.Ticker, stop, px)
		side := models.OrderSell
		if pos.Side == models.SideShort {
			side = models.OrderBuy
		}
		r.submit(ctx, models.Order{
			Ticker:    pos.Ticker,
			Side:      side,
			Price:     px,
			Volume:    pos.Volume,
			Reason:    "trailing_stop",
			CreatedAt: time.Now(),
		})
	}

	// закрытые позиции не должны тащить старые пики при переоткрытии
	for ticker := range r.peaks {
		if _, ok := open[ticker]; !ok {
			delete(r.peaks, ticker)
			delete(r.trailStops, ticker)
		}
	}
}

// guard — риск-гейт поверх сигналов; при дневном стопе входы выкидываем
// до валидации, выходы остаются.
func (r *Runner) guard(ctx context.Context, signals []models.Signal, equity float64) []models.Signal {
	span, _ := opentracing.StartSpanFromContext(ctx, "guard")
	defer span.Finish()

	if r.haltEntries {
		kept := signals[:0]
		for _, s := range signals {
			if s.Action.IsEntry() {
				logger.Warn("[RUNNER] %s %s: входы остановлены дневным лимитом", s.Ticker, s.Action)
				continue
			}
			kept = append(kept, s)
		}
		signals = kept
	}
	return r.gate.Validate(signals, r.led.Snapshot(), equity)
}

func (r *Runner) execute(ctx context.Context, signals []models.Signal, equity float64) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "execute")
	defer span.Finish()

	for _, s := range signals {
		order, ok := r.buildOrder(s, equity)
		if !ok {
			continue
		}
		r.submit(ctx, order)
	}
}

// buildOrder превращает сигнал в ордер. Вход сайзится риском на сделку,
// выход всегда гасит весь объём позиции.
func (r *Runner) buildOrder(s models.Signal, equity float64) (models.Order, bool) {
	order := models.Order{
		Ticker:    s.Ticker,
		Price:     s.Price,
		Reason:    string(s.Strategy),
		CreatedAt: time.Now(),
	}

	switch s.Action {
	case models.EnterLong:
		order.Side = models.OrderBuy
	case models.EnterShort:
		order.Side = models.OrderSell
	case models.ExitLong:
		order.Side = models.OrderSell
	case models.ExitShort:
		order.Side = models.OrderBuy
	default:
		return models.Order{}, false
	}

	if s.Action.IsEntry() {
		order.Volume = risksvc.PositionSize(equity, s.Price, s.StopLoss, r.cfg.RiskPerTrade)
		if order.Volume <= 0 {
			logger.Warn("[RUNNER] %s: нулевой размер позиции, сигнал пропущен", s.Ticker)
			return models.Order{}, false
		}
		return order, true
	}

	pos, ok := r.led.Position(s.Ticker)
	if !ok || pos.Status != models.PositionOpen || pos.Volume <= 0 {
		logger.Warn("[RUNNER] %s: сигнал на выход без открытой позиции", s.Ticker)
		return models.Order{}, false
	}
	order.Volume = pos.Volume
	return order, true
}

// submit проводит ордер через координатор с ретраями на временных ошибках
// площадки и применяет итог к леджеру.
func (r *Runner) submit(ctx context.Context, order models.Order) {
	report, err := retry.Do(ctx, r.execRetry, func(ctx context.Context) (models.ExecutionReport, error) {
		return r.exec.Execute(ctx, order)
	})
	if err != nil {
		logger.Error("[RUNNER] ордер %s %s не исполнен: %v", order.Ticker, order.Side, err)
		r.n.Sendf("❗️ [%s] Ордер %s не исполнен: %v", order.Ticker, order.Side, err)
		return
	}

	executed, ok := r.exec.Order(report.OrderID)
	if !ok {
		return
	}
	r.led.ApplyFill(executed)
	r.jrnl.RecordOrder(ctx, executed, report)

	if report.FilledVolume > 0 {
		r.n.Sendf("✅ [%s] %s %.4f @ %.4f", executed.Ticker, executed.Side, report.FilledVolume, report.FillPrice)
	}
}

// Shutdown — остановка торговли: гасим живые ордера и закрываем позиции.
// Идемпотентен: вызывается и из аварийного пути, и из lifecycle-хука,
// работу делает только первый вызов.
func (r *Runner) Shutdown(ctx context.Context) {
	r.shutdownOnce.Do(func() { r.shutdown(ctx) })
}

func (r *Runner) shutdown(ctx context.Context) {
	r.jrnl.RecordTransition(ctx, r.led.State(), models.StateShuttingDown)
	r.led.SetState(models.StateShuttingDown)
	r.health.SetBotState(models.StateShuttingDown)
	r.health.SetReady(false)

	for _, rep := range r.exec.CloseAll(ctx) {
		if executed, ok := r.exec.Order(rep.OrderID); ok {
			r.led.ApplyFill(executed)
			r.jrnl.RecordOrder(ctx, executed, rep)
		}
	}

	for _, pos := range r.led.OpenPositions() {
		side := models.OrderSell
		if pos.Side == models.SideShort {
			side = models.OrderBuy
		}
		r.submit(ctx, models.Order{
			Ticker:    pos.Ticker,
			Side:      side,
			Price:     pos.Current,
			Volume:    pos.Volume,
			Reason:    "shutdown_flatten",
			CreatedAt: time.Now(),
		})
	}

	pnl := r.led.RealizedPnL()
	logger.Info("[RUNNER] остановка завершена, реализованный pnl=%.2f", pnl)
	r.n.Sendf("🛑 Движок остановлен | pnl=%.2f | открытых позиций=%d", pnl, len(r.led.OpenPositions()))
}

// rolloverDay сбрасывает базу дневного лимита при смене календарного дня.
func (r *Runner) rolloverDay(now time.Time) {
	day := startOfDay(now)
	if day.Equal(r.dayStart) {
		return
	}
	r.dayStart = day
	r.dayBaseline = r.cfg.InitialBalance + r.led.RealizedPnL()
	if r.haltEntries {
		r.haltEntries = false
		logger.Info("[RUNNER] новый день, дневной стоп снят")
		r.n.Sendf("🌅 Новый торговый день, входы снова разрешены")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// marketVolatility — средняя волатильность по инструментам с данными.
func marketVolatility(market map[string][]models.Candle) float64 {
	if len(market) == 0 {
		return 0
	}
	sum, n := 0.0, 0
	for _, candles := range market {
		px := make([]float64, len(candles))
		for i, c := range candles {
			px[i] = c.Close
		}
		if v := indicator.Volatility(px, 20); v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
