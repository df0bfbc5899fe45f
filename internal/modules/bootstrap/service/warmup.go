package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"trade_engine/internal/modules/config"
	mdsvc "trade_engine/internal/modules/marketdata/service"
	"trade_engine/internal/notify"
	"trade_engine/pkg/logger"
)

// Warmuper прогревает вселенную перед стартом цикла: по каждому тикеру
// должен отдаваться хотя бы один закрытый бар нужного таймфрейма.
type Warmuper struct {
	data mdsvc.Source
	n    notify.Notifier
	cfg  *config.Config

	// ограничитель параллелизма, чтобы не словить rate limit
	sem chan struct{}
}

func NewWarmuper(data mdsvc.Source, n notify.Notifier, cfg *config.Config) *Warmuper {
	return &Warmuper{
		data: data,
		n:    n,
		cfg:  cfg,
		sem:  make(chan struct{}, 8),
	}
}

// Warmup — ошибка, только если ни один инструмент не дал данных:
// торговать тогда нечем. Частичные пропуски — предупреждение.
func (w *Warmuper) Warmup(ctx context.Context) error {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		alive int
		dead  []string
	)

	for _, ticker := range w.cfg.Tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			w.sem <- struct{}{}
			defer func() { <-w.sem }()

			candles, err := w.data.GetRecentBars(ctx, ticker, w.cfg.Timeframe)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || len(candles) == 0 {
				logger.Warn("[BOOT] %s: нет свечей %s (%v)", ticker, w.cfg.Timeframe, err)
				dead = append(dead, ticker)
				return
			}
			alive++
		}(ticker)
	}
	wg.Wait()

	if len(dead) > 0 {
		w.n.Sendf("⚠️ Warmup: без данных %d из %d тикеров: %v", len(dead), len(w.cfg.Tickers), dead)
	}
	if alive == 0 {
		return errors.New("warmup: no instrument returned candles")
	}

	logger.Info("[BOOT] warmup ok: %d/%d тикеров с данными", alive, len(w.cfg.Tickers))
	return nil
}
