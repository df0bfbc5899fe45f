package service

import (
	"math"
	"sync"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

// Gate — риск-фильтр сигналов. Сигналы не мутирует: либо пропускает
// как есть, либо отбрасывает с предупреждением в лог.
type Gate struct {
	cfg *config.Config

	mu    sync.Mutex
	level models.RiskLevel
}

func NewGate(cfg *config.Config) *Gate {
	return &Gate{
		cfg:   cfg,
		level: models.RiskLow,
	}
}

// Validate прогоняет сигналы через риск-ограничения на снапшоте позиций.
// Лимит позиций и плечо проверяются для каждого сигнала, включая выходы.
// capital <= 0 — плечо не посчитать, отбрасываем всё.
func (g *Gate) Validate(signals []models.Signal, positions map[string]models.Position, capital float64) []models.Signal {
	if len(signals) == 0 {
		return nil
	}
	if capital <= 0 {
		logger.Warn("[RISK] capital=%.2f, все сигналы отклонены", capital)
		return nil
	}

	openCount := 0
	grossNotional := 0.0
	for _, p := range positions {
		if p.Status == models.PositionOpen {
			openCount++
			grossNotional += p.Notional()
		}
	}

	accepted := make([]models.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Action == models.Hold {
			continue
		}

		if g.cfg.MaxActivePositions > 0 && openCount+entriesFor(accepted) >= g.cfg.MaxActivePositions {
			logger.Warn("[RISK] %s: лимит открытых позиций (%d) достигнут", s.Ticker, g.cfg.MaxActivePositions)
			continue
		}

		projected := (grossNotional + g.signalNotional(s, capital)) / capital
		if g.cfg.MaxLeverage > 0 && projected > g.cfg.MaxLeverage {
			logger.Warn("[RISK] %s: плечо %.2fx превысит лимит %.2fx", s.Ticker, projected, g.cfg.MaxLeverage)
			continue
		}

		// обязательность стопа — требование к входам, выход позицию гасит
		if s.Action.IsEntry() && !g.validStopLoss(s) {
			continue
		}

		accepted = append(accepted, s)
	}
	return accepted
}

// signalNotional — консервативная оценка будущей экспозиции сигнала:
// размер позиции через риск на сделку, ограниченный сверху самим капиталом.
func (g *Gate) signalNotional(s models.Signal, capital float64) float64 {
	risk := g.cfg.RiskPerTrade
	if risk <= 0 {
		risk = 0.01
	}
	if s.StopLoss > 0 {
		if vol := PositionSize(capital, s.Price, s.StopLoss, risk); vol > 0 {
			n := vol * s.Price
			if n < capital {
				return n
			}
		}
	}
	return capital
}

func entriesFor(accepted []models.Signal) int {
	n := 0
	for _, s := range accepted {
		if s.Action.IsEntry() {
			n++
		}
	}
	return n
}

func (g *Gate) validStopLoss(s models.Signal) bool {
	if s.StopLoss <= 0 {
		if g.cfg.StopLossRequired {
			logger.Warn("[RISK] %s: стоп-лосс обязателен, но не задан", s.Ticker)
			return false
		}
		return true
	}

	// стоп на цене входа невалиден в обе стороны
	switch s.Action {
	case models.EnterLong, models.ExitShort:
		if s.StopLoss >= s.Price {
			logger.Warn("[RISK] %s: стоп %.4f не ниже цены %.4f для покупки", s.Ticker, s.StopLoss, s.Price)
			return false
		}
	case models.EnterShort, models.ExitLong:
		if s.StopLoss <= s.Price {
			logger.Warn("[RISK] %s: стоп %.4f не выше цены %.4f для продажи", s.Ticker, s.StopLoss, s.Price)
			return false
		}
	}

	lossPct := math.Abs(s.Price-s.StopLoss) / s.Price
	if g.cfg.MaxLossPct > 0 && lossPct > g.cfg.MaxLossPct {
		logger.Warn("[RISK] %s: стоп даёт убыток %.2f%% > лимита %.2f%%",
			s.Ticker, lossPct*100, g.cfg.MaxLossPct*100)
		return false
	}
	return true
}

// UpdateRiskLevel пересчитывает агрегированный уровень риска.
// score = 0.4*drawdown + 0.6*volatility.
func (g *Gate) UpdateRiskLevel(drawdown, volatility float64) models.RiskLevel {
	score := 0.4*drawdown + 0.6*volatility

	var level models.RiskLevel
	switch {
	case score < 0.02:
		level = models.RiskLow
	case score < 0.05:
		level = models.RiskModerate
	case score < 0.10:
		level = models.RiskHigh
	default:
		level = models.RiskExtreme
	}

	g.mu.Lock()
	old := g.level
	g.level = level
	g.mu.Unlock()

	if old != level {
		logger.Info("[RISK] уровень риска %s -> %s (score=%.4f)", old, level, score)
	}
	return level
}

func (g *Gate) Level() models.RiskLevel {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

// CheckDailyLossLimit — true, если относительный дневной убыток превысил
// лимит. Сигнал оркестратору остановить новые входы, не авто-ликвидация.
func (g *Gate) CheckDailyLossLimit(initialBalance, currentBalance float64) bool {
	if initialBalance <= 0 {
		return false
	}
	lossPct := (initialBalance - currentBalance) / initialBalance
	if lossPct > g.cfg.DailyLossLimit {
		logger.Critical("[RISK] дневной лимит убытков превышен: %.2f%% > %.2f%%",
			lossPct*100, g.cfg.DailyLossLimit*100)
		return true
	}
	return false
}

// PositionSize — размер позиции из риска на сделку: рискуем
// capital*riskPerTrade при движении от entry до stop.
func PositionSize(capital, entry, stop, riskPerTrade float64) float64 {
	riskPerUnit := math.Abs(entry - stop)
	if riskPerUnit <= 0 || capital <= 0 || riskPerTrade <= 0 {
		return 0
	}
	return capital * riskPerTrade / riskPerUnit
}

// TrailingStop — подтянутый стоп от пикового значения цены.
// Для лонга стоп только повышается, для шорта только понижается.
func TrailingStop(side models.PositionSide, peak, current, trailPct float64) float64 {
	if peak <= 0 || trailPct <= 0 {
		return current
	}
	if side == models.SideLong {
		ns := peak * (1 - trailPct)
		if ns > current {
			return ns
		}
		return current
	}
	ns := peak * (1 + trailPct)
	if current == 0 || ns < current {
		return ns
	}
	return current
}
