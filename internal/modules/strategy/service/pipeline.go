package service

import (
	"sort"
	"sync"

	"trade_engine/internal/indicator"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

// Pipeline собирает кандидатов со всех стратегий, оставляет лучшего по
// уверенности на пару (тикер, действие) и подтверждает объёмом.
type Pipeline struct {
	strategies    []Strategy
	minConfidence float64

	mu      sync.Mutex
	history []models.Signal
}

func NewPipeline(cfg *config.Config) *Pipeline {
	p := &Pipeline{minConfidence: cfg.MinConfidence}

	for _, name := range cfg.Strategies {
		switch models.StrategyType(name) {
		case models.StrategyTrendFollowing:
			p.strategies = append(p.strategies, NewTrendFollowing())
		case models.StrategyMeanReversion:
			p.strategies = append(p.strategies, NewMeanReversion())
		case models.StrategyBreakout:
			p.strategies = append(p.strategies, NewBreakout())
		default:
			logger.Warn("[STRAT] неизвестная стратегия %q, пропускаем", name)
		}
	}
	if len(p.strategies) == 0 {
		logger.Warn("[STRAT] ни одной стратегии не сконфигурировано")
	}
	return p
}

// Analyze — один проход по рынку: срезы свечей по тикерам на входе,
// подтверждённые сигналы на выходе.
func (p *Pipeline) Analyze(market map[string][]models.Candle) []models.Signal {
	var raw []models.Signal
	for ticker, candles := range market {
		for _, s := range p.strategies {
			raw = append(raw, s.Analyze(ticker, candles)...)
		}
	}
	if len(raw) == 0 {
		return nil
	}

	best := dedupeBest(raw)
	confirmed := make([]models.Signal, 0, len(best))
	for _, s := range best {
		if s.Confidence < p.minConfidence {
			logger.Info("[STRAT] %s %s отброшен: уверенность %.2f < %.2f",
				s.Ticker, s.Action, s.Confidence, p.minConfidence)
			continue
		}
		if !volumeConfirms(market[s.Ticker]) {
			logger.Info("[STRAT] %s %s отброшен: нет подтверждения объёмом", s.Ticker, s.Action)
			continue
		}
		confirmed = append(confirmed, s)
	}

	if len(confirmed) > 0 {
		p.mu.Lock()
		p.history = append(p.history, confirmed...)
		p.mu.Unlock()
	}
	return confirmed
}

// dedupeBest — по одному сигналу на (тикер, действие): побеждает большая
// уверенность. Результат отсортирован по убыванию уверенности.
func dedupeBest(signals []models.Signal) []models.Signal {
	type key struct {
		ticker string
		action models.SignalAction
	}
	best := make(map[key]models.Signal)
	for _, s := range signals {
		k := key{s.Ticker, s.Action}
		if cur, ok := best[k]; !ok || s.Confidence > cur.Confidence {
			best[k] = s
		}
	}

	out := make([]models.Signal, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// volumeConfirms — объём последнего бара не ниже половины среднего за 20.
func volumeConfirms(candles []models.Candle) bool {
	const lookback = 20
	if len(candles) < lookback+1 {
		return true
	}
	vols := volumes(candles)
	n := len(vols) - 1
	avg := indicator.SMA(vols[:n], lookback)
	if len(avg) == 0 {
		return true
	}
	mean := avg[len(avg)-1]
	if mean <= 0 {
		return true
	}
	return vols[n] >= 0.5*mean
}

// History — копия журнала подтверждённых сигналов.
func (p *Pipeline) History() []models.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Signal, len(p.history))
	copy(out, p.history)
	return out
}
