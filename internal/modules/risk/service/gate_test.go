package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.MaxActivePositions = 2
	cfg.MaxLeverage = 3
	cfg.StopLossRequired = true
	cfg.MaxLossPct = 0.05
	cfg.DailyLossLimit = 0.02
	cfg.RiskPerTrade = 0.01
	return cfg
}

func entry(ticker string, action models.SignalAction, price, stop float64) models.Signal {
	return models.Signal{
		Ticker: ticker, Action: action, Price: price,
		Confidence: 0.8, StopLoss: stop,
		Strategy: models.StrategyTrendFollowing,
	}
}

func openPos(ticker string, vol, current float64) models.Position {
	return models.Position{
		Ticker: ticker, Side: models.SideLong,
		Entry: current, Current: current, Volume: vol,
		Status: models.PositionOpen,
	}
}

func TestValidateZeroCapitalRejectsAll(t *testing.T) {
	g := NewGate(testConfig())
	got := g.Validate([]models.Signal{entry("BTC-USDT-SWAP", models.EnterLong, 100, 98)}, nil, 0)
	assert.Empty(t, got)
}

func TestValidateMaxPositionsIncludesAcceptedEntries(t *testing.T) {
	g := NewGate(testConfig())
	positions := map[string]models.Position{
		"SOL-USDT-SWAP": openPos("SOL-USDT-SWAP", 1, 50),
	}
	signals := []models.Signal{
		entry("BTC-USDT-SWAP", models.EnterLong, 100, 98),
		entry("ETH-USDT-SWAP", models.EnterLong, 2000, 1960),
	}

	got := g.Validate(signals, positions, 100000)
	// лимит 2: одна открыта + один принятый вход, второй не проходит
	require.Len(t, got, 1)
	assert.Equal(t, "BTC-USDT-SWAP", got[0].Ticker)
}

func TestValidateLimitsApplyToExits(t *testing.T) {
	cfg := testConfig()
	cfg.MaxActivePositions = 1
	g := NewGate(cfg)
	positions := map[string]models.Position{
		"BTC-USDT-SWAP": openPos("BTC-USDT-SWAP", 1, 100),
	}

	// лимит позиций достигнут: выход отбрасывается так же, как вход
	got := g.Validate([]models.Signal{
		{Ticker: "BTC-USDT-SWAP", Action: models.ExitLong, Price: 100, Confidence: 0.9},
	}, positions, 100000)
	assert.Empty(t, got)
}

func TestValidateExitBelowLimitAccepted(t *testing.T) {
	g := NewGate(testConfig())
	positions := map[string]models.Position{
		"BTC-USDT-SWAP": openPos("BTC-USDT-SWAP", 1, 100),
	}

	// лимит 2, открыта одна: выходу стоп не нужен
	got := g.Validate([]models.Signal{
		{Ticker: "BTC-USDT-SWAP", Action: models.ExitLong, Price: 100, Confidence: 0.9},
	}, positions, 100000)
	require.Len(t, got, 1)
}

func TestValidateHoldSkipped(t *testing.T) {
	g := NewGate(testConfig())
	got := g.Validate([]models.Signal{{Ticker: "BTC-USDT-SWAP", Action: models.Hold}}, nil, 100000)
	assert.Empty(t, got)
}

func TestValidateStopLoss(t *testing.T) {
	g := NewGate(testConfig())
	capital := 100000.0

	tests := []struct {
		name string
		sig  models.Signal
		ok   bool
	}{
		{"long valid", entry("BTC-USDT-SWAP", models.EnterLong, 100, 98), true},
		{"long stop above price", entry("BTC-USDT-SWAP", models.EnterLong, 100, 105), false},
		{"long stop equals price", entry("BTC-USDT-SWAP", models.EnterLong, 100, 100), false},
		{"short valid", entry("BTC-USDT-SWAP", models.EnterShort, 100, 102), true},
		{"short stop below price", entry("BTC-USDT-SWAP", models.EnterShort, 100, 95), false},
		{"missing stop when required", entry("BTC-USDT-SWAP", models.EnterLong, 100, 0), false},
		{"stop too far", entry("BTC-USDT-SWAP", models.EnterLong, 100, 90), false}, // 10% > 5%
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := g.Validate([]models.Signal{tc.sig}, nil, capital)
			if tc.ok {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestValidateStopOptionalWhenNotRequired(t *testing.T) {
	cfg := testConfig()
	cfg.StopLossRequired = false
	g := NewGate(cfg)

	got := g.Validate([]models.Signal{entry("BTC-USDT-SWAP", models.EnterLong, 100, 0)}, nil, 100000)
	assert.Len(t, got, 1)
}

func TestValidateLeverageLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxActivePositions = 10
	g := NewGate(cfg)

	// уже 2.5x экспозиции при капитале 1000
	positions := map[string]models.Position{
		"ETH-USDT-SWAP": openPos("ETH-USDT-SWAP", 2500, 1),
	}
	// сигнал без стопа в лимитах -> консервативная оценка = весь капитал,
	// проектное плечо 3.5x > 3x
	cfg.StopLossRequired = false
	got := g.Validate([]models.Signal{entry("BTC-USDT-SWAP", models.EnterLong, 100, 0)}, positions, 1000)
	assert.Empty(t, got)
}

func TestUpdateRiskLevelThresholds(t *testing.T) {
	g := NewGate(testConfig())

	tests := []struct {
		dd, vol float64
		want    models.RiskLevel
	}{
		{0, 0, models.RiskLow},
		{0.01, 0.04, models.RiskModerate}, // 0.4*0.01+0.6*0.04 = 0.028
		{0.1, 0.05, models.RiskHigh},      // 0.07
		{0.2, 0.2, models.RiskExtreme},    // 0.2
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, g.UpdateRiskLevel(tc.dd, tc.vol))
		assert.Equal(t, tc.want, g.Level())
	}
}

func TestCheckDailyLossLimit(t *testing.T) {
	g := NewGate(testConfig())

	assert.False(t, g.CheckDailyLossLimit(100000, 99000))  // -1%
	assert.True(t, g.CheckDailyLossLimit(100000, 97000))   // -3%
	assert.False(t, g.CheckDailyLossLimit(0, 97000))       // нет базы
	assert.False(t, g.CheckDailyLossLimit(100000, 110000)) // прибыль
}

func TestPositionSize(t *testing.T) {
	// риск 1% от 100000 = 1000; дистанция до стопа 2 -> 500 единиц
	assert.InDelta(t, 500, PositionSize(100000, 100, 98, 0.01), 1e-9)
	assert.Zero(t, PositionSize(100000, 100, 100, 0.01))
	assert.Zero(t, PositionSize(0, 100, 98, 0.01))
	assert.Zero(t, PositionSize(100000, 100, 98, 0))
}

func TestTrailingStop(t *testing.T) {
	// лонг: стоп подтягивается за пиком и не опускается
	got := TrailingStop(models.SideLong, 110, 105, 0.02)
	assert.InDelta(t, 107.8, got, 1e-9)
	assert.InDelta(t, 109, TrailingStop(models.SideLong, 110, 109, 0.02), 1e-9)

	// шорт: стоп только понижается
	got = TrailingStop(models.SideShort, 90, 95, 0.02)
	assert.InDelta(t, 91.8, got, 1e-9)
	assert.InDelta(t, 91, TrailingStop(models.SideShort, 90, 91, 0.02), 1e-9)
}

func TestReductionOrder(t *testing.T) {
	pos := openPos("BTC-USDT-SWAP", 10, 100)

	assert.Nil(t, ReductionOrder(models.RiskLow, pos))
	assert.Nil(t, ReductionOrder(models.RiskModerate, pos))

	o := ReductionOrder(models.RiskHigh, pos)
	require.NotNil(t, o)
	assert.Equal(t, models.OrderSell, o.Side)
	assert.InDelta(t, 5, o.Volume, 1e-9)
	assert.Equal(t, "risk_reduction_HIGH", o.Reason)

	o = ReductionOrder(models.RiskExtreme, pos)
	require.NotNil(t, o)
	assert.InDelta(t, 8, o.Volume, 1e-9)

	short := pos
	short.Side = models.SideShort
	o = ReductionOrder(models.RiskHigh, short)
	require.NotNil(t, o)
	assert.Equal(t, models.OrderBuy, o.Side)

	closed := pos
	closed.Status = models.PositionClosed
	assert.Nil(t, ReductionOrder(models.RiskExtreme, closed))
}

func TestDrawdownTracker(t *testing.T) {
	d := NewDrawdownTracker(0.05)

	assert.False(t, d.Update(100))
	assert.False(t, d.Update(98)) // -2%
	assert.InDelta(t, 0.02, d.Current(), 1e-9)
	assert.True(t, d.Update(90)) // -10%
	// новый пик сбрасывает просадку
	assert.False(t, d.Update(120))
	assert.Zero(t, d.Current())
}
