package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/models"
)

func buy(id, ticker string, vol, price float64) models.Order {
	return models.Order{
		ID: id, Ticker: ticker, Side: models.OrderBuy,
		Price: price, Volume: vol, FilledVolume: vol, AvgFillPrice: price,
		Status: models.OrderFilled,
	}
}

func sell(id, ticker string, vol, price float64) models.Order {
	o := buy(id, ticker, vol, price)
	o.Side = models.OrderSell
	return o
}

func TestApplyFillAveragingAndClose(t *testing.T) {
	l := New(nil)

	l.ApplyFill(buy("o1", "BTC-USDT-SWAP", 10, 100))
	l.ApplyFill(buy("o2", "BTC-USDT-SWAP", 10, 110))

	pos, ok := l.Position("BTC-USDT-SWAP")
	require.True(t, ok)
	assert.Equal(t, models.SideLong, pos.Side)
	assert.InDelta(t, 105, pos.Entry, 1e-9)
	assert.InDelta(t, 20, pos.Volume, 1e-9)

	l.ApplyFill(sell("o3", "BTC-USDT-SWAP", 20, 120))

	pos, ok = l.Position("BTC-USDT-SWAP")
	require.True(t, ok)
	assert.Equal(t, models.PositionClosed, pos.Status)
	require.NotNil(t, pos.CloseTime)
	// (120-105)*20
	assert.InDelta(t, 300, pos.RealizedPnL, 1e-9)
	assert.InDelta(t, 300, l.RealizedPnL(), 1e-9)
}

func TestApplyFillIdempotentByOrderID(t *testing.T) {
	l := New(nil)

	o := buy("dup", "ETH-USDT-SWAP", 5, 2000)
	l.ApplyFill(o)
	l.ApplyFill(o)

	pos, ok := l.Position("ETH-USDT-SWAP")
	require.True(t, ok)
	assert.InDelta(t, 5, pos.Volume, 1e-9)
}

func TestApplyFillPartialReduction(t *testing.T) {
	l := New(nil)

	l.ApplyFill(buy("o1", "SOL-USDT-SWAP", 10, 50))
	l.ApplyFill(sell("o2", "SOL-USDT-SWAP", 4, 55))

	pos, ok := l.Position("SOL-USDT-SWAP")
	require.True(t, ok)
	assert.Equal(t, models.PositionOpen, pos.Status)
	assert.InDelta(t, 6, pos.Volume, 1e-9)
	assert.InDelta(t, 20, pos.RealizedPnL, 1e-9) // (55-50)*4
	// entry не трогаем при сокращении
	assert.InDelta(t, 50, pos.Entry, 1e-9)
}

func TestApplyFillOppositeExcessClamped(t *testing.T) {
	l := New(nil)

	l.ApplyFill(buy("o1", "BTC-USDT-SWAP", 3, 100))
	l.ApplyFill(sell("o2", "BTC-USDT-SWAP", 10, 110))

	pos, ok := l.Position("BTC-USDT-SWAP")
	require.True(t, ok)
	assert.Equal(t, models.PositionClosed, pos.Status)
	// pnl считается только по реальному объёму позиции
	assert.InDelta(t, 30, l.RealizedPnL(), 1e-9)
}

func TestApplyFillShortSide(t *testing.T) {
	l := New(nil)

	l.ApplyFill(sell("s1", "ETH-USDT-SWAP", 2, 3000))

	pos, ok := l.Position("ETH-USDT-SWAP")
	require.True(t, ok)
	assert.Equal(t, models.SideShort, pos.Side)

	l.ApplyFill(buy("s2", "ETH-USDT-SWAP", 2, 2900))
	assert.InDelta(t, 200, l.RealizedPnL(), 1e-9) // (3000-2900)*2
}

func TestApplyFillReopenAfterClose(t *testing.T) {
	l := New(nil)

	l.ApplyFill(buy("o1", "BTC-USDT-SWAP", 1, 100))
	l.ApplyFill(sell("o2", "BTC-USDT-SWAP", 1, 110))
	l.ApplyFill(buy("o3", "BTC-USDT-SWAP", 2, 120))

	pos, ok := l.Position("BTC-USDT-SWAP")
	require.True(t, ok)
	assert.Equal(t, models.PositionOpen, pos.Status)
	assert.InDelta(t, 2, pos.Volume, 1e-9)
	assert.InDelta(t, 120, pos.Entry, 1e-9)
	assert.Zero(t, pos.RealizedPnL)
}

func TestApplyFillIgnoresUnfilled(t *testing.T) {
	l := New(nil)

	o := buy("o1", "BTC-USDT-SWAP", 5, 100)
	o.FilledVolume = 0
	l.ApplyFill(o)

	_, ok := l.Position("BTC-USDT-SWAP")
	assert.False(t, ok)

	// отчёт доисполнился — тот же order_id должен примениться
	o.FilledVolume = 5
	l.ApplyFill(o)
	_, ok = l.Position("BTC-USDT-SWAP")
	assert.True(t, ok)
}

func TestApplyFillSkipsNonDirectionalSides(t *testing.T) {
	l := New(nil)

	// STOP_LOSS/TAKE_PROFIT — защитные ордера, экспозицию не двигают
	o := buy("o1", "BTC-USDT-SWAP", 1, 100)
	o.Side = models.OrderStopLoss
	l.ApplyFill(o)
	_, ok := l.Position("BTC-USDT-SWAP")
	assert.False(t, ok)

	o.ID = "o2"
	o.Side = models.OrderTakeProfit
	l.ApplyFill(o)
	_, ok = l.Position("BTC-USDT-SWAP")
	assert.False(t, ok)

	// order_id не съеден пропуском: нормальная сторона применяется
	o.ID = "o1"
	o.Side = models.OrderBuy
	l.ApplyFill(o)
	_, ok = l.Position("BTC-USDT-SWAP")
	assert.True(t, ok)
}

func TestSnapshotIsACopy(t *testing.T) {
	l := New(nil)
	l.ApplyFill(buy("o1", "BTC-USDT-SWAP", 1, 100))

	snap := l.Snapshot()
	p := snap["BTC-USDT-SWAP"]
	p.Volume = 999

	pos, _ := l.Position("BTC-USDT-SWAP")
	assert.InDelta(t, 1, pos.Volume, 1e-9)
}

func TestConcurrentFillsSameTicker(t *testing.T) {
	l := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.ApplyFill(buy(string(rune('a'+i%26))+string(rune('0'+i/26)), "BTC-USDT-SWAP", 1, 100))
		}(i)
	}
	wg.Wait()

	pos, ok := l.Position("BTC-USDT-SWAP")
	require.True(t, ok)
	assert.InDelta(t, 50, pos.Volume, 1e-9)
	assert.InDelta(t, 100, pos.Entry, 1e-9)
}

func TestStateTransitions(t *testing.T) {
	l := New(nil)
	assert.Equal(t, models.StateStarting, l.State())

	l.SetState(models.StateRunning)
	assert.Equal(t, models.StateRunning, l.State())

	l.ApplyFill(buy("o1", "BTC-USDT-SWAP", 1, 100))
	// shutdown при открытой позиции не должен паниковать и менять позиции
	l.SetState(models.StateShuttingDown)
	assert.Equal(t, models.StateShuttingDown, l.State())
	assert.Len(t, l.OpenPositions(), 1)
}

func TestMarkPrice(t *testing.T) {
	l := New(nil)
	l.ApplyFill(buy("o1", "BTC-USDT-SWAP", 1, 100))

	l.MarkPrice("BTC-USDT-SWAP", 130)
	pos, _ := l.Position("BTC-USDT-SWAP")
	assert.InDelta(t, 130, pos.Current, 1e-9)

	// нулевые и отрицательные цены игнорируем
	l.MarkPrice("BTC-USDT-SWAP", 0)
	pos, _ = l.Position("BTC-USDT-SWAP")
	assert.InDelta(t, 130, pos.Current, 1e-9)
}
