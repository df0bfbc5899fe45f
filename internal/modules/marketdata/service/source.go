package service

import (
	"context"

	"github.com/pkg/errors"

	"trade_engine/internal/models"
)

// Source — внешний поставщик рыночных данных.
type Source interface {
	// GetRecentBars — закрытые свечи, от старых к новым.
	GetRecentBars(ctx context.Context, ticker, timeframe string) ([]models.Candle, error)
	GetLastPrice(ctx context.Context, ticker string) (float64, error)
	GetOrderBook(ctx context.Context, ticker string, depth int) (models.OrderBook, error)
}

// ErrNotFound — инструмента нет у площадки. Ретраить бессмысленно.
var ErrNotFound = errors.New("instrument not found")

// Retryable — классификатор для pkg/retry: сетевые/5xx ошибки временные,
// not-found — нет.
func Retryable(err error) bool {
	return !errors.Is(err, ErrNotFound)
}
