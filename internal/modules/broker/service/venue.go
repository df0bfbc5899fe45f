package service

import (
	"context"

	"github.com/pkg/errors"

	"trade_engine/internal/models"
)

// Venue — внешняя торговая площадка.
type Venue interface {
	SubmitOrder(ctx context.Context, order models.Order) (models.ExecutionReport, error)
	CancelOrder(ctx context.Context, order models.Order) error
}

// Причины отказов площадки. Сетевые проблемы заворачиваются
// в ErrVenueUnavailable — только их имеет смысл ретраить.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidInstrument = errors.New("invalid instrument")
	ErrVenueUnavailable  = errors.New("venue unavailable")
)

func Retryable(err error) bool {
	return errors.Is(err, ErrVenueUnavailable)
}
