package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"trade_engine/pkg/logger"
)

// Policy — параметры повторов для сетевых операций.
// Classify решает, имеет ли смысл повторять; nil == повторяем всё.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Classify    func(error) bool
}

// подменяется в тестах
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do выполняет op с линейным бэкоффом: перед попыткой N+1 ждём BaseDelay*N.
// Неретраибельная ошибка возвращается сразу как есть. После исчерпания
// попыток возвращаем последнюю ошибку, обёрнутую контекстом о числе попыток
// (errors.Cause сохраняет оригинал).
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if p.Classify != nil && !p.Classify(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := p.BaseDelay * time.Duration(attempt)
		logger.Warn("retry %d/%d after %s: %v", attempt, attempts, wait, err)
		if serr := sleep(ctx, wait); serr != nil {
			// контекст отменили во время ожидания
			return zero, lastErr
		}
	}

	return zero, errors.Wrapf(lastErr, "after %d attempts", attempts)
}
