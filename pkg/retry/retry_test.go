package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	orig := sleep
	var waits []time.Duration
	sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	waits := stubSleep(t)

	calls := 0
	res, err := Do(context.Background(), Policy{MaxAttempts: 5, BaseDelay: time.Second},
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("temporary")
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
	// линейный бэкофф: base*1, base*2
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestDoExhaustsAttempts(t *testing.T) {
	stubSleep(t)

	cause := errors.New("still down")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			return 0, cause
		})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, cause, errors.Cause(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDoNonRetryableReturnsImmediately(t *testing.T) {
	waits := stubSleep(t)

	fatal := errors.New("not found")
	calls := 0
	_, err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Classify:    func(err error) bool { return !errors.Is(err, fatal) },
	}, func(context.Context) (int, error) {
		calls++
		return 0, fatal
	})

	// ошибка отдана как есть, без обёртки и без ожиданий
	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
}

func TestDoContextCancelledDuringWait(t *testing.T) {
	orig := sleep
	sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	t.Cleanup(func() { sleep = orig })

	cause := errors.New("flaky")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, BaseDelay: time.Second},
		func(context.Context) (int, error) {
			calls++
			return 0, cause
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, cause, errors.Cause(err))
}

func TestDoZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	res, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, 1, calls)
}
