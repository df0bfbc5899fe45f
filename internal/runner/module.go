package runner

import (
	"context"
	"time"

	"go.uber.org/fx"
)

const shutdownTimeout = 30 * time.Second

// Module поднимает оркестратор через lifecycle: старт в отдельной
// горутине, на остановке — штатный Shutdown с закрытием позиций.
// Фатальный исход цикла сам гасит позиции и роняет приложение
// через fx.Shutdowner.
func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(New),
		fx.Invoke(func(lc fx.Lifecycle, sh fx.Shutdowner, r *Runner) {
			runCtx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						defer close(done)
						if fatal := r.Run(runCtx); fatal {
							shCtx, shCancel := context.WithTimeout(context.Background(), shutdownTimeout)
							r.Shutdown(shCtx)
							shCancel()
							_ = sh.Shutdown()
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-ctx.Done():
					}

					shCtx, shCancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer shCancel()
					r.Shutdown(shCtx)
					return nil
				},
			})
		}),
	)
}
