package marketdata

import (
	"context"

	"go.uber.org/fx"

	healthsvc "trade_engine/internal/modules/health/service"
	"trade_engine/internal/modules/marketdata/service"
)

// Module поднимает REST-клиент данных и WS-кэш последних цен.
func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			service.NewPriceCache,
			func(st *healthsvc.State) service.ConnReporter { return st },
			service.NewStream,
			service.NewClient,
			func(c *service.Client) service.Source { return c },
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Stream) {
			var cancel context.CancelFunc
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					runCtx, c := context.WithCancel(context.Background())
					cancel = c
					go s.Run(runCtx)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					if cancel != nil {
						cancel()
					}
					return nil
				},
			})
		}),
	)
}
