package bootstrap

import (
	"context"

	"go.uber.org/fx"

	"trade_engine/internal/modules/bootstrap/service"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			service.NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, wu *service.Warmuper) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return wu.Warmup(ctx)
				},
			})
		}),
	)
}
