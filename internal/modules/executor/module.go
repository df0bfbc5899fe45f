package executor

import (
	"go.uber.org/fx"

	brokersvc "trade_engine/internal/modules/broker/service"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/executor/service"
	mdsvc "trade_engine/internal/modules/marketdata/service"
)

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			func(cfg *config.Config, venue brokersvc.Venue, data mdsvc.Source) *service.Coordinator {
				return service.NewCoordinator(cfg, venue, data)
			},
		),
	)
}
