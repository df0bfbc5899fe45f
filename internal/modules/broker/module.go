package broker

import (
	"go.uber.org/fx"

	"trade_engine/internal/modules/broker/service"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"
)

// Module выбирает площадку по режиму: paper — симулятор, real — подписанный
// REST-клиент.
func Module() fx.Option {
	return fx.Module("broker",
		fx.Provide(
			func(cfg *config.Config) service.Venue {
				if cfg.Mode == "real" {
					logger.Info("[BROKER] live-площадка: %s", cfg.Venue.BaseURL)
					return service.NewLive(cfg)
				}
				logger.Info("[BROKER] бумажная площадка")
				return service.NewPaper()
			},
		),
	)
}
