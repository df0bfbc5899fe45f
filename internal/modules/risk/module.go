package risk

import (
	"go.uber.org/fx"

	"trade_engine/internal/modules/risk/service"
)

func Module() fx.Option {
	return fx.Module("risk",
		fx.Provide(
			service.NewGate,
		),
	)
}
