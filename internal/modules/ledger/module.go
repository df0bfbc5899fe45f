package ledger

import (
	"go.uber.org/fx"

	"trade_engine/internal/modules/ledger/service"
)

func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(
			service.New,
		),
	)
}
