package journal

import (
	"go.uber.org/fx"

	"trade_engine/internal/modules/journal/service"
)

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(service.NewJournal),
	)
}
