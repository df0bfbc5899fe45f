package main

import (
	"context"

	"go.uber.org/fx"

	"trade_engine/internal/modules/bootstrap"
	"trade_engine/internal/modules/broker"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/executor"
	"trade_engine/internal/modules/health"
	"trade_engine/internal/modules/journal"
	"trade_engine/internal/modules/ledger"
	"trade_engine/internal/modules/marketdata"
	"trade_engine/internal/modules/postgres"
	"trade_engine/internal/modules/risk"
	"trade_engine/internal/modules/strategy"
	"trade_engine/internal/modules/telegram"
	"trade_engine/internal/runner"
	"trade_engine/pkg/logger"
	"trade_engine/pkg/tracing"
)

func main() {
	logger.Init()
	logger.SetServiceName("trade_engine")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
		postgres.Module(),
		journal.Module(),
		telegram.Module(),
		marketdata.Module(),
		broker.Module(),
		executor.Module(),
		bootstrap.Module(),
		ledger.Module(),
		risk.Module(),
		strategy.Module(),
		health.Module(),
		runner.Module(),
	)
	app.Run()
}
