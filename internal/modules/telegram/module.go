package telegram

import (
	"go.uber.org/fx"

	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/telegram/service"
	"trade_engine/internal/notify"
	"trade_engine/pkg/logger"
)

// Module отдаёт Notifier: телеграм при наличии токена, иначе заглушка.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(cfg *config.Config) (notify.Notifier, error) {
				if cfg.Telegram.Token == "" {
					logger.Warn("[TG] токен не задан, уведомления отключены")
					return notify.Noop{}, nil
				}
				tg, err := service.NewTelegram(cfg)
				if err != nil {
					return nil, err
				}
				return tg, nil
			},
		),
	)
}
