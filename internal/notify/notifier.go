package notify

// Notifier — fire-and-forget уведомления о событиях бота (смена состояния,
// предупреждения при shutdown). Ошибки доставки никогда не прерывают
// торговый цикл — реализации глотают их сами.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

type Noop struct{}

func (Noop) Send(string)          {}
func (Noop) Sendf(string, ...any) {}
