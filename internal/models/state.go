package models

// BotState — глобальное состояние жизненного цикла бота.
// Единственный экземпляр на процесс, владеет им леджер.
type BotState string

const (
	StateStarting     BotState = "STARTING"
	StateRunning      BotState = "RUNNING"
	StatePaused       BotState = "PAUSED"
	StateShuttingDown BotState = "SHUTTING_DOWN"
	StateError        BotState = "ERROR"
)
