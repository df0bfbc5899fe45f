package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	base *zap.Logger
	once sync.Once

	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init строит продакшн-логгер. Вызывается из main,
// повторные вызовы игнорируются.
func Init() {
	once.Do(func() {
		l, err := zap.NewProduction(zap.AddCallerSkip(1))
		if err != nil {
			panic(fmt.Sprintf("init zap: %v", err))
		}
		base = l
	})
}

func ensure() *zap.Logger {
	if base == nil {
		Init()
	}
	return base.With(zap.String("service", serviceName))
}

func Info(format string, args ...interface{}) {
	ensure().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	ensure().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	ensure().Error(fmt.Sprintf(format, args...))
}

// Critical — фатальные условия торгового цикла. Процесс не валим,
// дальше идёт штатный shutdown.
func Critical(format string, args ...interface{}) {
	ensure().DPanic(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	ensure().Fatal(fmt.Sprintf(format, args...))
}
