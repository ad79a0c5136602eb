package logger

import (
	"fmt"
	"log"

	"go.uber.org/zap"
)

// SchedulerAdapter adapts Logger to the structured key/value logger
// interface used by gocron.
type SchedulerAdapter struct {
	*Logger
}

// AsSchedulerLogger wraps a component logger for gocron.WithLogger
func AsSchedulerLogger(l *Logger) *SchedulerAdapter {
	return &SchedulerAdapter{Logger: l}
}

func (a *SchedulerAdapter) Debug(msg string, args ...any) {
	a.Logger.sugar().Debugw(msg, args...)
}

func (a *SchedulerAdapter) Info(msg string, args ...any) {
	a.Logger.sugar().Infow(msg, args...)
}

func (a *SchedulerAdapter) Warn(msg string, args ...any) {
	a.Logger.sugar().Warnw(msg, args...)
}

func (a *SchedulerAdapter) Error(msg string, args ...any) {
	a.Logger.sugar().Errorw(msg, args...)
}

// AsStdLogger returns a standard library logger writing at error level,
// for http.Server.ErrorLog.
func AsStdLogger(l *Logger) *log.Logger {
	std, err := zap.NewStdLogAt(l.Zap(), zap.ErrorLevel)
	if err != nil {
		return log.New(log.Writer(), fmt.Sprintf("[%s] ", l.component), log.LstdFlags)
	}
	return std
}
