package logging

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronLogger 让 cron 的调度日志（包括 SkipIfStillRunning 的跳过记录）进入同一个 zap logger。
func CronLogger(l *zap.Logger) cron.Logger {
	return cronLogger{s: l.Named("cron").Sugar()}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.s.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
