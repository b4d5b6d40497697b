package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := CronLogger(zap.New(core))

	cl.Info("skip", "reason", "still running")
	cl.Error(errors.New("bad expression"), "schedule failed", "schedule", "@nope")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].LoggerName != "cron" {
		t.Fatalf("info entry = %+v", entries[0].Entry)
	}
	fields := entries[1].ContextMap()
	if entries[1].Level != zapcore.ErrorLevel || fields["error"] != "bad expression" || fields["schedule"] != "@nope" {
		t.Fatalf("error entry = %+v %v", entries[1].Entry, fields)
	}
}
