package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPayloadFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	saved := Logger
	Logger = zap.New(core)
	defer func() { Logger = saved }()

	Info("faces extracted", LoggerOptions{Key: "faces", Data: 3}, LoggerOptions{Key: "path", Data: "a.png"})
	Warning("debug annotation failed")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["faces"] != int64(3) || ctx["path"] != "a.png" {
		t.Errorf("unexpected fields %v", ctx)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[1].Level)
	}
}
