package observability

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core)).With("component", "test")

	l.Debug("commit started", "unit", "u-1")
	l.Info("rolled back", "unit", "u-1")
	l.Warn("slow commit")
	l.Error("commit failed", "error", "boom")

	if logs.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", logs.Len())
	}
	entry := logs.FilterMessage("commit started").All()[0]
	fields := entry.ContextMap()
	if fields["unit"] != "u-1" || fields["component"] != "test" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Fatalf("expected one error entry")
	}
}

func TestNewLoggerModes(t *testing.T) {
	for _, mode := range []string{"nop", "production", "development"} {
		l, err := NewLogger(mode)
		if err != nil {
			t.Fatalf("mode %s: %v", mode, err)
		}
		l.Debug("hello", "mode", mode)
	}
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}
