package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/runctx"
)

func TestCreateLogger(t *testing.T) {
	log := logger.CreateLogger("info")
	if log == nil {
		t.Fatal("expected logger to be created")
	}
}

func TestCreateLogger_BadLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("not-a-level", &buf)

	// Unparseable level means info.
	log.Debug("hidden")
	log.Info("visible")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("debug should be suppressed at info level")
	}
	if !strings.Contains(output, "visible") {
		t.Error("info should be logged at info level")
	}
}

func TestLogger_WithScope(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	scoped := log.WithScope("a1b2c3d4e5f6")
	scoped.Info("running step")

	output := buf.String()
	if !strings.Contains(output, "a1b2c3d4e5f6") {
		t.Error("expected scope name in log output")
	}
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Success("wave completed")

	output := buf.String()
	if !strings.Contains(output, "wave completed") {
		t.Error("expected success message in log output")
	}
	if !strings.Contains(output, "✅") {
		t.Error("expected success marker in log output")
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Info("test message",
		logger.WithField("key1", "value1"),
		logger.WithField("key2", 42),
	)

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("expected message in log output")
	}
	if !strings.Contains(output, "key1=value1") {
		t.Error("expected field in log output")
	}
}

func TestLogger_MultipleScopes(t *testing.T) {
	var buf bytes.Buffer
	baseLog := logger.CreateLoggerWithOutput("info", &buf)

	proc := baseLog.WithScope("proc")
	step := baseLog.WithScope("step-3")

	proc.Info("process message")
	step.Info("step message")

	output := buf.String()
	if !strings.Contains(output, "proc") {
		t.Error("expected proc scope in output")
	}
	if !strings.Contains(output, "step-3") {
		t.Error("expected step-3 scope in output")
	}
}

func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("error", &buf)

	log.Debug("should not appear")
	log.Info("should not appear")
	log.Warn("should not appear")
	log.Error("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("lower level logs should not appear with error level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("error level log should appear")
	}
}

func TestScopeLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	log.Debug("before")

	sl, ok := log.(*logger.ScopeLogger)
	if !ok {
		t.Fatal("expected a ScopeLogger")
	}
	sl.SetLevel("debug")
	log.Debug("after")

	output := buf.String()
	if strings.Contains(output, "before") {
		t.Error("debug should be suppressed before the level change")
	}
	if !strings.Contains(output, "after") {
		t.Error("debug should be logged after the level change")
	}

	// Garbage levels are ignored and leave the level alone.
	sl.SetLevel("loud")
	log.Debug("still debug")
	if !strings.Contains(buf.String(), "still debug") {
		t.Error("an invalid level should not change the current level")
	}
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("info", &buf)

	ctx := runctx.WithProcessID(context.Background(), "deadbeef0123")
	ctx = runctx.WithOperation(ctx, "execute")
	ctx = runctx.WithStartTime(ctx, time.Now().Add(-10*time.Millisecond))

	ctxLog := logger.WithContext(ctx, log)
	ctxLog.Info("traced message")

	output := buf.String()
	if !strings.Contains(output, "traced message") {
		t.Error("expected message in log output")
	}
	if !strings.Contains(output, "deadbeef0123") {
		t.Error("expected process id from context in log output")
	}
	if !strings.Contains(output, "execute") {
		t.Error("expected operation from context in log output")
	}
}

func TestSimpleLogger(t *testing.T) {
	log := logger.NewSimpleLogger("probe", "debug")
	if log == nil {
		t.Fatal("expected logger to be created")
	}

	// No output capture here; the simple logger writes straight to
	// stdout. Exercise every level for panics.
	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	log.Error("error message")
	log.Success("success message")

	scoped := log.WithScope("nested")
	scoped.Info("scoped message", logger.WithField("key", "value"))
}
