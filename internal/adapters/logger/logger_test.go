package logger_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/sompack/internal/adapters/logger"
)

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, slog.LevelInfo)

	l.Info("module loaded", "id", "/a.som")

	out := buf.String()
	assert.Contains(t, out, "module loaded")
	assert.Contains(t, out, "id=/a.som")
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, slog.LevelInfo)

	l.Error(errors.New("boom"), "path", "/a.som")

	out := buf.String()
	assert.Contains(t, out, "operation failed")
	assert.Contains(t, out, "boom")
}

func TestLogger_SetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := logger.NewWithWriter(&first, slog.LevelInfo)

	l.SetOutput(&second)
	l.Info("after swap")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "after swap")
}

func TestLogger_DebugSuppressedAtInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter(&buf, slog.LevelInfo)

	l.Debug("noisy detail")

	assert.Empty(t, buf.String())
}
