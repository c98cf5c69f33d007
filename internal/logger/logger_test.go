package logger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewForEnvironment(t *testing.T) {
	l, err := NewForEnvironment("production", "debug", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewForEnvironment("development", "", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reportd.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("snapshot created", zap.String("tenant_id", "acme"))
	require.NoError(t, l.Sync())
	assert.FileExists(t, path)
}

func TestNew_UnwritableOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "reportd.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})

	require.Error(t, err)
	assert.Nil(t, l)
	assert.Contains(t, err.Error(), "failed to open log output")
}

func TestContext(t *testing.T) {
	fallback := zap.NewExample()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))

	l := zap.NewNop().With(zap.String("request_id", "r-1"))
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx, fallback))
}
