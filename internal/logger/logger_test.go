package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNew(t *testing.T) {
	for _, enc := range []string{"console", "json"} {
		l, err := New(Config{Level: "debug", Encoding: enc, OutputPaths: []string{"stdout"}})
		require.NoError(t, err)
		require.NotNil(t, l)
	}

	_, err := New(Config{Encoding: "xml"})
	require.Error(t, err)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(String("audit", "a1"))

	l.Info("page done", Int("results", 3))
	l.Error("check failed", Error(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "page done", entries[0].Message)
	assert.Equal(t, "a1", entries[0].ContextMap()["audit"])
	assert.EqualValues(t, 3, entries[0].ContextMap()["results"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Debug("x")
	l.With(String("k", "v")).Warn("y")
	assert.NoError(t, l.Sync())
}
