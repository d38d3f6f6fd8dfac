package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goflash/devserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m), buf.String())
	return m
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	l, sync, err := New(config.Log{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	l.Info("request", "status", 200)
	require.NoError(t, sync())
	m := decodeLine(t, &buf)
	assert.Equal(t, "request", m["msg"])
	assert.Equal(t, float64(200), m["status"])

	buf.Reset()
	l, _, err = New(config.Log{Format: "text"}, &buf)
	require.NoError(t, err)
	l.Info("request", "path", "/about")
	assert.Contains(t, buf.String(), "path=/about")

	_, _, err = New(config.Log{Format: "xml"}, &buf)
	assert.Error(t, err)
	_, _, err = New(config.Log{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(config.Log{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	l.Info("quiet")
	assert.Zero(t, buf.Len())
	l.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestZapHandler(t *testing.T) {
	var buf bytes.Buffer
	l, sync, err := New(config.Log{Level: "debug", Format: "zap"}, &buf)
	require.NoError(t, err)

	l.With("app", "devserver").WithGroup("http").Debug("request",
		"status", 404,
		"took", 1500*time.Microsecond,
		"ok", false,
		slog.Group("client", "remote", "127.0.0.1"),
		"err", errors.New("boom"),
	)
	require.NoError(t, sync())

	m := decodeLine(t, &buf)
	assert.Equal(t, "request", m["msg"])
	assert.Equal(t, "debug", m["level"])
	assert.Equal(t, "devserver", m["app"])
	assert.NotEmpty(t, m["time"])

	h, ok := m["http"].(map[string]any)
	require.True(t, ok, buf.String())
	assert.Equal(t, float64(404), h["status"])
	assert.Equal(t, false, h["ok"])
	assert.Equal(t, "boom", h["err"])
	assert.Equal(t, map[string]any{"remote": "127.0.0.1"}, h["client"])
}

func TestZapHandlerGroupedAttrs(t *testing.T) {
	var buf bytes.Buffer
	l, sync, err := New(config.Log{Level: "info", Format: "zap"}, &buf)
	require.NoError(t, err)

	l.WithGroup("g").With("bound", 1).WithGroup("inner").With("deep", true).Info("msg", "rec", "x")
	require.NoError(t, sync())

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, `"g":`), line)
	assert.Equal(t, 1, strings.Count(line, `"inner":`), line)
	m := decodeLine(t, &buf)
	assert.Equal(t, map[string]any{
		"bound": float64(1),
		"inner": map[string]any{"deep": true, "rec": "x"},
	}, m["g"])

	buf.Reset()
	l.WithGroup("empty").Info("plain")
	require.NoError(t, sync())
	assert.NotContains(t, buf.String(), `"empty"`)
}

func TestZapHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(config.Log{Level: "error", Format: "zap"}, &buf)
	require.NoError(t, err)
	assert.False(t, l.Enabled(context.Background(), slog.LevelWarn))
	l.Warn("skipped")
	l.Error("kept")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "kept")
}
