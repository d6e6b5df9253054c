package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG msg=dbg a=1",
		"level=INFO msg=inf b=2",
		"level=WARN msg=wrn c=3",
		"level=ERROR msg=err d=4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("device_id", "dev-1", "op", "download_logs").Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "device_id=dev-1")
	assert.Contains(t, out, "op=download_logs")
	assert.Contains(t, out, "k=v")
}

func TestNewSlogLogger_NilUsesDefault(t *testing.T) {
	l := NewSlogLogger(nil)
	require.NotNil(t, l.l)
	assert.Same(t, slog.Default(), l.l)
}

func TestSlogLogger_RequestID(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "host/abc-000001")

	log.Info(ctx, "device created", "device_id", "dev-1")
	log.Info(context.Background(), "background tick")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "request_id=host/abc-000001")
	assert.Contains(t, lines[0], "device_id=dev-1")
	assert.NotContains(t, lines[1], "request_id")
}

func TestSlogLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	log.Info(context.Background(), "quiet")
	log.Warn(context.Background(), "loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}
