package mapview

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func TestLoggerDefaultSilent(t *testing.T) {
	SetLogger(nil)
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Error("default logger is enabled")
	}
}

func TestDebugFrameLogging(t *testing.T) {
	buf := captureLogs(t)
	v := newTestViewport(t, Options{Debug: true})
	v.Resize(500, 500)
	v.Frame()

	out := buf.String()
	if !strings.Contains(out, "viewport ready") {
		t.Errorf("missing ready log:\n%s", out)
	}
	if !strings.Contains(out, "msg=frame") || !strings.Contains(out, "zoom=-1") {
		t.Errorf("missing frame stats:\n%s", out)
	}
}

func TestLayerInitFailureLogged(t *testing.T) {
	buf := captureLogs(t)
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	l, _ := NewImageLayer(ImageLayerOptions{URL: "missing.png"})
	initLayer(t, v, l)
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "layer init failed") {
		t.Errorf("missing warning:\n%s", out)
	}
}
