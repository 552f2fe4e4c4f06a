package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestForTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug")

	For("render").Info("frame")

	out := buf.String()
	if !strings.Contains(out, "component=render") {
		t.Errorf("output %q missing component tag", out)
	}
	if !strings.Contains(out, "msg=frame") {
		t.Errorf("output %q missing message", out)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn")

	Info("hidden")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}
