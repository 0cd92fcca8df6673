package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestInfoAndWarn(t *testing.T) {
	buf := captureLog(t)
	Info("storage", "loaded %d tasks", 3)
	Warn("storage", "save failed: %v", "disk full")

	out := buf.String()
	if !strings.Contains(out, "[storage] loaded 3 tasks\n") {
		t.Errorf("unexpected info line: %q", out)
	}
	if !strings.Contains(out, "[storage] WARN save failed: disk full\n") {
		t.Errorf("unexpected warn line: %q", out)
	}
}

func TestDebug(t *testing.T) {
	prev := debugEnabled.Load()
	t.Cleanup(func() { debugEnabled.Store(prev) })

	buf := captureLog(t)
	debugEnabled.Store(false)
	Debug("focus", "tick")
	if buf.Len() != 0 {
		t.Errorf("expected no output with debug off, got %q", buf.String())
	}

	SetDebug(true)
	Debug("focus", "tick %d", 1)
	if got := buf.String(); got != "[focus] tick 1\n" {
		t.Errorf("unexpected debug line: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 100, "line one line two"},
		{"abcdefghij", 4, "abcd..."},
		{"  padded  ", 10, "padded"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
