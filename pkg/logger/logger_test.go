package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{" warn ", WARN},
		{"warning", WARN},
		{"Error", ERROR},
		{"fatal", FATAL},
		{"", INFO},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	cfg.Colorize = false
	cfg.Level = WARN
	l := New(cfg)

	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	_ = l.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message leaked at WARN level: %q", out)
	}
	if !strings.Contains(out, "shown 2") || !strings.Contains(out, "WARN") {
		t.Errorf("expected warn message, got %q", out)
	}

	l.SetLevel(DEBUG)
	if l.Level() != DEBUG {
		t.Fatalf("Level() = %v, want DEBUG", l.Level())
	}
	l.Debugf("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug message missing after SetLevel")
	}
}

func TestLoggerWritesRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	cfg.Colorize = false
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "reeldna.log")
	l := New(cfg)

	l.With("session", "abc").Infof("written to file")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"written to file"`) || !strings.Contains(string(data), `"session":"abc"`) {
		t.Errorf("unexpected file contents: %s", data)
	}
}
