package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{Level: level, Output: &buf, Prefix: "test"})
	l.sink.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"Warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerFormat(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)
	l.WithComponent("session").WithField("execution", 3).Info("started %d requests", 2)

	want := "2024-01-02T03:04:05.000 [INFO] test: started 2 requests {component=session, execution=3}\n"
	if buf.String() != want {
		t.Errorf("got %q\nwant %q", buf.String(), want)
	}
}

func TestLoggerLevel(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)
	child := l.WithField("k", "v")

	child.Info("hidden")
	child.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	l.SetLevel(LevelDebug)
	child.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("derived logger should follow the parent level")
	}
	if !child.Enabled(LevelDebug) {
		t.Error("debug should be enabled")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing")
	if l.Enabled(LevelError) {
		t.Error("nop logger should be disabled")
	}

	var nilLogger *Logger
	nilLogger.Info("no panic")
}
