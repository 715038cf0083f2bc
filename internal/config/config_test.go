package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestLoadFormats(t *testing.T) {
	want := Default()
	want.Engine.ResetThreshold = 50
	want.Logging.Level = "debug"
	want.Metrics.Enabled = true
	want.Watch.Debounce = Duration(250 * time.Millisecond)

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "feedcore.toml",
			content: `
[engine]
reset_threshold = 50

[logging]
level = "debug"

[metrics]
enabled = true

[watch]
debounce = "250ms"
`,
		},
		{
			name: "yaml",
			file: "feedcore.yml",
			content: `
engine:
  reset_threshold: 50
logging:
  level: debug
metrics:
  enabled: true
watch:
  debounce: 250ms
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("expected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("unsupported", func(t *testing.T) {
		_, err := Load(writeFile(t, "feedcore.ini", "x=1"))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("toml syntax", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.toml", "[engine\nreset_threshold = 1"))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ParseError, got %v", err)
		}
		if pe.Line == 0 {
			t.Errorf("expected a line number, got %+v", pe)
		}
	})

	t.Run("unknown yaml field", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.yaml", "engine:\n  unknown: 1\n"))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("expected ParseError, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.toml", "[dispatcher]\nqueue_size = 0\n[logging]\nlevel = \"loud\"\n"))
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if !ve.Has("dispatcher.queue_size") || !ve.Has("logging.level") {
			t.Errorf("unexpected fields: %v", ve)
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEEDCORE_ENGINE_TRANSIENT_YIELD_TURNS", "9")
	t.Setenv("FEEDCORE_LOG_LEVEL", "warn")
	t.Setenv("FEEDCORE_METRICS_ENABLED", "yes")
	t.Setenv("FEEDCORE_WATCH_DEBOUNCE", "1s")
	t.Setenv("FEEDCORE_UNKNOWN_THING", "ignored")

	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Engine.TransientYieldTurns != 9 {
		t.Errorf("transient_yield_turns = %d", got.Engine.TransientYieldTurns)
	}
	if got.Logging.Level != "warn" || !got.Metrics.Enabled {
		t.Errorf("unexpected overrides: %+v", got)
	}
	if got.Watch.Debounce.Std() != time.Second {
		t.Errorf("debounce = %v", got.Watch.Debounce)
	}

	t.Setenv("FEEDCORE_DISPATCHER_QUEUE_SIZE", "many")
	if _, err := Load(""); err == nil {
		t.Error("invalid integer override should fail")
	}
}
