package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "FEEDCORE_"

// setters maps a setting path to the function parsing a string into it.
var setters = map[string]func(*Config, string) error{
	"engine.transient_yield_turns": func(c *Config, s string) error { return parseInt(s, &c.Engine.TransientYieldTurns) },
	"engine.reset_threshold":       func(c *Config, s string) error { return parseInt(s, &c.Engine.ResetThreshold) },
	"engine.max_diff_items":        func(c *Config, s string) error { return parseInt(s, &c.Engine.MaxDiffItems) },
	"logging.level":                func(c *Config, s string) error { c.Logging.Level = s; return nil },
	"metrics.enabled":              func(c *Config, s string) error { return parseBool(s, &c.Metrics.Enabled) },
	"metrics.namespace":            func(c *Config, s string) error { c.Metrics.Namespace = s; return nil },
	"metrics.addr":                 func(c *Config, s string) error { c.Metrics.Addr = s; return nil },
	"dispatcher.queue_size":        func(c *Config, s string) error { return parseInt(s, &c.Dispatcher.QueueSize) },
	"watch.debounce":               func(c *Config, s string) error { return c.Watch.Debounce.UnmarshalText([]byte(s)) },
}

// EnvLoader applies environment variable overrides.
type EnvLoader struct {
	prefix  string            // e.g. "FEEDCORE_"
	mapping map[string]string // env var -> setting path
}

// NewEnvLoader creates a loader for variables starting with prefix. The
// prefix should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
	}
}

// defaultEnvMapping holds short aliases for common settings.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL":    "logging.level",
		prefix + "METRICS_ADDR": "metrics.addr",
	}
}

// AddMapping maps an environment variable to a setting path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
}

// Apply overrides the settings of cfg from the environment. Besides the
// explicit mappings, FEEDCORE_SECTION_SETTING_NAME sets
// section.setting_name. Unknown variables are ignored.
func (l *EnvLoader) Apply(cfg *Config) error {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		set, known := setters[path]
		if !known {
			continue
		}
		if err := set(cfg, value); err != nil {
			return fmt.Errorf("environment %s: %w", name, err)
		}
	}
	return nil
}

// envToPath converts FEEDCORE_ENGINE_RESET_THRESHOLD to
// engine.reset_threshold.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok {
		return section
	}
	return section + "." + setting
}

func parseInt(s string, dst *int) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*dst = v
	return nil
}

func parseBool(s string, dst *bool) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		*dst = true
	case "false", "no", "off", "0":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}
