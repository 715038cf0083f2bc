// Package config loads the feedcore engine configuration.
//
// Configuration is read from a TOML or YAML file chosen by extension,
// then overridden by FEEDCORE_* environment variables, then validated:
//
//	cfg, err := config.Load("feedcore.toml")
//
// A missing file is not an error; defaults apply.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Engine     EngineConfig     `toml:"engine" yaml:"engine"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics" yaml:"metrics"`
	Dispatcher DispatcherConfig `toml:"dispatcher" yaml:"dispatcher"`
	Watch      WatchConfig      `toml:"watch" yaml:"watch"`
}

// EngineConfig tunes feed sessions and collection tracking.
type EngineConfig struct {
	// TransientYieldTurns is the number of scheduler turns an execution
	// waits for its producer before publishing a transient message.
	TransientYieldTurns int `toml:"transient_yield_turns" yaml:"transient_yield_turns"`

	// ResetThreshold is the number of touched items above which a list
	// change collapses into a reset. 0 disables collapsing.
	ResetThreshold int `toml:"reset_threshold" yaml:"reset_threshold"`

	// MaxDiffItems is the list size above which no diff is computed.
	// 0 removes the limit.
	MaxDiffItems int `toml:"max_diff_items" yaml:"max_diff_items"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// MetricsConfig configures Prometheus instrumentation.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled"`
	Namespace string `toml:"namespace" yaml:"namespace"`
	// Addr is the listen address of the metrics endpoint, e.g. ":9090".
	// Empty disables the endpoint.
	Addr string `toml:"addr" yaml:"addr"`
}

// DispatcherConfig configures queue dispatchers.
type DispatcherConfig struct {
	QueueSize int `toml:"queue_size" yaml:"queue_size"`
}

// WatchConfig configures file watching.
type WatchConfig struct {
	// Debounce is the quiet period before a burst of file events
	// triggers a single re-execution.
	Debounce Duration `toml:"debounce" yaml:"debounce"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			TransientYieldTurns: 5,
			ResetThreshold:      100,
			MaxDiffItems:        10000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Namespace: "feedcore",
		},
		Dispatcher: DispatcherConfig{
			QueueSize: 1024,
		},
		Watch: WatchConfig{
			Debounce: Duration(100 * time.Millisecond),
		},
	}
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration in time.Duration notation.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}
