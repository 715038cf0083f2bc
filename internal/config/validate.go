package config

import (
	"github.com/dshills/feedcore/internal/logging"
)

// Validate checks every setting and returns a *ValidationError listing
// all invalid ones.
func (c Config) Validate() error {
	var errs []FieldError
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if c.Engine.TransientYieldTurns < 0 {
		add("engine.transient_yield_turns", "must not be negative")
	}
	if c.Engine.ResetThreshold < 0 {
		add("engine.reset_threshold", "must not be negative")
	}
	if c.Engine.MaxDiffItems < 0 {
		add("engine.max_diff_items", "must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", err.Error())
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		add("metrics.namespace", "required when metrics are enabled")
	}
	if c.Dispatcher.QueueSize <= 0 {
		add("dispatcher.queue_size", "must be positive")
	}
	if c.Watch.Debounce < 0 {
		add("watch.debounce", "must not be negative")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// LogLevel returns the parsed logging level, defaulting to info.
func (c Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return level
}
