package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format of path from its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path or a missing file yields the
// defaults with overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			format, err := FormatOf(path)
			if err != nil {
				return Config{}, err
			}
			if err := Decode(&cfg, format, path, data); err != nil {
				return Config{}, err
			}
		}
	}

	if err := NewEnvLoader(EnvPrefix).Apply(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses data into cfg. Keys absent from data keep the value
// already in cfg. source names the data in errors.
func Decode(cfg *Config, format Format, source string, data []byte) error {
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			pe := &ParseError{Path: source, Err: err}
			var de *toml.DecodeError
			if errors.As(err, &de) {
				pe.Line, pe.Column = de.Position()
			}
			var sme *toml.StrictMissingError
			if errors.As(err, &sme) {
				pe.Err = errors.New(strings.TrimSpace(sme.String()))
			}
			return pe
		}
		return nil

	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &ParseError{Path: source, Err: err}
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
