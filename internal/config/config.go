// Package config loads pinsync settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvParserURL = "PINSYNC_PARSER_URL"
	EnvStorePath = "PINSYNC_DB"
)

// Config is the full configuration file.
type Config struct {
	Parser ParserConfig `yaml:"parser" validate:"required"`
	Store  StoreConfig  `yaml:"store" validate:"required"`
	Serve  ServeConfig  `yaml:"serve" validate:"required"`
	Log    LogConfig    `yaml:"log" validate:"required"`
}

// ParserConfig locates the parsing service.
type ParserConfig struct {
	URL      string        `yaml:"url" validate:"required,url"`
	Endpoint string        `yaml:"endpoint" validate:"required,startswith=/"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

// StoreConfig locates the workflow database.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ServeConfig configures the HTTP bridge.
type ServeConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{
			URL:      "http://127.0.0.1:8188",
			Endpoint: "/0246-parse",
			Timeout:  10 * time.Second,
		},
		Store: StoreConfig{Path: "pinsync.db"},
		Serve: ServeConfig{Addr: "127.0.0.1:8246"},
		Log:   LogConfig{Level: "info"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path over the defaults, applies environment overrides, and
// validates the result. An empty path or a missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvParserURL); v != "" {
		cfg.Parser.URL = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Store.Path = v
	}
}

// Validate checks every field and reports all failures at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
