// Package config loads parsebot settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kpumuk/parsebot/internal/ctxlog"
	"github.com/kpumuk/parsebot/internal/grammar"
)

// Config is the full configuration file.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Grammar GrammarConfig `yaml:"grammar"`
	Lint    LintConfig    `yaml:"lint"`
	Format  FormatConfig  `yaml:"format"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// BotConfig controls command routing.
type BotConfig struct {
	// Name is the optional prefix users may address the bot with, e.g. "parsebot parse 1+1".
	Name           string `yaml:"name"`
	DefaultBackend string `yaml:"default_backend"`
}

// GrammarConfig selects the grammar versions served by parserNN and check-syntax.
type GrammarConfig struct {
	MinVersion grammar.Version `yaml:"min_version"`
	MaxVersion grammar.Version `yaml:"max_version"`
}

// Range returns the configured versions as a grammar.Range.
func (g GrammarConfig) Range() grammar.Range {
	return grammar.Range{Min: g.MinVersion, Max: g.MaxVersion}
}

// LintConfig configures the run-lint subprocess.
type LintConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// FormatConfig configures output rendering.
type FormatConfig struct {
	LineWidth int `yaml:"line_width"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the websocket transport.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bot:     BotConfig{Name: "parsebot", DefaultBackend: "sexp"},
		Grammar: GrammarConfig{MinVersion: grammar.MinSupported, MaxVersion: grammar.MaxSupported},
		Lint:    LintConfig{Command: "ruby", Args: []string{"-wc"}, Timeout: 10 * time.Second},
		Format:  FormatConfig{LineWidth: 80},
		Log:     LogConfig{Level: "info", Format: "text"},
		Server:  ServerConfig{Listen: ":8080"},
	}
}

// Load reads the file at path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no usable zero value.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.Name) == "" {
		errs = append(errs, errors.New("bot.name must not be empty"))
	}
	if err := c.Grammar.Range().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("grammar: %w", err))
	}
	if c.Lint.Command == "" {
		errs = append(errs, errors.New("lint.command must not be empty"))
	}
	if c.Lint.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("lint.timeout must be positive, got %s", c.Lint.Timeout))
	}
	if c.Format.LineWidth < 0 {
		errs = append(errs, fmt.Errorf("format.line_width must not be negative, got %d", c.Format.LineWidth))
	}
	if _, err := ctxlog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
