package crepl

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configFileName     = ".crepl.yaml"
	defaultHistoryFile = ".malcrepl_history"
)

// Config holds the user settings read from ~/.crepl.yaml. Zero values in the
// file do not clear defaults; absent keys keep them.
type Config struct {
	Compiler        string        `yaml:"compiler"`
	CFlags          []string      `yaml:"cflags"`
	Libs            []string      `yaml:"libs"`
	HistoryFile     string        `yaml:"history_file"`
	HistoryLimit    int           `yaml:"history_limit"`
	Prompt          string        `yaml:"prompt"`
	InterruptWindow time.Duration `yaml:"interrupt_window"`
	Color           bool          `yaml:"color"`
	LogLevel        string        `yaml:"log_level"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	return Config{
		Libs:            []string{"-lm"},
		HistoryFile:     filepath.Join("~", defaultHistoryFile),
		HistoryLimit:    1000,
		Prompt:          "> ",
		InterruptWindow: 2 * time.Second,
		Color:           true,
		LogLevel:        "warn",
		FetchTimeout:    30 * time.Second,
	}
}

// DefaultConfigPath is ~/.crepl.yaml, or "" when there is no home directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configFileName)
}

// LoadConfig reads path over the defaults. An empty path means the default
// location, which may be missing; an explicit path must exist.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := decodeConfig(f, &cfg); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("config: %w", err)
		}
	}
	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML text over the defaults.
func ParseConfig(text string) (Config, error) {
	cfg := DefaultConfig()
	if err := decodeConfig(strings.NewReader(text), &cfg); err != nil {
		return Config{}, err
	}
	cfg.finish()
	return cfg, cfg.Validate()
}

func decodeConfig(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// finish fills values that depend on the environment.
func (c *Config) finish() {
	if c.Compiler == "" {
		c.Compiler = os.Getenv("CC")
	}
	if c.Compiler == "" {
		c.Compiler = "cc"
	}
	c.HistoryFile = expandHome(c.HistoryFile)
}

func (c Config) Validate() error {
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative (got %d)", c.HistoryLimit)
	}
	if c.InterruptWindow <= 0 {
		return fmt.Errorf("interrupt_window must be positive (got %s)", c.InterruptWindow)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive (got %s)", c.FetchTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
}
