package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Configuration struct {
	Version   string `toml:"-" yaml:"-"`
	BuildDate string `toml:"-" yaml:"-"`
	Commit    string `toml:"-" yaml:"-"`

	LogLevel       string        `toml:"log_level" yaml:"log_level"`
	LogFile        string        `toml:"log_file" yaml:"log_file"`
	StatusInterval time.Duration `toml:"status_interval" yaml:"status_interval"`

	Sql    SqlConfig    `toml:"sql" yaml:"sql"`
	Widget WidgetConfig `toml:"widget" yaml:"widget"`
}

type SqlConfig struct {
	Driver string `toml:"driver" yaml:"driver"`
	DSN    string `toml:"dsn" yaml:"dsn"`
}

type WidgetConfig struct {
	ButtonLabel string `toml:"button_label" yaml:"button_label"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		LogLevel: "info",
		Widget:   WidgetConfig{ButtonLabel: "OK"},
	}
}

// LoadConfiguration reads path over the defaults. The format follows the
// extension: .toml, or .yaml/.yml.
func LoadConfiguration(path string) (Configuration, error) {
	cfg := DefaultConfiguration()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}
