// Package config loads hrmon settings from YAML with struct-tag defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel string       `yaml:"log_level" default:"warn"`
	Scan     ScanConfig   `yaml:"scan"`
	Sensor   SensorConfig `yaml:"sensor"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
	UI       UIConfig     `yaml:"ui"`
}

// ScanConfig holds discovery settings.
type ScanConfig struct {
	NameFilter      string `yaml:"name_filter" default:"Movesense"`
	ClearOnStart    bool   `yaml:"clear_on_start"`
	AllowDuplicates bool   `yaml:"allow_duplicates"`
	// Duration bounds the headless scan command.
	Duration time.Duration `yaml:"duration" default:"10s"`
}

// SensorConfig holds connection settings.
type SensorConfig struct {
	// ConnectTimeout bounds the GATT dial; 0 waits indefinitely.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Simulate       bool          `yaml:"simulate"`
}

// MQTTConfig enables publishing readings when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic" default:"hrmon/%s/hr"`
	QoS      byte   `yaml:"qos"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// UIConfig holds screen settings.
type UIConfig struct {
	// ASCII replaces the heart glyph and the spinner with plain characters.
	ASCII bool `yaml:"ascii"`
}

// DefaultPath returns ~/.config/hrmon/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "hrmon", "config.yaml")
}

// Default returns a Config with default values applied
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. A missing file at the default
// path is not an error; a missing explicitly named file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(expandTilde(path))
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if strings.TrimSpace(c.Scan.NameFilter) == "" {
		return fmt.Errorf("scan.name_filter must not be empty")
	}
	if c.Scan.Duration < 0 {
		return fmt.Errorf("scan.duration must not be negative")
	}
	if c.Sensor.ConnectTimeout < 0 {
		return fmt.Errorf("sensor.connect_timeout must not be negative")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic must not be empty when mqtt.broker is set")
	}
	return nil
}

// NewLogger creates a logger at the configured level writing to out.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	if out != nil {
		logger.SetOutput(out)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
