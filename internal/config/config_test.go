package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "Movesense", cfg.Scan.NameFilter)
	assert.False(t, cfg.Scan.ClearOnStart)
	assert.Equal(t, 10*time.Second, cfg.Scan.Duration)
	assert.Equal(t, time.Duration(0), cfg.Sensor.ConnectTimeout)
	assert.Equal(t, "hrmon/%s/hr", cfg.MQTT.Topic)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
scan:
  name_filter: Polar
  clear_on_start: true
  duration: 30s
sensor:
  connect_timeout: 15s
mqtt:
  broker: tcp://localhost:1883
  qos: 1
ui:
  ascii: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Polar", cfg.Scan.NameFilter)
	assert.True(t, cfg.Scan.ClearOnStart)
	assert.Equal(t, 30*time.Second, cfg.Scan.Duration)
	assert.Equal(t, 15*time.Second, cfg.Sensor.ConnectTimeout)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "hrmon/%s/hr", cfg.MQTT.Topic, "unset keys keep defaults")
	assert.True(t, cfg.UI.ASCII)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load(writeConfig(t, "scan: [unterminated"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoadMissingDefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"empty filter", func(c *Config) { c.Scan.NameFilter = " " }, "scan.name_filter"},
		{"negative duration", func(c *Config) { c.Scan.Duration = -time.Second }, "scan.duration"},
		{"negative timeout", func(c *Config) { c.Sensor.ConnectTimeout = -time.Second }, "sensor.connect_timeout"},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"topic", func(c *Config) {
			c.MQTT.Broker = "tcp://x:1883"
			c.MQTT.Topic = ""
		}, "mqtt.topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "info"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger.Info("hello")
	assert.Contains(t, buf.String(), "hello")

	cfg.LogLevel = "bogus"
	assert.Equal(t, logrus.WarnLevel, cfg.NewLogger(nil).GetLevel())
}
