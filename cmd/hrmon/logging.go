package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/config"
)

// settings is what every command needs before it touches the radio
type settings struct {
	cfg     *config.Config
	logger  *logrus.Logger
	logFile *os.File
}

func (s *settings) Close() {
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

// loadSettings reads the config file and applies flag overrides on top of it.
// quiet discards logs unless --log-file is given; the monitor screen uses it so
// log lines do not draw over the screen.
func loadSettings(cmd *cobra.Command, quiet bool) (*settings, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("name-filter"); v != "" {
		cfg.Scan.NameFilter = v
	}
	if flags.Changed("simulate") {
		cfg.Sensor.Simulate, _ = flags.GetBool("simulate")
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		if _, err := parseLogLevel(v); err != nil {
			return nil, err
		}
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &settings{cfg: cfg}
	var out io.Writer = os.Stderr
	if quiet {
		out = io.Discard
	}
	if logPath, _ := flags.GetString("log-file"); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		s.logFile = f
		out = f
	}
	s.logger = cfg.NewLogger(out)
	return s, nil
}

func parseLogLevel(v string) (logrus.Level, error) {
	switch v {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	}
	return logrus.PanicLevel, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", v)
}
