package main

import (
	"errors"
	"strings"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/sensor"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the sensor link dropped while streaming.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNotATerminal is returned when the interactive screen has no TTY.
	ErrNotATerminal = errors.New("not a terminal")
)

// FormatUserError turns known errors into short hints for the terminal.
func FormatUserError(err error) string {
	var serr *sensor.Error
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is off or the adapter is unavailable; turn it on and retry"
	case errors.Is(err, device.ErrUnsupported):
		return err.Error() + " (try --simulate)"
	case errors.Is(err, ErrNotATerminal):
		return "the monitor screen needs an interactive terminal; use 'hrmon stream' instead"
	case errors.Is(err, ErrConnectionLost):
		return "connection to the sensor was lost"
	case errors.As(err, &serr):
		return serr.Message
	case strings.Contains(err.Error(), "operation not permitted"):
		return err.Error() + "; run as root or grant cap_net_raw,cap_net_admin"
	}
	return err.Error()
}
