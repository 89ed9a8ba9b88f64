// Package permission checks whether the process may drive the Bluetooth
// adapter before the first scan.
package permission

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Gate asks the platform whether BLE access is granted.
type Gate interface {
	// Check reports the current grant without side effects.
	Check(ctx context.Context) (bool, error)
	// Request asks for the grant. Platforms that cannot elevate at runtime
	// explain the remedy and return false.
	Request(ctx context.Context) (bool, error)
}

// Run checks the gate once and requests access when it is missing.
// The outcome is only logged: scanning is attempted either way and the
// adapter reports its own error if access is really missing.
func Run(ctx context.Context, gate Gate, logger *logrus.Logger) bool {
	if logger == nil {
		logger = logrus.New()
	}
	if gate == nil {
		return true
	}

	granted, err := gate.Check(ctx)
	if err != nil {
		logger.WithError(err).Warn("Permission check failed")
	}
	if granted {
		logger.Debug("Bluetooth permission granted")
		return true
	}

	granted, err = gate.Request(ctx)
	if err != nil {
		logger.WithError(err).Warn("Permission request failed")
	}
	if granted {
		logger.Info("Bluetooth permission granted")
	} else {
		logger.Warn("Bluetooth permission denied, scanning may fail")
	}
	return granted
}

// Static is a gate with a fixed answer.
type Static bool

// Check implements Gate.
func (s Static) Check(context.Context) (bool, error) { return bool(s), nil }

// Request implements Gate.
func (s Static) Request(context.Context) (bool, error) { return bool(s), nil }
