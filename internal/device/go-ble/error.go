package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/hrmon/internal/device"
)

// errorPatterns maps lower-cased fragments of go-ble error text to the
// connection state they mean. First match wins.
var errorPatterns = []struct {
	fragment string
	err      *device.ConnectionError
}{
	{"is bluetooth turned on", device.ErrBluetoothOff},
	{"bluetooth is turned off", device.ErrBluetoothOff},
	{"device already connected", device.ErrAlreadyConnected},
	{"device not connected", device.ErrNotConnected},
	{"disconnected", device.ErrNotConnected},
}

// NormalizeError wraps go-ble errors whose text identifies a connection state
// so callers can use errors.Is against the device sentinels. The original
// error text is kept. Context errors and unknown errors pass through.
func NormalizeError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(msg, p.fragment) {
			return fmt.Errorf("%w: %v", p.err, err)
		}
	}
	return err
}
