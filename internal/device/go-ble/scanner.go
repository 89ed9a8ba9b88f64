package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/srg/hrmon/internal/device"
)

type bleScanner struct {
	dev ble.Device
}

func (s *bleScanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	err := s.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewAdvertisement(adv))
	})
	return NormalizeError(err)
}

// NewScanner wraps an already opened ble.Device. The same device is shared
// with the GATT sensor client, so the caller owns its lifetime.
func NewScanner(dev ble.Device) device.ScanningDevice {
	return &bleScanner{dev: dev}
}
