package testutils

import (
	"context"
	"sync"

	"github.com/srg/hrmon/internal/device"
)

// FakeScanningDevice replays a fixed set of advertisements on every Scan and
// then blocks until the context is done, like a real adapter would.
// Advertisements pushed with Emit while a scan runs are delivered too.
type FakeScanningDevice struct {
	mu      sync.Mutex
	ads     []device.Advertisement
	err     error
	scans   int
	live    chan device.Advertisement
	started chan struct{}
}

// NewFakeScanningDevice creates a fake that replays ads on every scan.
func NewFakeScanningDevice(ads ...device.Advertisement) *FakeScanningDevice {
	return &FakeScanningDevice{
		ads:     ads,
		live:    make(chan device.Advertisement, 16),
		started: make(chan struct{}, 16),
	}
}

// FailWith makes the next scans return err right after replaying advertisements.
func (f *FakeScanningDevice) FailWith(err error) *FakeScanningDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

// Emit delivers adv to the running scan.
func (f *FakeScanningDevice) Emit(adv device.Advertisement) {
	f.live <- adv
}

// Started is signalled each time Scan is entered.
func (f *FakeScanningDevice) Started() <-chan struct{} {
	return f.started
}

// Scans returns how many times Scan was called.
func (f *FakeScanningDevice) Scans() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

// Scan implements device.ScanningDevice.
func (f *FakeScanningDevice) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	f.mu.Lock()
	f.scans++
	ads := append([]device.Advertisement(nil), f.ads...)
	err := f.err
	f.mu.Unlock()

	for _, adv := range ads {
		handler(adv)
	}
	select {
	case f.started <- struct{}{}:
	default:
	}

	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case adv := <-f.live:
			handler(adv)
		}
	}
}
