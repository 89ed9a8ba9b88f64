package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/ringchan"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultNameFilter is the advertised-name fragment of Movesense sensors.
const DefaultNameFilter = "Movesense"

const eventBufferSize = 100

// EventType marks what happened during a scan
type EventType int

const (
	// EventNew is sent once per newly discovered matching device.
	EventNew EventType = iota
	// EventFailed is sent when the underlying scan stopped with an error.
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventNew:
		return "new"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted on the Events channel
type Event struct {
	Type   EventType
	Device device.DiscoveredDevice
	Err    error
}

// Options configures scanning behavior
type Options struct {
	// NameFilter is matched case-sensitively as a substring of the advertised name.
	NameFilter string
	// AllowDuplicates asks the adapter to report every advertisement, not just the first.
	AllowDuplicates bool
}

// DefaultOptions returns default scanning options
func DefaultOptions() Options {
	return Options{NameFilter: DefaultNameFilter}
}

// Scanner handles BLE device discovery.
//
// Discovered devices accumulate in insertion order, keyed by identifier; the
// first name seen for an identifier wins. Stopping a scan keeps the list.
type Scanner struct {
	dev    device.ScanningDevice
	opts   Options
	logger *logrus.Logger
	events *ringchan.RingChannel[Event]

	mu       sync.Mutex
	devices  *orderedmap.OrderedMap[string, device.DiscoveredDevice]
	scanning bool
	run      uint64 // incremented per Start; advertisements from older runs are ignored
	cancel   context.CancelFunc
}

// New creates a Scanner on top of dev
func New(dev device.ScanningDevice, opts Options, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.NameFilter == "" {
		opts.NameFilter = DefaultNameFilter
	}

	return &Scanner{
		dev:     dev,
		opts:    opts,
		logger:  logger,
		events:  ringchan.New[Event](eventBufferSize),
		devices: orderedmap.New[string, device.DiscoveredDevice](),
	}
}

// Start begins a continuous scan in the background. Calling Start while a
// scan is running is a no-op.
func (s *Scanner) Start(ctx context.Context) error {
	if s.dev == nil {
		return fmt.Errorf("scanner has no BLE device")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		s.logger.Debug("Scan already running")
		return nil
	}

	scanCtx, cancel := context.WithCancel(ctx)
	s.run++
	s.scanning = true
	s.cancel = cancel
	run := s.run

	s.logger.WithField("name_filter", s.opts.NameFilter).Info("Starting BLE scan...")

	groutine.Go(scanCtx, "ble-scan", func(ctx context.Context) {
		err := s.dev.Scan(ctx, s.opts.AllowDuplicates, func(adv device.Advertisement) {
			s.handleAdvertisement(run, adv)
		})
		s.finish(run, err)
	})

	return nil
}

// Stop halts the scan. It is a no-op when no scan is running and it does not
// clear the discovered devices.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning {
		return
	}

	s.cancel()
	s.cancel = nil
	s.scanning = false

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan stopped")
}

// finish records the end of a scan run
func (s *Scanner) finish(run uint64, err error) {
	s.mu.Lock()
	current := run == s.run && s.scanning
	if current {
		s.scanning = false
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	s.mu.Unlock()

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	s.logger.WithError(err).Error("BLE scan failed")
	if current {
		s.events.Send(Event{Type: EventFailed, Err: fmt.Errorf("scan failed: %w", err)})
	}
}

// handleAdvertisement filters and records a single advertisement
func (s *Scanner) handleAdvertisement(run uint64, adv device.Advertisement) {
	name := adv.LocalName()
	if !strings.Contains(name, s.opts.NameFilter) {
		return
	}

	dev := device.DiscoveredDevice{
		ID:   adv.Addr(),
		Name: name,
		RSSI: adv.RSSI(),
	}

	s.mu.Lock()
	if run != s.run || !s.scanning {
		s.mu.Unlock()
		return
	}
	if _, known := s.devices.Get(dev.ID); known {
		s.mu.Unlock()
		return
	}
	s.devices.Set(dev.ID, dev)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"device":  dev.Name,
		"address": dev.ID,
		"rssi":    dev.RSSI,
	}).Info("Discovered new device")

	if s.events.Send(Event{Type: EventNew, Device: dev}) {
		s.logger.Warn("Scanner event buffer full, dropped oldest event")
	}
}

// Devices returns a snapshot of discovered devices in discovery order
func (s *Scanner) Devices() []device.DiscoveredDevice {
	s.mu.Lock()
	defer s.mu.Unlock()

	devs := make([]device.DiscoveredDevice, 0, s.devices.Len())
	for pair := s.devices.Oldest(); pair != nil; pair = pair.Next() {
		devs = append(devs, pair.Value)
	}
	return devs
}

// Clear removes all discovered devices
func (s *Scanner) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = orderedmap.New[string, device.DiscoveredDevice]()
	s.logger.Debug("Cleared discovered devices")
}

// IsScanning reports whether a scan is active
func (s *Scanner) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Events returns a read-only channel of scan events
func (s *Scanner) Events() <-chan Event {
	return s.events.C()
}
