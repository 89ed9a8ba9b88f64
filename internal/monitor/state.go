package monitor

import (
	"fmt"
	"math"

	"github.com/srg/hrmon/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ConnectedDevice is the sensor of the current session.
type ConnectedDevice struct {
	Serial  string `json:"serial"`
	Address string `json:"address"`
}

// HeartRateReading is the latest decoded notification.
type HeartRateReading struct {
	RawSamples []float64 `json:"rrData"`
	AverageBPM float64   `json:"average"`
	// HasBody is false when the notification carried no Body.
	HasBody bool `json:"-"`
}

// DisplayBPM renders the reading for the screen, "72 bpm" or "-- bpm".
// It is safe to call on a nil reading.
func (r *HeartRateReading) DisplayBPM() string {
	if r == nil || !r.HasBody {
		return "-- bpm"
	}
	return fmt.Sprintf("%d bpm", int64(math.Round(r.AverageBPM)))
}

// UIState holds flags that only matter for rendering.
type UIState struct {
	IsScanning   bool
	IsLoading    bool
	IsPickerOpen bool
	LastError    string
}

// SubscriptionState mirrors the subscription state machine.
// Gen only grows; callbacks tagged with an older Gen are stale.
type SubscriptionState struct {
	Active bool
	Gen    uint64
	Topic  string
}

// State is everything the reducer owns. It is only touched by the goroutine
// running the reducer.
type State struct {
	Devices      *orderedmap.OrderedMap[string, device.DiscoveredDevice]
	Connected    *ConnectedDevice
	Reading      *HeartRateReading
	UI           UIState
	Subscription SubscriptionState
}

// NewState returns the initial state: nothing discovered, not connected.
func NewState() *State {
	return &State{Devices: orderedmap.New[string, device.DiscoveredDevice]()}
}

// Snapshot is an immutable copy of State handed to renderers.
type Snapshot struct {
	Devices      []device.DiscoveredDevice
	Connected    *ConnectedDevice
	Reading      *HeartRateReading
	UI           UIState
	Subscription SubscriptionState
}

// Snapshot copies s.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Devices:      make([]device.DiscoveredDevice, 0, s.Devices.Len()),
		UI:           s.UI,
		Subscription: s.Subscription,
	}
	for pair := s.Devices.Oldest(); pair != nil; pair = pair.Next() {
		snap.Devices = append(snap.Devices, pair.Value)
	}
	if s.Connected != nil {
		c := *s.Connected
		snap.Connected = &c
	}
	if s.Reading != nil {
		r := *s.Reading
		r.RawSamples = append([]float64(nil), s.Reading.RawSamples...)
		snap.Reading = &r
	}
	return snap
}
