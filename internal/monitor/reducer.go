package monitor

import (
	"strings"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/sensor"
	"github.com/srg/hrmon/scanner"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Options configures the reducer.
type Options struct {
	// NameFilter is the advertised-name fragment a device must carry to be listed.
	NameFilter string
	// ClearOnStart empties the device list on every search. Off by default:
	// devices found by an earlier search stay listed.
	ClearOnStart bool
}

// Reducer is the only place State changes. Reduce is deterministic: a message
// log replayed into a fresh State reproduces the same state.
type Reducer struct {
	opts Options
}

// NewReducer creates a Reducer.
func NewReducer(opts Options) *Reducer {
	if opts.NameFilter == "" {
		opts.NameFilter = scanner.DefaultNameFilter
	}
	return &Reducer{opts: opts}
}

// Reduce applies msg to s and returns the effects to run, in order.
func (r *Reducer) Reduce(s *State, msg Msg) []Effect {
	switch m := msg.(type) {
	case SearchPressed:
		return r.search(s)
	case DeviceSelected:
		return r.selectDevice(s, m)
	case DisconnectPressed:
		if s.Connected == nil {
			return nil
		}
		return []Effect{Disconnect{Address: s.Connected.Address}}
	case ClosePressed:
		s.UI.IsPickerOpen = false
		return r.stopScan(s, nil)

	case PeripheralDiscovered:
		r.discover(s, m)
		return nil
	case ScanFailed:
		s.UI.IsScanning = false
		if m.Err != nil {
			s.UI.LastError = "Scan failed: " + sensor.ErrorMessage(m.Err)
		}
		return nil

	case Connected:
		return r.connected(s, m)
	case Disconnected:
		return r.disconnected(s, m)
	case ConnectFailed:
		s.UI.IsLoading = false
		s.UI.LastError = sensor.ErrorMessage(m.Err)
		return nil
	case DisconnectFailed:
		s.UI.LastError = sensor.ErrorMessage(m.Err)
		return nil

	case ReadingReceived:
		return r.reading(s, m)
	case SubscriptionFailed:
		if !r.current(s, m.Gen) {
			return nil
		}
		s.UI.LastError = sensor.ErrorMessage(m.Err)
		s.UI.IsLoading = false
		return nil
	}
	return nil
}

func (r *Reducer) search(s *State) []Effect {
	var effects []Effect
	s.UI.IsPickerOpen = true
	if r.opts.ClearOnStart {
		clearDevices(s)
		effects = append(effects, ClearDevices{})
	}
	if !s.UI.IsScanning {
		s.UI.IsScanning = true
		effects = append(effects, StartScan{})
	}
	return effects
}

func (r *Reducer) selectDevice(s *State, m DeviceSelected) []Effect {
	// one session at a time. A connect still pending is refused by the
	// client, which comes back as ConnectFailed.
	if s.Connected != nil {
		return nil
	}
	s.UI.IsLoading = true
	s.UI.IsPickerOpen = false
	return r.stopScan(s, []Effect{Connect{ID: m.ID}})
}

func (r *Reducer) stopScan(s *State, effects []Effect) []Effect {
	if s.UI.IsScanning {
		s.UI.IsScanning = false
		effects = append(effects, StopScan{})
	}
	return effects
}

func (r *Reducer) discover(s *State, m PeripheralDiscovered) {
	if m.Device.ID == "" || !strings.Contains(m.Device.Name, r.opts.NameFilter) {
		return
	}
	if _, known := s.Devices.Get(m.Device.ID); known {
		return
	}
	s.Devices.Set(m.Device.ID, m.Device)
}

func (r *Reducer) connected(s *State, m Connected) []Effect {
	var effects []Effect

	if s.Subscription.Active {
		if s.Connected != nil && s.Connected.Serial == m.Serial {
			return nil
		}
		effects = append(effects, CloseSubscription{Gen: s.Subscription.Gen})
	}

	s.Connected = &ConnectedDevice{Serial: m.Serial, Address: m.Address}
	s.Reading = nil
	effects = r.stopScan(s, effects)

	s.Subscription = SubscriptionState{
		Active: true,
		Gen:    s.Subscription.Gen + 1,
		Topic:  sensor.HeartRateTopic(m.Serial),
	}
	return append(effects, OpenSubscription{Gen: s.Subscription.Gen, Topic: s.Subscription.Topic})
}

func (r *Reducer) disconnected(s *State, m Disconnected) []Effect {
	if m.Serial != "" && s.Connected != nil && s.Connected.Serial != m.Serial {
		// link of an earlier sensor
		return nil
	}
	var effects []Effect
	if s.Subscription.Active {
		effects = append(effects, CloseSubscription{Gen: s.Subscription.Gen})
	}
	s.Subscription.Active = false
	s.Subscription.Topic = ""
	s.Connected = nil
	s.Reading = nil
	s.UI.IsLoading = false
	return effects
}

func (r *Reducer) reading(s *State, m ReadingReceived) []Effect {
	if !r.current(s, m.Gen) || s.Connected == nil {
		return nil
	}

	reading, err := ParseNotification(m.Payload)
	s.UI.IsLoading = false
	if err != nil {
		s.UI.LastError = err.Error()
		return nil
	}

	s.Reading = &reading
	if !reading.HasBody {
		return nil
	}
	return []Effect{PublishReading{Device: *s.Connected, Reading: reading}}
}

// current reports whether gen belongs to the open subscription
func (r *Reducer) current(s *State, gen uint64) bool {
	return s.Subscription.Active && s.Subscription.Gen == gen
}

func clearDevices(s *State) {
	s.Devices = orderedmap.New[string, device.DiscoveredDevice]()
}
