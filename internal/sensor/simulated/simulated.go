// Package simulated provides an in-process heart-rate sensor that behaves like
// a BLE peripheral and the sensor SDK at once. It backs the --simulate flag.
package simulated

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/sensor"
)

// Peripheral is one advertised simulated device.
type Peripheral struct {
	ID     string
	Name   string
	RSSI   int
	Serial string
}

// Options configures the simulator.
type Options struct {
	Peripherals       []Peripheral
	AdvertiseInterval time.Duration `default:"500ms"`
	ConnectDelay      time.Duration `default:"300ms"`
	Interval          time.Duration `default:"1s"`
	BPM               float64       `default:"72"`
	// Variation is the amplitude of the slow sine drift added to BPM.
	Variation float64 `default:"6"`
}

// DefaultPeripherals are advertised when Options.Peripherals is empty.
func DefaultPeripherals() []Peripheral {
	return []Peripheral{
		{ID: "0C:8C:DC:3F:A1:01", Name: "Movesense 174630000192", RSSI: -52, Serial: "174630000192"},
		{ID: "0C:8C:DC:3F:A1:02", Name: "Movesense 174630000207", RSSI: -71, Serial: "174630000207"},
		{ID: "5A:11:22:33:44:55", Name: "Polar H10 8C2D1A", RSSI: -64, Serial: "8C2D1A"},
	}
}

type subscription struct {
	cancel context.CancelFunc
}

// Sensor is a simulated peripheral fleet plus sensor session.
type Sensor struct {
	opts   Options
	logger *logrus.Logger

	handlersMu sync.RWMutex
	handlers   sensor.Handlers

	mu         sync.Mutex
	connected  *Peripheral
	cancelDial context.CancelFunc // set while a connect is pending
	closed     bool

	subs *hashmap.Map[sensor.SubscriptionKey, *subscription]
	seq  int
}

// NewSensor creates a simulator. Zero option fields get defaults.
func NewSensor(opts Options, logger *logrus.Logger) *Sensor {
	defaults.SetDefaults(&opts)
	if len(opts.Peripherals) == 0 {
		opts.Peripherals = DefaultPeripherals()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Sensor{
		opts:   opts,
		logger: logger,
		subs:   hashmap.New[sensor.SubscriptionKey, *subscription](),
	}
}

// Scan implements device.ScanningDevice. Every peripheral is advertised
// once per AdvertiseInterval until ctx is done.
func (s *Sensor) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	advertise := func() {
		for _, p := range s.opts.Peripherals {
			handler(advertisement{p})
		}
	}

	advertise()
	ticker := time.NewTicker(s.opts.AdvertiseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if allowDup {
				advertise()
			}
		}
	}
}

// SetHandlers implements sensor.Client.
func (s *Sensor) SetHandlers(h sensor.Handlers) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = h
}

func (s *Sensor) currentHandlers() sensor.Handlers {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers
}

func (s *Sensor) lookup(id string) (Peripheral, bool) {
	for _, p := range s.opts.Peripherals {
		if p.ID == id {
			return p, true
		}
	}
	return Peripheral{}, false
}

// Connect implements sensor.Client. Like a real adapter it serves one
// attempt at a time.
func (s *Sensor) Connect(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return sensor.ErrClosed
	}
	if s.connected != nil || s.cancelDial != nil {
		s.mu.Unlock()
		return device.ErrAlreadyConnected
	}
	ctx, s.cancelDial = context.WithCancel(ctx)
	s.mu.Unlock()

	groutine.Go(ctx, "simulated-connect", func(ctx context.Context) {
		var err error
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(s.opts.ConnectDelay):
		}

		p, ok := s.lookup(id)
		if err == nil && !ok {
			err = fmt.Errorf("failed to connect to device with address %q: no such peripheral", id)
		}

		s.mu.Lock()
		s.cancelDial()
		s.cancelDial = nil
		if s.closed {
			s.mu.Unlock()
			return
		}
		if err == nil {
			s.connected = &p
		}
		s.mu.Unlock()

		h := s.currentHandlers()
		if err != nil {
			if h.OnConnectFailed != nil {
				h.OnConnectFailed(id, err)
			}
			return
		}

		s.logger.WithFields(logrus.Fields{"address": p.ID, "serial": p.Serial}).Info("Simulated sensor connected")
		if h.OnConnect != nil {
			h.OnConnect(p.Serial, p.ID)
		}
	})
	return nil
}

// Disconnect implements sensor.Client.
func (s *Sensor) Disconnect(address string) error {
	s.mu.Lock()
	p := s.connected
	if p == nil || p.ID != address {
		s.mu.Unlock()
		return device.ErrNotConnected
	}
	s.connected = nil
	s.mu.Unlock()

	s.stopAll()
	s.logger.WithField("serial", p.Serial).Info("Simulated sensor disconnected")

	if h := s.currentHandlers(); h.OnDisconnect != nil {
		h.OnDisconnect(p.Serial)
	}
	return nil
}

// Close implements sensor.Client.
func (s *Sensor) Close() error {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancelDial
	p := s.connected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if p == nil {
		return nil
	}
	return s.Disconnect(p.ID)
}

// DropLink simulates the peripheral going out of range.
func (s *Sensor) DropLink() {
	s.mu.Lock()
	p := s.connected
	s.mu.Unlock()
	if p != nil {
		_ = s.Disconnect(p.ID)
	}
}

// Subscribe implements sensor.Client.
func (s *Sensor) Subscribe(topic string, onData func([]byte), onError func(error)) (sensor.SubscriptionKey, error) {
	serial, _, err := sensor.ParseTopic(topic)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected == nil {
		return "", sensor.ErrNotConnected
	}
	if s.connected.Serial != serial {
		return "", fmt.Errorf("%w: %q is not the connected sensor", sensor.ErrUnknownTopic, topic)
	}

	s.seq++
	key := sensor.SubscriptionKey(fmt.Sprintf("%s#%d", topic, s.seq))
	ctx, cancel := context.WithCancel(context.Background())
	s.subs.Set(key, &subscription{cancel: cancel})

	groutine.Go(ctx, "simulated-stream", func(ctx context.Context) {
		s.stream(ctx, serial, onData, onError)
	})
	return key, nil
}

// Unsubscribe implements sensor.Client.
func (s *Sensor) Unsubscribe(key sensor.SubscriptionKey) error {
	if sub, ok := s.subs.Get(key); ok {
		sub.cancel()
		s.subs.Del(key)
	}
	return nil
}

// ActiveSubscriptions returns how many streams are running.
func (s *Sensor) ActiveSubscriptions() int {
	return s.subs.Len()
}

func (s *Sensor) stopAll() {
	var keys []sensor.SubscriptionKey
	s.subs.Range(func(k sensor.SubscriptionKey, _ *subscription) bool {
		keys = append(keys, k)
		return true
	})
	for _, k := range keys {
		_ = s.Unsubscribe(k)
	}
}

func (s *Sensor) stream(ctx context.Context, serial string, onData func([]byte), onError func(error)) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		payload, err := Reading(serial, s.opts.BPM, s.opts.Variation, tick).Marshal()
		if err != nil {
			if onError != nil {
				onError(&sensor.Error{Status: 500, Message: err.Error()})
			}
			continue
		}
		if onData != nil {
			onData(payload)
		}
	}
}

// Reading builds the notification for the given tick: bpm drifts along a
// sine around base and each beat carries its RR interval in milliseconds.
func Reading(serial string, base, variation float64, tick int) sensor.Notification {
	bpm := base + variation*math.Sin(float64(tick)/10)
	if bpm < 1 {
		bpm = 1
	}
	rr := math.Round(60000 / bpm)
	return sensor.NewHeartRateNotification(serial, math.Round(bpm*10)/10, []float64{rr})
}

type advertisement struct {
	p Peripheral
}

func (a advertisement) LocalName() string  { return a.p.Name }
func (a advertisement) Addr() string       { return a.p.ID }
func (a advertisement) RSSI() int          { return a.p.RSSI }
func (a advertisement) Connectable() bool  { return true }
func (a advertisement) Services() []string { return []string{"180d"} }
