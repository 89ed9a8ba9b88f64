// Package gatt implements sensor.Client on top of a go-ble central, using the
// standard Heart Rate service for the heart-rate topic.
package gatt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	goble "github.com/srg/hrmon/internal/device/go-ble"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/sensor"
)

var (
	heartRateMeasurementUUID = ble.UUID16(0x2A37)
	serialNumberUUID         = ble.UUID16(0x2A25)
)

// Options tunes the GATT client.
type Options struct {
	// ConnectTimeout bounds dial and discovery. Zero means no timeout.
	ConnectTimeout time.Duration
}

// gattClient is the part of ble.Client used by this package.
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
	Disconnected() <-chan struct{}
}

type dialFunc func(ctx context.Context, address string) (gattClient, error)

type subscription struct {
	onData  func([]byte)
	onError func(error)
}

// session is one live connection
type session struct {
	client  gattClient
	serial  string
	address string
	hr      *ble.Characteristic

	closed    chan struct{}
	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Client is a sensor.Client backed by a BLE GATT connection. It serves one
// connection at a time.
type Client struct {
	logger *logrus.Logger
	opts   Options
	dial   dialFunc

	handlersMu sync.RWMutex
	handlers   sensor.Handlers

	mu         sync.Mutex
	connecting bool
	cancelDial context.CancelFunc
	closed     bool
	session    *session

	subs     *hashmap.Map[sensor.SubscriptionKey, *subscription]
	notifyOn bool // remote notifications enabled, guarded by mu
	keySeq   atomic.Uint64
}

// NewClient creates a Client dialing through dev.
func NewClient(dev ble.Device, logger *logrus.Logger, opts Options) *Client {
	c := newClient(nil, logger, opts)
	c.dial = func(ctx context.Context, address string) (gattClient, error) {
		if dev == nil {
			return nil, fmt.Errorf("no BLE device")
		}
		cln, err := dev.Dial(ctx, ble.NewAddr(address))
		if err != nil {
			return nil, goble.NormalizeError(err)
		}
		return cln, nil
	}
	return c
}

func newClient(dial dialFunc, logger *logrus.Logger, opts Options) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		logger: logger,
		opts:   opts,
		dial:   dial,
		subs:   hashmap.New[sensor.SubscriptionKey, *subscription](),
	}
}

// SetHandlers implements sensor.Client.
func (c *Client) SetHandlers(h sensor.Handlers) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = h
}

func (c *Client) currentHandlers() sensor.Handlers {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.handlers
}

// Connect implements sensor.Client. The dial runs in the background.
func (c *Client) Connect(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("device address is empty")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return sensor.ErrClosed
	}
	if c.session != nil || c.connecting {
		c.mu.Unlock()
		c.logger.WithField("address", id).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}
	c.connecting = true
	ctx, c.cancelDial = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"address": id,
		"timeout": c.opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	groutine.Go(ctx, "gatt-connect", func(ctx context.Context) {
		s, err := c.establish(ctx, id)

		c.mu.Lock()
		c.cancelDial()
		c.connecting = false
		c.cancelDial = nil
		closed := c.closed
		if err == nil && !closed {
			c.session = s
		}
		c.mu.Unlock()

		if closed {
			if err == nil {
				c.logger.WithField("address", id).Info("Dropping BLE link established after close")
				if cancelErr := s.client.CancelConnection(); cancelErr != nil {
					c.logger.WithError(cancelErr).Warn("Failed to cancel connection after close")
				}
			}
			return
		}

		h := c.currentHandlers()
		if err != nil {
			c.logger.WithError(err).WithField("address", id).Error("Failed to connect to BLE device")
			if h.OnConnectFailed != nil {
				h.OnConnectFailed(id, err)
			}
			return
		}

		c.logger.WithFields(logrus.Fields{
			"address": s.address,
			"serial":  s.serial,
		}).Info("BLE device connected successfully")

		groutine.Go(context.Background(), "gatt-connection-monitor", func(context.Context) {
			c.watch(s)
		})
		if h.OnConnect != nil {
			h.OnConnect(s.serial, s.address)
		}
	})

	return nil
}

// establish dials and discovers the profile
func (c *Client) establish(ctx context.Context, address string) (*session, error) {
	if c.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
		defer cancel()
	}

	c.logger.WithField("address", address).Debug("Dialing BLE device...")
	cln, err := c.dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, err)
	}

	profile, err := cln.DiscoverProfile(true)
	if err != nil {
		if cancelErr := cln.CancelConnection(); cancelErr != nil {
			c.logger.WithError(cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	s := &session{
		client:  cln,
		address: address,
		hr:      findCharacteristic(profile, heartRateMeasurementUUID),
		closed:  make(chan struct{}),
	}
	if s.hr == nil {
		c.logger.WithField("address", address).Warn("Heart rate measurement characteristic not found")
	}

	s.serial = fallbackSerial(address)
	if sn := findCharacteristic(profile, serialNumberUUID); sn != nil {
		raw, err := cln.ReadCharacteristic(sn)
		if err != nil {
			c.logger.WithError(err).Debug("Failed to read serial number, using address")
		} else if v := strings.TrimRight(strings.TrimSpace(string(raw)), "\x00"); v != "" {
			s.serial = v
		}
	}

	return s, nil
}

// watch waits for the link to drop or for Disconnect, then reports once
func (c *Client) watch(s *session) {
	select {
	case <-s.client.Disconnected():
		c.logger.WithField("serial", s.serial).Warn("BLE link lost")
	case <-s.closed:
	}

	c.mu.Lock()
	if c.session == s {
		c.session = nil
		c.notifyOn = false
	}
	c.mu.Unlock()

	// subscriptions die with the link
	var keys []sensor.SubscriptionKey
	c.subs.Range(func(k sensor.SubscriptionKey, _ *subscription) bool {
		keys = append(keys, k)
		return true
	})
	for _, k := range keys {
		c.subs.Del(k)
	}

	c.logger.WithField("serial", s.serial).Info("BLE device disconnected")
	if h := c.currentHandlers(); h.OnDisconnect != nil {
		h.OnDisconnect(s.serial)
	}
}

// Disconnect implements sensor.Client.
func (c *Client) Disconnect(address string) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil || s.address != address {
		c.logger.WithField("address", address).Debug("Disconnect called but not connected")
		return device.ErrNotConnected
	}

	c.logger.WithField("address", address).Info("Disconnecting BLE device...")
	err := s.client.CancelConnection()
	s.close()
	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", goble.NormalizeError(err))
	}
	return nil
}

// Close implements sensor.Client. A dial in progress is cancelled and the
// current session, if any, is disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	cancel := c.cancelDial
	s := c.session
	c.mu.Unlock()

	if cancel != nil {
		c.logger.Debug("Cancelling pending BLE connect")
		cancel()
	}
	if s == nil {
		return nil
	}
	return c.Disconnect(s.address)
}

// Subscribe implements sensor.Client. Only the heart-rate topic of the
// connected sensor is served.
func (c *Client) Subscribe(topic string, onData func([]byte), onError func(error)) (sensor.SubscriptionKey, error) {
	serial, _, err := sensor.ParseTopic(topic)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return "", sensor.ErrNotConnected
	}
	if s.serial != serial {
		return "", fmt.Errorf("%w: %q is not the connected sensor", sensor.ErrUnknownTopic, topic)
	}
	if s.hr == nil {
		return "", &sensor.Error{Status: 404, Message: "heart rate measurement not supported by device"}
	}

	if !c.notifyOn {
		if err := s.client.Subscribe(s.hr, false, func(data []byte) { c.deliver(s, data) }); err != nil {
			return "", &sensor.Error{Status: 500, Message: fmt.Sprintf("failed to enable notifications: %v", err)}
		}
		c.notifyOn = true
	}

	key := sensor.SubscriptionKey(fmt.Sprintf("%s#%d", topic, c.keySeq.Add(1)))
	c.subs.Set(key, &subscription{onData: onData, onError: onError})

	c.logger.WithField("topic", topic).Info("Subscribed to heart rate")
	return key, nil
}

// Unsubscribe implements sensor.Client. Unknown keys are ignored.
func (c *Client) Unsubscribe(key sensor.SubscriptionKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.subs.Del(key) {
		return nil
	}
	c.logger.WithField("key", key).Debug("Subscription released")

	if c.subs.Len() > 0 || !c.notifyOn || c.session == nil {
		return nil
	}
	c.notifyOn = false
	if err := c.session.client.Unsubscribe(c.session.hr, false); err != nil {
		return fmt.Errorf("failed to disable notifications: %w", goble.NormalizeError(err))
	}
	return nil
}

// deliver fans one measurement out to every subscriber
func (c *Client) deliver(s *session, data []byte) {
	m, err := DecodeMeasurement(data)
	if err != nil {
		serr := &sensor.Error{Status: 400, Message: err.Error()}
		c.subs.Range(func(_ sensor.SubscriptionKey, sub *subscription) bool {
			if sub.onError != nil {
				sub.onError(serr)
			}
			return true
		})
		return
	}

	payload, err := sensor.NewHeartRateNotification(s.serial, float64(m.BPM), m.RR).Marshal()
	if err != nil {
		c.logger.WithError(err).Error("Failed to encode notification")
		return
	}

	c.subs.Range(func(_ sensor.SubscriptionKey, sub *subscription) bool {
		if sub.onData != nil {
			sub.onData(payload)
		}
		return true
	})
}

func findCharacteristic(p *ble.Profile, uuid ble.UUID) *ble.Characteristic {
	if p == nil {
		return nil
	}
	for _, svc := range p.Services {
		for _, ch := range svc.Characteristics {
			if ch.UUID.Equal(uuid) {
				return ch
			}
		}
	}
	return nil
}

// fallbackSerial derives a serial from an address when the device does not
// expose one
func fallbackSerial(address string) string {
	r := strings.NewReplacer(":", "", "-", "")
	return strings.ToUpper(r.Replace(address))
}
