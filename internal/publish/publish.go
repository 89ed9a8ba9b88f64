// Package publish forwards accepted heart-rate readings to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/groutine"
	"github.com/srg/hrmon/internal/monitor"
)

// DefaultTopic is used when Options.Topic is empty. %s is the sensor serial.
const DefaultTopic = "hrmon/%s/hr"

const (
	defaultTimeout  = 5 * time.Second
	disconnectQuiet = 250 // ms
)

// MQTTClient is the part of the paho client the publisher uses.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Options configures the publisher.
type Options struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Username string
	Password string
	// Timeout bounds connect and each publish acknowledgement.
	Timeout time.Duration
}

// Payload is the JSON document published per reading.
type Payload struct {
	Serial    string    `json:"serial"`
	Address   string    `json:"address"`
	BPM       float64   `json:"bpm"`
	RRData    []float64 `json:"rrData"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher implements monitor.ReadingSink.
type Publisher struct {
	client MQTTClient
	opts   Options
	logger *logrus.Logger
	now    func() time.Time
}

var _ monitor.ReadingSink = (*Publisher)(nil)

// New creates a publisher backed by a paho client. Call Connect before use.
func New(opts Options, logger *logrus.Logger) (*Publisher, error) {
	if strings.TrimSpace(opts.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker is empty")
	}
	if opts.ClientID == "" {
		opts.ClientID = "hrmon-" + uuid.NewString()
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectTimeout(timeoutOrDefault(opts.Timeout))
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	return NewWithClient(mqtt.NewClient(clientOpts), opts, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client MQTTClient, opts Options, logger *logrus.Logger) *Publisher {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	opts.Timeout = timeoutOrDefault(opts.Timeout)
	return &Publisher{client: client, opts: opts, logger: logger, now: time.Now}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

// Connect connects to the broker.
func (p *Publisher) Connect(ctx context.Context) error {
	p.logger.WithFields(logrus.Fields{
		"broker":    p.opts.Broker,
		"client_id": p.opts.ClientID,
	}).Info("Connecting to MQTT broker...")

	if err := wait(ctx, p.client.Connect(), p.opts.Timeout); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %q: %w", p.opts.Broker, err)
	}
	return nil
}

// Topic returns the topic readings of serial are published to.
func (p *Publisher) Topic(serial string) string {
	return strings.ReplaceAll(p.opts.Topic, "%s", serial)
}

// Publish sends one reading. The acknowledgement is awaited in the
// background so the caller never blocks on the broker.
func (p *Publisher) Publish(ctx context.Context, dev monitor.ConnectedDevice, reading monitor.HeartRateReading) error {
	rr := reading.RawSamples
	if rr == nil {
		rr = []float64{}
	}
	data, err := json.Marshal(Payload{
		Serial:    dev.Serial,
		Address:   dev.Address,
		BPM:       reading.AverageBPM,
		RRData:    rr,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	topic := p.Topic(dev.Serial)
	token := p.client.Publish(topic, p.opts.QoS, false, data)

	groutine.Go(ctx, "mqtt-publish-ack", func(ctx context.Context) {
		if err := wait(ctx, token, p.opts.Timeout); err != nil {
			p.logger.WithError(err).WithField("topic", topic).Warn("MQTT publish failed")
		}
	})
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiet)
	p.logger.Debug("MQTT publisher closed")
}

// wait blocks until the token completes, the timeout passes or ctx is done
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
