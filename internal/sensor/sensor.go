// Package sensor describes the vendor sensor session API the monitor talks to:
// connect by identifier, learn the serial on connect, subscribe to a topic and
// receive JSON notifications.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resource paths understood by the sensor clients.
const (
	HeartRateResource = "Meas/HR"
)

var (
	// ErrUnknownTopic is returned when subscribing to a topic the client does not serve.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrNotConnected is returned when an operation needs a connected sensor.
	ErrNotConnected = errors.New("sensor not connected")
	// ErrClosed is returned by a client after Close.
	ErrClosed = errors.New("sensor client closed")
)

// Error is a sensor-side failure. Message is the human readable part and is
// what ends up on screen.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("sensor error %d: %s", e.Status, e.Message)
}

// ErrorMessage extracts the display text of err: the Message of a wrapped
// *Error when there is one, err.Error() otherwise.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var serr *Error
	if errors.As(err, &serr) && serr.Message != "" {
		return serr.Message
	}
	return err.Error()
}

// HeartRateTopic is the subscription topic for the heart-rate stream of serial.
func HeartRateTopic(serial string) string {
	return serial + "/" + HeartRateResource
}

// ParseTopic splits "<serial>/Meas/HR" into its parts. Only the heart-rate
// resource is recognised.
func ParseTopic(topic string) (serial, resource string, err error) {
	serial, resource, ok := strings.Cut(topic, "/")
	if !ok || serial == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if resource != HeartRateResource {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	return serial, resource, nil
}

// SubscriptionKey identifies an active subscription.
type SubscriptionKey string

// Handlers receives session lifecycle callbacks. Any of them may be invoked
// from an arbitrary goroutine.
type Handlers struct {
	OnConnect       func(serial, address string)
	OnDisconnect    func(serial string)
	OnConnectFailed func(id string, err error)
}

// Client is a sensor session API.
type Client interface {
	// SetHandlers installs lifecycle callbacks. It is called once per process.
	SetHandlers(h Handlers)
	// Connect starts connecting to the peripheral with the given identifier.
	// It returns once the attempt is underway; the outcome arrives through
	// OnConnect or OnConnectFailed.
	Connect(ctx context.Context, id string) error
	// Disconnect tears down the session with the peripheral at address.
	// OnDisconnect follows.
	Disconnect(address string) error
	// Subscribe opens a data stream. onData receives notification JSON.
	Subscribe(topic string, onData func([]byte), onError func(error)) (SubscriptionKey, error)
	// Unsubscribe closes the stream. Unknown keys are ignored.
	Unsubscribe(key SubscriptionKey) error
	// Close abandons a pending connect and ends the current session. A
	// connect that completes afterwards is torn down without OnConnect.
	Close() error
}
