package monitor

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/sensor"
)

type subscriptionHandle struct {
	gen   uint64
	topic string
	key   sensor.SubscriptionKey
}

// subscriptionManager holds at most one subscription handle. It is used only
// from the engine goroutine.
type subscriptionManager struct {
	client   sensor.Client
	dispatch func(Msg)
	logger   *logrus.Logger
	handle   *subscriptionHandle
}

func newSubscriptionManager(client sensor.Client, dispatch func(Msg), logger *logrus.Logger) *subscriptionManager {
	return &subscriptionManager{client: client, dispatch: dispatch, logger: logger}
}

// Open subscribes to topic under gen, releasing any handle still held.
// Callbacks are tagged with gen so the reducer can drop them once stale.
func (m *subscriptionManager) Open(gen uint64, topic string) error {
	m.ReleaseAll()

	key, err := m.client.Subscribe(topic,
		func(payload []byte) {
			m.dispatch(ReadingReceived{Gen: gen, Payload: payload})
		},
		func(err error) {
			m.dispatch(SubscriptionFailed{Gen: gen, Err: err})
		},
	)
	if err != nil {
		m.logger.WithError(err).WithField("topic", topic).Error("Failed to subscribe")
		return err
	}

	m.handle = &subscriptionHandle{gen: gen, topic: topic, key: key}
	m.logger.WithFields(logrus.Fields{
		"topic": topic,
		"gen":   gen,
	}).Info("Subscription opened")
	return nil
}

// Release closes the handle of gen. No-op when it is not the held one.
func (m *subscriptionManager) Release(gen uint64) {
	if m.handle == nil || m.handle.gen != gen {
		return
	}
	m.ReleaseAll()
}

// ReleaseAll closes whatever handle is held. Safe to call repeatedly.
func (m *subscriptionManager) ReleaseAll() {
	h := m.handle
	if h == nil {
		return
	}
	m.handle = nil

	if err := m.client.Unsubscribe(h.key); err != nil {
		m.logger.WithError(err).WithField("topic", h.topic).Warn("Failed to unsubscribe")
		return
	}
	m.logger.WithFields(logrus.Fields{
		"topic": h.topic,
		"gen":   h.gen,
	}).Info("Subscription released")
}

// Held reports the generation of the held handle.
func (m *subscriptionManager) Held() (uint64, bool) {
	if m.handle == nil {
		return 0, false
	}
	return m.handle.gen, true
}
