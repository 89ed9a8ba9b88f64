package testutils

import (
	"context"
	"sync"

	"github.com/srg/hrmon/internal/sensor"
	"github.com/stretchr/testify/mock"
)

// MockSensorClient is a testify mock of sensor.Client. It also records the
// installed handlers and the callbacks of the latest Subscribe so tests can
// play the sensor side.
type MockSensorClient struct {
	mock.Mock

	mu       sync.Mutex
	handlers sensor.Handlers
	onData   func([]byte)
	onError  func(error)
}

func (m *MockSensorClient) SetHandlers(h sensor.Handlers) {
	m.mu.Lock()
	m.handlers = h
	m.mu.Unlock()
	m.Called(h)
}

func (m *MockSensorClient) Connect(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSensorClient) Disconnect(address string) error {
	return m.Called(address).Error(0)
}

func (m *MockSensorClient) Subscribe(topic string, onData func([]byte), onError func(error)) (sensor.SubscriptionKey, error) {
	args := m.Called(topic, onData, onError)
	if args.Error(1) == nil {
		m.mu.Lock()
		m.onData, m.onError = onData, onError
		m.mu.Unlock()
	}
	key, _ := args.Get(0).(sensor.SubscriptionKey)
	return key, args.Error(1)
}

func (m *MockSensorClient) Unsubscribe(key sensor.SubscriptionKey) error {
	return m.Called(key).Error(0)
}

func (m *MockSensorClient) Close() error {
	return m.Called().Error(0)
}

// Handlers returns what SetHandlers installed.
func (m *MockSensorClient) Handlers() sensor.Handlers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers
}

// Notify invokes the data callback of the latest subscription.
func (m *MockSensorClient) Notify(payload []byte) {
	m.mu.Lock()
	fn := m.onData
	m.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
}

// Fail invokes the error callback of the latest subscription.
func (m *MockSensorClient) Fail(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
