package simulated_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/sensor"
	"github.com/srg/hrmon/internal/sensor/simulated"
	"github.com/srg/hrmon/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastSensor(t *testing.T) *simulated.Sensor {
	return simulated.NewSensor(simulated.Options{
		AdvertiseInterval: 5 * time.Millisecond,
		ConnectDelay:      time.Millisecond,
		Interval:          5 * time.Millisecond,
	}, testutils.NewTestHelper(t).Logger)
}

func TestScanAdvertisesPeripherals(t *testing.T) {
	s := fastSensor(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var names []string
	err := s.Scan(ctx, false, func(adv device.Advertisement) {
		names = append(names, adv.LocalName())
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"Movesense 174630000192", "Movesense 174630000207", "Polar H10 8C2D1A"}, names)
}

func TestConnectSubscribeDisconnect(t *testing.T) {
	s := fastSensor(t)

	connected := make(chan [2]string, 1)
	disconnected := make(chan string, 1)
	s.SetHandlers(sensor.Handlers{
		OnConnect:    func(serial, address string) { connected <- [2]string{serial, address} },
		OnDisconnect: func(serial string) { disconnected <- serial },
	})

	require.NoError(t, s.Connect(context.Background(), "0C:8C:DC:3F:A1:01"))
	got := <-connected
	assert.Equal(t, [2]string{"174630000192", "0C:8C:DC:3F:A1:01"}, got)

	assert.ErrorIs(t, s.Connect(context.Background(), "0C:8C:DC:3F:A1:02"), device.ErrAlreadyConnected)

	payloads := make(chan []byte, 16)
	key, err := s.Subscribe(sensor.HeartRateTopic("174630000192"), func(b []byte) {
		select {
		case payloads <- b:
		default:
		}
	}, nil)
	require.NoError(t, err)

	var n sensor.Notification
	require.NoError(t, json.Unmarshal(<-payloads, &n))
	assert.Equal(t, "174630000192/Meas/HR", n.URI)
	require.NotNil(t, n.Body)
	assert.Len(t, n.Body.RRData, 1)

	require.NoError(t, s.Disconnect("0C:8C:DC:3F:A1:01"))
	assert.Equal(t, "174630000192", <-disconnected)
	assert.Equal(t, 0, s.ActiveSubscriptions())
	assert.NoError(t, s.Unsubscribe(key))
	assert.ErrorIs(t, s.Disconnect("0C:8C:DC:3F:A1:01"), device.ErrNotConnected)
}

func TestConnectUnknownPeripheral(t *testing.T) {
	s := fastSensor(t)

	failed := make(chan error, 1)
	s.SetHandlers(sensor.Handlers{
		OnConnectFailed: func(_ string, err error) { failed <- err },
	})

	require.NoError(t, s.Connect(context.Background(), "FF:FF:FF:FF:FF:FF"))
	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "no such peripheral")
	case <-time.After(time.Second):
		t.Fatal("no failure callback")
	}
}

func TestConnectRefusedWhilePending(t *testing.T) {
	s := simulated.NewSensor(simulated.Options{ConnectDelay: time.Hour}, testutils.NewTestHelper(t).Logger)
	defer s.Close()

	require.NoError(t, s.Connect(context.Background(), "0C:8C:DC:3F:A1:01"))
	assert.ErrorIs(t, s.Connect(context.Background(), "0C:8C:DC:3F:A1:02"), device.ErrAlreadyConnected)
}

func TestCloseAbandonsPendingConnect(t *testing.T) {
	s := simulated.NewSensor(simulated.Options{ConnectDelay: 20 * time.Millisecond}, testutils.NewTestHelper(t).Logger)

	events := make(chan string, 2)
	s.SetHandlers(sensor.Handlers{
		OnConnect:       func(serial, _ string) { events <- "connect " + serial },
		OnConnectFailed: func(id string, _ error) { events <- "failed " + id },
	})

	require.NoError(t, s.Connect(context.Background(), "0C:8C:DC:3F:A1:01"))
	require.NoError(t, s.Close())

	select {
	case ev := <-events:
		t.Fatalf("unexpected callback after close: %s", ev)
	case <-time.After(60 * time.Millisecond):
	}
	_, err := s.Subscribe(sensor.HeartRateTopic("174630000192"), nil, nil)
	assert.ErrorIs(t, err, sensor.ErrNotConnected)
	assert.ErrorIs(t, s.Connect(context.Background(), "0C:8C:DC:3F:A1:01"), sensor.ErrClosed)
}

func TestCloseDisconnects(t *testing.T) {
	s := fastSensor(t)

	connected := make(chan struct{}, 1)
	disconnected := make(chan string, 1)
	s.SetHandlers(sensor.Handlers{
		OnConnect:    func(string, string) { connected <- struct{}{} },
		OnDisconnect: func(serial string) { disconnected <- serial },
	})
	require.NoError(t, s.Connect(context.Background(), "0C:8C:DC:3F:A1:02"))
	<-connected

	require.NoError(t, s.Close())
	assert.Equal(t, "174630000207", <-disconnected)
	assert.ErrorIs(t, s.Disconnect("0C:8C:DC:3F:A1:02"), device.ErrNotConnected)
}

func TestSubscribeRequiresConnection(t *testing.T) {
	s := fastSensor(t)

	_, err := s.Subscribe("174630000192/Meas/HR", nil, nil)
	assert.ErrorIs(t, err, sensor.ErrNotConnected)

	_, err = s.Subscribe("174630000192/Meas/Temp", nil, nil)
	assert.ErrorIs(t, err, sensor.ErrUnknownTopic)
}

func TestReading(t *testing.T) {
	n := simulated.Reading("S1", 60, 0, 3)

	require.NotNil(t, n.Body)
	assert.Equal(t, "S1/Meas/HR", n.URI)
	assert.Equal(t, "PUT", n.Method)
	assert.Equal(t, 60.0, n.Body.Average)
	assert.Equal(t, []float64{1000}, n.Body.RRData)
}
