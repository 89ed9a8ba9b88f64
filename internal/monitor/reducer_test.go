package monitor

import (
	"errors"
	"testing"

	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	suitelib "github.com/stretchr/testify/suite"
)

type ReducerTestSuite struct {
	suitelib.Suite

	reducer *Reducer
	state   *State
}

func (suite *ReducerTestSuite) SetupTest() {
	suite.reducer = NewReducer(Options{})
	suite.state = NewState()
}

func (suite *ReducerTestSuite) reduce(msgs ...Msg) []Effect {
	var effects []Effect
	for _, m := range msgs {
		effects = append(effects, suite.reducer.Reduce(suite.state, m)...)
	}
	return effects
}

func discovered(id, name string) PeripheralDiscovered {
	return PeripheralDiscovered{Device: device.DiscoveredDevice{ID: id, Name: name}}
}

func (suite *ReducerTestSuite) TestSearchOpensPickerAndStartsScan() {
	effects := suite.reduce(SearchPressed{})

	suite.Equal([]Effect{StartScan{}}, effects)
	suite.True(suite.state.UI.IsPickerOpen)
	suite.True(suite.state.UI.IsScanning)

	// already scanning: no second start
	suite.Empty(suite.reduce(SearchPressed{}))
}

func (suite *ReducerTestSuite) TestDiscoveryFiltersAndDeduplicates() {
	suite.reduce(
		discovered("AA:BB:CC:DD:EE:FF", "Movesense 12345"),
		discovered("11:22:33:44:55:66", "OtherSensor"),
		discovered("AA:BB:CC:DD:EE:FF", "Movesense 12345"),
		discovered("AA:BB:CC:DD:EE:FF", "Movesense renamed"),
		discovered("", "Movesense no id"),
	)

	snap := suite.state.Snapshot()
	suite.Equal([]device.DiscoveredDevice{{ID: "AA:BB:CC:DD:EE:FF", Name: "Movesense 12345"}}, snap.Devices)
}

func (suite *ReducerTestSuite) TestStaleDevicesKeptAcrossSearches() {
	suite.reduce(SearchPressed{}, discovered("A", "Movesense 1"), ClosePressed{})
	effects := suite.reduce(SearchPressed{})

	suite.Equal([]Effect{StartScan{}}, effects)
	suite.Len(suite.state.Snapshot().Devices, 1)
}

func (suite *ReducerTestSuite) TestClearOnStart() {
	suite.reducer = NewReducer(Options{ClearOnStart: true})

	suite.reduce(SearchPressed{}, discovered("A", "Movesense 1"), ClosePressed{})
	effects := suite.reduce(SearchPressed{})

	suite.Equal([]Effect{ClearDevices{}, StartScan{}}, effects)
	suite.Empty(suite.state.Snapshot().Devices)
}

func (suite *ReducerTestSuite) TestCustomNameFilter() {
	suite.reducer = NewReducer(Options{NameFilter: "Polar"})

	suite.reduce(discovered("A", "Movesense 1"), discovered("B", "Polar H10"))

	suite.Equal([]device.DiscoveredDevice{{ID: "B", Name: "Polar H10"}}, suite.state.Snapshot().Devices)
}

func (suite *ReducerTestSuite) TestCloseStopsScan() {
	suite.reduce(SearchPressed{})

	suite.Equal([]Effect{StopScan{}}, suite.reduce(ClosePressed{}))
	suite.False(suite.state.UI.IsPickerOpen)
	suite.False(suite.state.UI.IsScanning)

	// stop when idle produces nothing
	suite.Empty(suite.reduce(ClosePressed{}))
}

func (suite *ReducerTestSuite) TestDeviceSelected() {
	suite.reduce(SearchPressed{})

	effects := suite.reduce(DeviceSelected{ID: "AA:BB:CC:DD:EE:FF"})

	suite.Equal([]Effect{Connect{ID: "AA:BB:CC:DD:EE:FF"}, StopScan{}}, effects)
	suite.True(suite.state.UI.IsLoading)
	suite.False(suite.state.UI.IsPickerOpen)
	suite.False(suite.state.UI.IsScanning)

	// pending connect: second pick is still requested, the client decides
	suite.Equal([]Effect{Connect{ID: "11:22:33:44:55:66"}}, suite.reduce(DeviceSelected{ID: "11:22:33:44:55:66"}))
	suite.True(suite.state.UI.IsLoading)
}

func (suite *ReducerTestSuite) TestReselectAfterUnansweredConnect() {
	suite.reduce(SearchPressed{}, DeviceSelected{ID: "AA"}, ClosePressed{}, SearchPressed{})
	suite.Require().True(suite.state.UI.IsPickerOpen)

	effects := suite.reduce(DeviceSelected{ID: "BB"})

	suite.Equal([]Effect{Connect{ID: "BB"}, StopScan{}}, effects)
	suite.False(suite.state.UI.IsPickerOpen)

	// the client refuses while the first dial is out; spinner clears
	suite.reduce(ConnectFailed{ID: "BB", Err: device.ErrAlreadyConnected})
	suite.False(suite.state.UI.IsLoading)
	suite.Equal("already_connected", suite.state.UI.LastError)
}

func (suite *ReducerTestSuite) TestDeviceSelectedIgnoredWhileConnected() {
	suite.reduce(Connected{Serial: "203430000001", Address: "AA:BB:CC:DD:EE:FF"})
	suite.state.UI.IsLoading = false

	suite.Empty(suite.reduce(DeviceSelected{ID: "11:22:33:44:55:66"}))
}

func (suite *ReducerTestSuite) TestConnectedOpensSubscription() {
	suite.reduce(SearchPressed{}, DeviceSelected{ID: "AA:BB:CC:DD:EE:FF"}, SearchPressed{})
	suite.Require().True(suite.state.UI.IsScanning)

	effects := suite.reduce(Connected{Serial: "203430000001", Address: "AA:BB:CC:DD:EE:FF"})

	suite.Equal([]Effect{StopScan{}, OpenSubscription{Gen: 1, Topic: "203430000001/Meas/HR"}}, effects)
	suite.Equal(&ConnectedDevice{Serial: "203430000001", Address: "AA:BB:CC:DD:EE:FF"}, suite.state.Connected)
	suite.Equal(SubscriptionState{Active: true, Gen: 1, Topic: "203430000001/Meas/HR"}, suite.state.Subscription)
	suite.False(suite.state.UI.IsScanning)
}

func (suite *ReducerTestSuite) TestDuplicateConnectedIgnored() {
	connected := Connected{Serial: "203430000001", Address: "AA:BB:CC:DD:EE:FF"}
	suite.reduce(connected)

	suite.Empty(suite.reduce(connected))
	suite.Equal(uint64(1), suite.state.Subscription.Gen)
}

func (suite *ReducerTestSuite) TestConnectedForOtherDeviceClosesOldSubscriptionFirst() {
	suite.reduce(Connected{Serial: "S1", Address: "A1"})

	effects := suite.reduce(Connected{Serial: "S2", Address: "A2"})

	suite.Equal([]Effect{
		CloseSubscription{Gen: 1},
		OpenSubscription{Gen: 2, Topic: "S2/Meas/HR"},
	}, effects)
	suite.Equal("S2", suite.state.Connected.Serial)
}

func (suite *ReducerTestSuite) TestReadingReceived() {
	suite.reduce(DeviceSelected{ID: "A"}, Connected{Serial: "S1", Address: "A"})
	suite.Require().True(suite.state.UI.IsLoading)

	effects := suite.reduce(ReadingReceived{Gen: 1, Payload: []byte(`{"Body":{"rrData":[800,810],"average":72.4}}`)})

	reading := HeartRateReading{RawSamples: []float64{800, 810}, AverageBPM: 72.4, HasBody: true}
	suite.Equal([]Effect{PublishReading{Device: ConnectedDevice{Serial: "S1", Address: "A"}, Reading: reading}}, effects)
	suite.Equal("72 bpm", suite.state.Reading.DisplayBPM())
	suite.False(suite.state.UI.IsLoading)
}

func (suite *ReducerTestSuite) TestReadingWithoutBody() {
	suite.reduce(Connected{Serial: "S1", Address: "A"})

	effects := suite.reduce(ReadingReceived{Gen: 1, Payload: []byte(`{"Uri":"S1/Meas/HR","Method":"PUT"}`)})

	suite.Empty(effects)
	suite.Equal("-- bpm", suite.state.Reading.DisplayBPM())
	suite.False(suite.state.UI.IsLoading)
}

func (suite *ReducerTestSuite) TestMalformedPayloadReported() {
	suite.reduce(DeviceSelected{ID: "A"}, Connected{Serial: "S1", Address: "A"})

	suite.Empty(suite.reduce(ReadingReceived{Gen: 1, Payload: []byte(`not json`)}))
	suite.Contains(suite.state.UI.LastError, "invalid notification payload")
	suite.False(suite.state.UI.IsLoading)
	suite.Nil(suite.state.Reading)
}

func (suite *ReducerTestSuite) TestSubscriptionFailed() {
	suite.reduce(DeviceSelected{ID: "A"}, Connected{Serial: "S1", Address: "A"})

	suite.reduce(SubscriptionFailed{Gen: 1, Err: &sensor.Error{Status: 404, Message: "Not Found"}})
	suite.Equal("Not Found", suite.state.UI.LastError)
	suite.False(suite.state.UI.IsLoading)

	suite.reduce(SubscriptionFailed{Gen: 1, Err: errors.New("raw failure")})
	suite.Equal("raw failure", suite.state.UI.LastError)
}

func (suite *ReducerTestSuite) TestDisconnectedReleasesSubscription() {
	suite.reduce(Connected{Serial: "S1", Address: "A"}, ReadingReceived{Gen: 1, Payload: []byte(`{"Body":{"rrData":[],"average":60}}`)})

	effects := suite.reduce(Disconnected{Serial: "S1"})

	suite.Equal([]Effect{CloseSubscription{Gen: 1}}, effects)
	suite.Nil(suite.state.Connected)
	suite.Nil(suite.state.Reading)
	suite.False(suite.state.Subscription.Active)

	// late notification after teardown changes nothing
	before := suite.state.Snapshot()
	suite.Empty(suite.reduce(
		ReadingReceived{Gen: 1, Payload: []byte(`{"Body":{"rrData":[],"average":99}}`)},
		SubscriptionFailed{Gen: 1, Err: errors.New("late")},
	))
	suite.Equal(before, suite.state.Snapshot())

	// second disconnect is a no-op
	suite.Empty(suite.reduce(Disconnected{Serial: "S1"}))
}

func (suite *ReducerTestSuite) TestDisconnectedForEarlierSensorIgnored() {
	suite.reduce(Connected{Serial: "S1", Address: "A1"}, Connected{Serial: "S2", Address: "A2"})

	suite.Empty(suite.reduce(Disconnected{Serial: "S1"}))
	suite.Equal(&ConnectedDevice{Serial: "S2", Address: "A2"}, suite.state.Connected)
	suite.Equal(SubscriptionState{Active: true, Gen: 2, Topic: "S2/Meas/HR"}, suite.state.Subscription)

	suite.Equal([]Effect{CloseSubscription{Gen: 2}}, suite.reduce(Disconnected{Serial: "S2"}))
	suite.Nil(suite.state.Connected)
}

func (suite *ReducerTestSuite) TestStaleGenerationDropped() {
	suite.reduce(Connected{Serial: "S1", Address: "A1"}, Connected{Serial: "S2", Address: "A2"})

	suite.Empty(suite.reduce(ReadingReceived{Gen: 1, Payload: []byte(`{"Body":{"rrData":[],"average":99}}`)}))
	suite.Nil(suite.state.Reading)
}

func (suite *ReducerTestSuite) TestDisconnectPressed() {
	suite.Empty(suite.reduce(DisconnectPressed{}))

	suite.reduce(Connected{Serial: "S1", Address: "AA:BB"})
	suite.Equal([]Effect{Disconnect{Address: "AA:BB"}}, suite.reduce(DisconnectPressed{}))
}

func (suite *ReducerTestSuite) TestCollaboratorFailures() {
	suite.reduce(SearchPressed{}, ScanFailed{Err: device.ErrBluetoothOff})
	suite.False(suite.state.UI.IsScanning)
	suite.Equal("Scan failed: bluetooth_off", suite.state.UI.LastError)

	suite.reduce(DeviceSelected{ID: "A"}, ConnectFailed{ID: "A", Err: errors.New("timeout")})
	suite.False(suite.state.UI.IsLoading)
	suite.Equal("timeout", suite.state.UI.LastError)

	suite.reduce(DisconnectFailed{Address: "A", Err: device.ErrNotConnected})
	suite.Equal("not_connected", suite.state.UI.LastError)
}

// TestAtMostOneSubscription checks across mixed sequences that every open is
// preceded by a close of the previous generation.
func (suite *ReducerTestSuite) TestAtMostOneSubscription() {
	msgs := []Msg{
		Connected{Serial: "S1", Address: "A1"},
		Connected{Serial: "S1", Address: "A1"},
		Connected{Serial: "S2", Address: "A2"},
		Disconnected{Serial: "S2"},
		Disconnected{Serial: "S2"},
		Connected{Serial: "S3", Address: "A3"},
		Connected{Serial: "S1", Address: "A1"},
	}

	open := map[uint64]bool{}
	for _, m := range msgs {
		for _, eff := range suite.reducer.Reduce(suite.state, m) {
			switch e := eff.(type) {
			case OpenSubscription:
				open[e.Gen] = true
			case CloseSubscription:
				suite.True(open[e.Gen], "closing a generation that is not open")
				delete(open, e.Gen)
			}
			suite.LessOrEqual(len(open), 1)
		}
	}
}

func TestReplayReproducesState(t *testing.T) {
	log := []Msg{
		SearchPressed{},
		discovered("AA", "Movesense 1"),
		discovered("BB", "OtherSensor"),
		discovered("CC", "Movesense 2"),
		DeviceSelected{ID: "AA"},
		Connected{Serial: "S1", Address: "AA"},
		ReadingReceived{Gen: 1, Payload: []byte(`{"Body":{"rrData":[800],"average":75}}`)},
		SubscriptionFailed{Gen: 1, Err: errors.New("glitch")},
		Disconnected{Serial: "S1"},
		ReadingReceived{Gen: 1, Payload: []byte(`{"Body":{"rrData":[800],"average":90}}`)},
	}

	run := func() (Snapshot, []Effect) {
		r := NewReducer(Options{})
		s := NewState()
		var effects []Effect
		for _, m := range log {
			effects = append(effects, r.Reduce(s, m)...)
		}
		return s.Snapshot(), effects
	}

	first, firstEffects := run()
	second, secondEffects := run()

	require.Equal(t, first, second)
	assert.Equal(t, firstEffects, secondEffects)
	assert.Len(t, first.Devices, 2)
	assert.Equal(t, "glitch", first.UI.LastError)
}

// TestReducerTestSuite runs the test suite using testify/suite
func TestReducerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ReducerTestSuite))
}
