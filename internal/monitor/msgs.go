package monitor

import "github.com/srg/hrmon/internal/device"

// Msg is an input to the reducer: a user intent or a collaborator callback.
type Msg interface {
	isMsg()
}

// User intents.
type (
	// SearchPressed opens the picker and starts scanning.
	SearchPressed struct{}
	// DeviceSelected connects to the picked device.
	DeviceSelected struct{ ID string }
	// DisconnectPressed ends the current session.
	DisconnectPressed struct{}
	// ClosePressed closes the picker and stops scanning.
	ClosePressed struct{}
)

// Collaborator callbacks.
type (
	PeripheralDiscovered struct{ Device device.DiscoveredDevice }
	ScanFailed           struct{ Err error }
	Connected            struct{ Serial, Address string }
	Disconnected         struct{ Serial string }
	ConnectFailed        struct {
		ID  string
		Err error
	}
	DisconnectFailed struct {
		Address string
		Err     error
	}
	// ReadingReceived carries a raw notification of subscription Gen.
	ReadingReceived struct {
		Gen     uint64
		Payload []byte
	}
	SubscriptionFailed struct {
		Gen uint64
		Err error
	}
)

func (SearchPressed) isMsg()        {}
func (DeviceSelected) isMsg()       {}
func (DisconnectPressed) isMsg()    {}
func (ClosePressed) isMsg()         {}
func (PeripheralDiscovered) isMsg() {}
func (ScanFailed) isMsg()           {}
func (Connected) isMsg()            {}
func (Disconnected) isMsg()         {}
func (ConnectFailed) isMsg()        {}
func (DisconnectFailed) isMsg()     {}
func (ReadingReceived) isMsg()      {}
func (SubscriptionFailed) isMsg()   {}
