package monitor

// Effect is a side effect requested by the reducer. The engine executes
// effects in order after each message.
type Effect interface {
	isEffect()
}

type (
	StartScan    struct{}
	StopScan     struct{}
	ClearDevices struct{}
	Connect      struct{ ID string }
	Disconnect   struct{ Address string }
	// OpenSubscription subscribes to Topic under generation Gen.
	OpenSubscription struct {
		Gen   uint64
		Topic string
	}
	// CloseSubscription releases the handle of generation Gen, if still held.
	CloseSubscription struct{ Gen uint64 }
	PublishReading    struct {
		Device  ConnectedDevice
		Reading HeartRateReading
	}
)

func (StartScan) isEffect()         {}
func (StopScan) isEffect()          {}
func (ClearDevices) isEffect()      {}
func (Connect) isEffect()           {}
func (Disconnect) isEffect()        {}
func (OpenSubscription) isEffect()  {}
func (CloseSubscription) isEffect() {}
func (PublishReading) isEffect()    {}
