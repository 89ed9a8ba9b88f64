package testutils

import "github.com/srg/hrmon/internal/device"

// MockAdvertisement is a plain device.Advertisement for tests.
type MockAdvertisement struct {
	Name          string
	Address       string
	Rssi          int
	IsConnectable bool
	ServiceUUIDs  []string
}

func (a *MockAdvertisement) LocalName() string  { return a.Name }
func (a *MockAdvertisement) Addr() string       { return a.Address }
func (a *MockAdvertisement) RSSI() int          { return a.Rssi }
func (a *MockAdvertisement) Connectable() bool  { return a.IsConnectable }
func (a *MockAdvertisement) Services() []string { return a.ServiceUUIDs }

// AdvertisementBuilder builds mocked BLE advertisements for testing.
type AdvertisementBuilder struct {
	adv MockAdvertisement
}

// NewAdvertisementBuilder creates a new AdvertisementBuilder; advertisements
// are connectable unless told otherwise.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: MockAdvertisement{IsConnectable: true}}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

// WithServices adds service UUIDs to the advertisement.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceUUIDs = append(b.adv.ServiceUUIDs, uuids...)
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnectable = c
	return b
}

// Build returns a copy of the configured advertisement.
func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	adv.ServiceUUIDs = append([]string(nil), b.adv.ServiceUUIDs...)
	return &adv
}
