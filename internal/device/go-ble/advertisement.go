package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/hrmon/internal/device"
)

// advertisement adapts ble.Advertisement to device.Advertisement
type advertisement struct {
	ble.Advertisement
}

// NewAdvertisement wraps a go-ble advertisement.
func NewAdvertisement(adv ble.Advertisement) device.Advertisement {
	return advertisement{adv}
}

// Addr is the peer address as go-ble prints it, or "" when unknown.
func (a advertisement) Addr() string {
	if addr := a.Advertisement.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Services lists advertised service UUIDs in go-ble's string form.
func (a advertisement) Services() []string {
	uuids := a.Advertisement.Services()
	out := make([]string, 0, len(uuids))
	for _, u := range uuids {
		out = append(out, u.String())
	}
	return out
}
