//go:build linux

package permission

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// capabilityGate grants access to root or to binaries carrying
// CAP_NET_ADMIN and CAP_NET_RAW, which the HCI socket requires.
type capabilityGate struct {
	logger *logrus.Logger
	capget func(hdr *unix.CapUserHeader, data *unix.CapUserData) error
	euid   func() int
}

// NewGate returns the platform gate.
func NewGate(logger *logrus.Logger) Gate {
	if logger == nil {
		logger = logrus.New()
	}
	return &capabilityGate{
		logger: logger,
		capget: unix.Capget,
		euid:   os.Geteuid,
	}
}

func (g *capabilityGate) Check(_ context.Context) (bool, error) {
	if g.euid() == 0 {
		return true, nil
	}

	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := g.capget(&hdr, &data[0]); err != nil {
		return false, fmt.Errorf("capget: %w", err)
	}

	return hasCap(data, unix.CAP_NET_ADMIN) && hasCap(data, unix.CAP_NET_RAW), nil
}

func (g *capabilityGate) Request(_ context.Context) (bool, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = "hrmon"
	}
	g.logger.WithField("remedy", fmt.Sprintf("sudo setcap 'cap_net_raw,cap_net_admin+eip' %s", exe)).
		Warn("Missing CAP_NET_ADMIN/CAP_NET_RAW; run as root or grant capabilities")
	return false, nil
}

func hasCap(data [2]unix.CapUserData, capability int) bool {
	idx := capability / 32
	bit := uint32(1) << uint(capability%32)
	return data[idx].Effective&bit != 0
}
