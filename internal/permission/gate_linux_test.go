//go:build linux

package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/srg/hrmon/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func fakeCapget(effective uint32, err error) func(*unix.CapUserHeader, *unix.CapUserData) error {
	return func(_ *unix.CapUserHeader, data *unix.CapUserData) error {
		if err != nil {
			return err
		}
		data.Effective = effective
		return nil
	}
}

func TestCapabilityGate(t *testing.T) {
	logger := testutils.NewTestHelper(t).Logger
	both := uint32(1)<<unix.CAP_NET_ADMIN | uint32(1)<<unix.CAP_NET_RAW

	tests := []struct {
		name      string
		euid      int
		effective uint32
		capErr    error
		want      bool
		wantErr   bool
	}{
		{name: "root", euid: 0, want: true},
		{name: "both capabilities", euid: 1000, effective: both, want: true},
		{name: "raw only", euid: 1000, effective: uint32(1) << unix.CAP_NET_RAW, want: false},
		{name: "none", euid: 1000, want: false},
		{name: "capget fails", euid: 1000, capErr: errors.New("EPERM"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &capabilityGate{
				logger: logger,
				capget: fakeCapget(tt.effective, tt.capErr),
				euid:   func() int { return tt.euid },
			}

			got, err := gate.Check(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapabilityGateRequestExplainsRemedy(t *testing.T) {
	logger, buf := testutils.CapturingLogger()
	gate := NewGate(logger)

	granted, err := gate.Request(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Contains(t, buf.String(), "setcap")
}
