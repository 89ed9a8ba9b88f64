package devicefactory

import (
	"testing"

	"github.com/srg/hrmon/internal/sensor/simulated"
	"github.com/srg/hrmon/internal/testutils"
	"github.com/stretchr/testify/require"
)

func TestSimulatedBackend(t *testing.T) {
	b, err := BackendFactory(Options{Simulate: true}, testutils.NewTestHelper(t).Logger)

	require.NoError(t, err)
	require.IsType(t, &simulated.Sensor{}, b.Sensor)
	require.Same(t, b.Sensor, b.Scanner)
}
