// Package devicefactory picks the radio backend the commands run on: the
// host BLE adapter through go-ble, or the in-process simulator.
package devicefactory

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	goble "github.com/srg/hrmon/internal/device/go-ble"
	"github.com/srg/hrmon/internal/sensor"
	"github.com/srg/hrmon/internal/sensor/gatt"
	"github.com/srg/hrmon/internal/sensor/simulated"
)

// Options selects and tunes a backend.
type Options struct {
	Simulate       bool
	ConnectTimeout time.Duration
}

// Backend is a scanning radio plus the sensor client that connects through it.
type Backend struct {
	Scanner device.ScanningDevice
	Sensor  sensor.Client
}

// BackendFactory creates the backend for opts.
// This is a variable so that it can be overridden in tests.
var BackendFactory = func(opts Options, logger *logrus.Logger) (*Backend, error) {
	if opts.Simulate {
		sim := simulated.NewSensor(simulated.Options{}, logger)
		return &Backend{Scanner: sim, Sensor: sim}, nil
	}

	dev, err := goble.DeviceFactory()
	if err != nil {
		return nil, err
	}
	return &Backend{
		Scanner: goble.NewScanner(dev),
		Sensor:  gatt.NewClient(dev, logger, gatt.Options{ConnectTimeout: opts.ConnectTimeout}),
	}, nil
}
