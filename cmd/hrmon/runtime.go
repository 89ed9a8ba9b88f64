package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/devicefactory"
	"github.com/srg/hrmon/internal/monitor"
	"github.com/srg/hrmon/internal/permission"
	"github.com/srg/hrmon/internal/publish"
	"github.com/srg/hrmon/scanner"
)

// session bundles the engine with what has to be torn down after it
type session struct {
	engine    *monitor.Engine
	backend   *devicefactory.Backend
	publisher *publish.Publisher
	logger    *logrus.Logger
}

// newSession creates the backend, the optional MQTT publisher and the engine.
// extra sinks receive readings before the publisher.
func newSession(ctx context.Context, s *settings, extra ...monitor.ReadingSink) (*session, error) {
	cfg := s.cfg
	backend, err := devicefactory.BackendFactory(devicefactory.Options{
		Simulate:       cfg.Sensor.Simulate,
		ConnectTimeout: cfg.Sensor.ConnectTimeout,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	sess := &session{backend: backend, logger: s.logger}
	sinks := multiSink(extra)

	if cfg.MQTT.Broker != "" {
		p, err := publish.New(publish.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, s.logger)
		if err != nil {
			return nil, err
		}
		if err := p.Connect(ctx); err != nil {
			return nil, err
		}
		sess.publisher = p
		sinks = append(sinks, p)
	}

	var gate permission.Gate = permission.Static(true)
	if !cfg.Sensor.Simulate {
		gate = permission.NewGate(s.logger)
	}

	deps := monitor.EngineDeps{
		Scanner: scanner.New(backend.Scanner, scanner.Options{
			NameFilter:      cfg.Scan.NameFilter,
			AllowDuplicates: cfg.Scan.AllowDuplicates,
		}, s.logger),
		Client: backend.Sensor,
		Gate:   gate,
		Logger: s.logger,
		Options: monitor.Options{
			NameFilter:   cfg.Scan.NameFilter,
			ClearOnStart: cfg.Scan.ClearOnStart,
		},
	}
	if len(sinks) > 0 {
		deps.Sink = sinks
	}
	sess.engine = monitor.NewEngine(deps)
	return sess, nil
}

// close drops the sensor link, including one still being dialed, and
// disconnects from the broker
func (s *session) close() {
	if err := s.backend.Sensor.Close(); err != nil {
		s.logger.WithError(err).Debug("Disconnect on exit failed")
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
}

// multiSink fans a reading out to several sinks and joins their errors
type multiSink []monitor.ReadingSink

func (m multiSink) Publish(ctx context.Context, dev monitor.ConnectedDevice, r monitor.HeartRateReading) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, dev, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
