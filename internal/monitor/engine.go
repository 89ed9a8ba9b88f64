package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/permission"
	"github.com/srg/hrmon/internal/sensor"
	"github.com/srg/hrmon/scanner"
)

// ErrEngineRunning is returned by Run when the engine is already running.
var ErrEngineRunning = errors.New("engine already running")

// Scanner is the part of *scanner.Scanner the engine drives.
type Scanner interface {
	Start(ctx context.Context) error
	Stop()
	Clear()
	Events() <-chan scanner.Event
}

// ReadingSink receives every accepted reading. Publish must not block for long:
// it runs on the engine goroutine.
type ReadingSink interface {
	Publish(ctx context.Context, dev ConnectedDevice, reading HeartRateReading) error
}

// EngineDeps are the collaborators of an Engine. Scanner, Gate and Sink are optional.
type EngineDeps struct {
	Scanner Scanner
	Client  sensor.Client
	Gate    permission.Gate
	Sink    ReadingSink
	Logger  *logrus.Logger
	Options Options
}

// Engine runs the reducer on a single goroutine. Collaborator callbacks and
// user intents reach it through Dispatch; effects are executed in order after
// each message.
type Engine struct {
	deps    EngineDeps
	logger  *logrus.Logger
	reducer *Reducer
	state   *State
	subs    *subscriptionManager

	inboxMu sync.Mutex
	inbox   []Msg
	wake    chan struct{}
	closed  bool

	running      atomic.Bool
	handlersOnce sync.Once

	observersMu sync.Mutex
	observers   []func(Snapshot)

	snapMu sync.RWMutex
	snap   Snapshot
}

// NewEngine creates an Engine. deps.Client is required.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	e := &Engine{
		deps:    deps,
		logger:  logger,
		reducer: NewReducer(deps.Options),
		state:   NewState(),
		wake:    make(chan struct{}, 1),
	}
	e.subs = newSubscriptionManager(deps.Client, e.Dispatch, logger)
	e.snap = e.state.Snapshot()
	return e
}

// OnChange registers fn to receive a snapshot after every processed message.
// fn runs on the engine goroutine and must not block.
func (e *Engine) OnChange(fn func(Snapshot)) {
	e.observersMu.Lock()
	defer e.observersMu.Unlock()
	e.observers = append(e.observers, fn)
}

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}

// Dispatch queues msg. It never blocks and may be called from any goroutine,
// including from inside callbacks; messages sent after Run returned are dropped.
func (e *Engine) Dispatch(msg Msg) {
	e.inboxMu.Lock()
	if e.closed {
		e.inboxMu.Unlock()
		e.logger.WithField("msg", fmt.Sprintf("%T", msg)).Debug("Engine stopped, message dropped")
		return
	}
	e.inbox = append(e.inbox, msg)
	e.inboxMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) drain() []Msg {
	e.inboxMu.Lock()
	defer e.inboxMu.Unlock()
	msgs := e.inbox
	e.inbox = nil
	return msgs
}

// Run processes messages until ctx is done. The subscription handle is
// released and the scan stopped on every exit path.
func (e *Engine) Run(ctx context.Context) error {
	if e.deps.Client == nil {
		return fmt.Errorf("engine has no sensor client")
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrEngineRunning
	}

	defer func() {
		e.inboxMu.Lock()
		e.closed = true
		e.inbox = nil
		e.inboxMu.Unlock()

		e.subs.ReleaseAll()
		if e.deps.Scanner != nil {
			e.deps.Scanner.Stop()
		}
		e.logger.Debug("Engine stopped")
	}()

	e.handlersOnce.Do(e.registerHandlers)
	permission.Run(ctx, e.deps.Gate, e.logger)
	e.publish()

	var events <-chan scanner.Event
	if e.deps.Scanner != nil {
		events = e.deps.Scanner.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
			for _, msg := range e.drain() {
				e.step(ctx, msg)
			}
		case ev := <-events:
			e.step(ctx, scannerMsg(ev))
		}
	}
}

func (e *Engine) registerHandlers() {
	e.deps.Client.SetHandlers(sensor.Handlers{
		OnConnect: func(serial, address string) {
			e.Dispatch(Connected{Serial: serial, Address: address})
		},
		OnDisconnect: func(serial string) {
			e.Dispatch(Disconnected{Serial: serial})
		},
		OnConnectFailed: func(id string, err error) {
			e.Dispatch(ConnectFailed{ID: id, Err: err})
		},
	})
}

func scannerMsg(ev scanner.Event) Msg {
	if ev.Type == scanner.EventFailed {
		return ScanFailed{Err: ev.Err}
	}
	return PeripheralDiscovered{Device: ev.Device}
}

// step reduces msg plus any message its effects produce synchronously
func (e *Engine) step(ctx context.Context, msg Msg) {
	pending := []Msg{msg}
	for len(pending) > 0 {
		m := pending[0]
		pending = pending[1:]

		e.logger.WithField("msg", fmt.Sprintf("%T", m)).Debug("Reducing message")
		for _, eff := range e.reducer.Reduce(e.state, m) {
			if follow := e.execute(ctx, eff); follow != nil {
				pending = append(pending, follow)
			}
		}
		e.publish()
	}
}

// execute runs one effect. Collaborator errors come back as messages.
func (e *Engine) execute(ctx context.Context, eff Effect) Msg {
	switch ef := eff.(type) {
	case StartScan:
		if e.deps.Scanner == nil {
			return ScanFailed{Err: fmt.Errorf("scanning is not available")}
		}
		if err := e.deps.Scanner.Start(ctx); err != nil {
			return ScanFailed{Err: err}
		}
	case StopScan:
		if e.deps.Scanner != nil {
			e.deps.Scanner.Stop()
		}
	case ClearDevices:
		if e.deps.Scanner != nil {
			e.deps.Scanner.Clear()
		}
	case Connect:
		if err := e.deps.Client.Connect(ctx, ef.ID); err != nil {
			return ConnectFailed{ID: ef.ID, Err: err}
		}
	case Disconnect:
		if err := e.deps.Client.Disconnect(ef.Address); err != nil {
			return DisconnectFailed{Address: ef.Address, Err: err}
		}
	case OpenSubscription:
		if err := e.subs.Open(ef.Gen, ef.Topic); err != nil {
			return SubscriptionFailed{Gen: ef.Gen, Err: err}
		}
	case CloseSubscription:
		e.subs.Release(ef.Gen)
	case PublishReading:
		if e.deps.Sink == nil {
			return nil
		}
		if err := e.deps.Sink.Publish(ctx, ef.Device, ef.Reading); err != nil {
			e.logger.WithError(err).Warn("Failed to publish reading")
		}
	default:
		e.logger.WithField("effect", fmt.Sprintf("%T", eff)).Warn("Unknown effect")
	}
	return nil
}

func (e *Engine) publish() {
	snap := e.state.Snapshot()

	e.snapMu.Lock()
	e.snap = snap
	e.snapMu.Unlock()

	e.observersMu.Lock()
	observers := append([]func(Snapshot){}, e.observers...)
	e.observersMu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}
