package connection

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/aerolink-io/aerolink/internal/agent/core"
	"github.com/aerolink-io/aerolink/internal/agent/telemetry"
	"github.com/aerolink-io/aerolink/internal/pkg/metrics"
	ufsm "github.com/aerolink-io/aerolink/internal/pkg/util/fsm"
	"github.com/aerolink-io/aerolink/pkg/log"
)

// Session states.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
)

// Session events.
const (
	eventConnect     = "connect"
	eventEstablished = "established"
	eventFailed      = "failed"
	eventDisconnect  = "disconnect"
)

// Manager owns the vehicle link lifecycle: handshake, collector supervision,
// and teardown. All state transitions run through a guarded FSM so a second
// Connect during a handshake is rejected instead of racing.
type Manager struct {
	fc    core.FlightController
	store *telemetry.Store

	handshakeTimeout time.Duration
	pollInterval     time.Duration

	mu         sync.Mutex
	machine    *fsm.FSM
	cancel     context.CancelFunc
	collectors *sync.WaitGroup
}

// NewManager builds a connection manager around the given flight controller.
func NewManager(fc core.FlightController, store *telemetry.Store, handshakeTimeout, pollInterval time.Duration) *Manager {
	m := &Manager{
		fc:               fc,
		store:            store,
		handshakeTimeout: handshakeTimeout,
		pollInterval:     pollInterval,
	}

	m.machine = fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: eventConnect, Src: []string{StateDisconnected}, Dst: StateConnecting},
			{Name: eventEstablished, Src: []string{StateConnecting}, Dst: StateConnected},
			{Name: eventFailed, Src: []string{StateConnecting}, Dst: StateDisconnected},
			{Name: eventDisconnect, Src: []string{StateConnecting, StateConnected}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": ufsm.WrapEvent(func(ctx context.Context, e *fsm.Event) error {
				log.Debug("Link session transition", "from", e.Src, "to", e.Dst)
				return nil
			}),
		},
	)

	return m
}

// Connect attempts the link handshake under the configured timeout, polling
// in short intervals. On success it starts all telemetry collectors and
// reports true. Failure (timeout, handshake error, or a session already in
// progress) reports false and leaves the session disconnected. It never
// returns an error: a refused link is a normal outcome, not a fault.
func (m *Manager) Connect(ctx context.Context, address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.machine.Current() == StateConnected {
		return true
	}
	if err := m.machine.Event(ctx, eventConnect); err != nil {
		log.Warn("Connect rejected", "state", m.machine.Current(), err)
		return false
	}

	log.Info("Connecting to vehicle", "address", address, "timeout", m.handshakeTimeout)

	if err := m.fc.Connect(address); err != nil {
		log.Error(err, "Link handshake failed to start", "address", address)
		_ = m.machine.Event(ctx, eventFailed)
		return false
	}

	deadline := time.Now().Add(m.handshakeTimeout)
	for !m.fc.Connected() {
		if time.Now().After(deadline) || ctx.Err() != nil {
			log.Warn("Link handshake timed out", "address", address)
			_ = m.machine.Event(ctx, eventFailed)
			return false
		}
		time.Sleep(m.pollInterval)
	}

	// Collectors belong to the session, not to the Connect caller.
	sessionCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.collectors = telemetry.StartCollectors(sessionCtx, m.fc, m.store)
	go m.watchLink(sessionCtx)

	m.store.SetConnected(true)
	metrics.LinkState.Set(1)
	_ = m.machine.Event(ctx, eventEstablished)

	log.Info("Vehicle link established", "address", address)
	return true
}

// watchLink polls the controller's link flag for the lifetime of the session
// and tears the session down when the vehicle drops the link from its side.
// Without it the session would stay connected while every collector starves.
func (m *Manager) watchLink(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.fc.Connected() {
				continue
			}
			log.Warn("Vehicle link lost, tearing down session")
			m.Disconnect(context.Background())
			return
		}
	}
}

// Disconnect tears the session down: cancels all collector loops, waits for
// them to exit, resets the telemetry state and origin, and returns the
// session to disconnected. Safe to call in any state, any number of times.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.machine.Current() == StateDisconnected {
		return
	}

	log.Info("Disconnecting vehicle link")

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.collectors != nil {
		// Collector loops treat this cancellation as clean shutdown and
		// discard it; nothing to collect here beyond their termination.
		m.collectors.Wait()
		m.collectors = nil
	}

	if err := m.fc.Disconnect(ctx); err != nil {
		log.Error(err, "Controller disconnect reported an error")
	}

	m.store.Reset()
	metrics.LinkState.Set(0)
	_ = m.machine.Event(ctx, eventDisconnect)
}

// Connected reports whether the session is established.
func (m *Manager) Connected() bool {
	return m.machine.Current() == StateConnected
}

// State returns the current session state name.
func (m *Manager) State() string {
	return m.machine.Current()
}

// Telemetry returns a consistent snapshot of the last-known vehicle state.
// Always returns a value, even when disconnected, and never blocks on I/O.
func (m *Manager) Telemetry() telemetry.State {
	return m.store.Snapshot()
}

// Controller exposes the underlying flight controller for command execution.
func (m *Manager) Controller() core.FlightController {
	return m.fc
}
