package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aerolink-io/aerolink/internal/agent/core"
	"github.com/aerolink-io/aerolink/pkg/log"
)

// Sim is an in-process flight controller used as the default backend and by
// the test suites. It models a single vehicle: handshake latency, armed and
// flight-mode transitions, instantaneous-but-delayed flight primitives, and
// periodic telemetry feeds. Faults can be injected per operation and per feed.
type Sim struct {
	mu sync.Mutex

	address   string
	connected bool

	armed      bool
	flightMode string
	pos        core.Position
	battery    core.Battery
	gps        core.GPSInfo
	home       core.Origin

	// opFailures maps operation name to remaining injected failures.
	opFailures map[string]*opFailure
	// opPanics marks operations that panic on invocation.
	opPanics map[string]bool
	// feedFailures marks feeds whose next Recv fails.
	feedFailures map[string]int

	// HandshakeDelay is how long Connect takes to come up.
	HandshakeDelay time.Duration
	// OpDelay is the synthetic duration of each flight primitive.
	OpDelay time.Duration
	// SampleInterval is the telemetry feed period.
	SampleInterval time.Duration
}

type opFailure struct {
	err       error
	remaining int // negative means forever
}

var _ core.FlightController = (*Sim)(nil)

// NewSim returns a simulator with fast timings suitable for tests and local runs.
func NewSim() *Sim {
	return &Sim{
		flightMode:     "STANDBY",
		battery:        core.Battery{Voltage: 16.2, RemainingPercent: 100},
		gps:            core.GPSInfo{Satellites: 12, FixType: "3d"},
		home:           core.Origin{Lat: 47.397742, Lon: 8.545594, Alt: 488.0},
		pos:            core.Position{Lat: 47.397742, Lon: 8.545594, AltMSL: 488.0},
		opFailures:     make(map[string]*opFailure),
		opPanics:       make(map[string]bool),
		feedFailures:   make(map[string]int),
		HandshakeDelay: 10 * time.Millisecond,
		OpDelay:        5 * time.Millisecond,
		SampleInterval: 5 * time.Millisecond,
	}
}

// FailOp injects an error for the named operation ("takeoff", "land", "goto",
// "rtl", "arm"). times < 0 fails forever.
func (s *Sim) FailOp(op string, times int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opFailures[op] = &opFailure{err: err, remaining: times}
}

// PanicOp makes the named operation panic, modeling a runtime fault in the
// vehicle-control library.
func (s *Sim) PanicOp(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opPanics[op] = true
}

// FailFeed makes the next n Recv calls of the named feed category return an
// error.
func (s *Sim) FailFeed(category string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedFailures[category] = n
}

// SetHome repositions the simulated vehicle and its launch point.
func (s *Sim) SetHome(lat, lon, alt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.home = core.Origin{Lat: lat, Lon: lon, Alt: alt}
	s.pos = core.Position{Lat: lat, Lon: lon, AltMSL: alt}
}

func (s *Sim) Connect(address string) error {
	s.mu.Lock()
	if fail := s.takeFailure("connect"); fail != nil {
		s.mu.Unlock()
		return fail
	}
	s.address = address
	delay := s.HandshakeDelay
	s.mu.Unlock()

	go func() {
		time.Sleep(delay)
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
	}()
	return nil
}

func (s *Sim) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Sim) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *Sim) Arm(ctx context.Context) error {
	return s.op(ctx, "arm", func() {
		s.armed = true
		s.flightMode = "ARMED"
	})
}

func (s *Sim) Takeoff(ctx context.Context, altitude float64) error {
	return s.op(ctx, "takeoff", func() {
		s.armed = true
		s.flightMode = "HOLD"
		s.pos.AltRelative = altitude
		s.pos.AltMSL = s.home.Alt + altitude
		s.pos.Down = -altitude
	})
}

func (s *Sim) Land(ctx context.Context) error {
	return s.op(ctx, "land", func() {
		s.flightMode = "STANDBY"
		s.pos.AltRelative = 0
		s.pos.AltMSL = s.home.Alt
		s.pos.Down = 0
		s.armed = false
	})
}

func (s *Sim) Goto(ctx context.Context, lat, lon, alt, speed float64) error {
	return s.op(ctx, "goto", func() {
		s.flightMode = "MISSION"
		s.pos.Lat = lat
		s.pos.Lon = lon
		s.pos.AltRelative = alt
		s.pos.AltMSL = s.home.Alt + alt
		s.pos.North = (lat - s.home.Lat) * 111320.0
		s.pos.East = (lon - s.home.Lon) * 111320.0
		s.pos.Down = -alt
	})
}

func (s *Sim) ReturnToLaunch(ctx context.Context) error {
	return s.op(ctx, "rtl", func() {
		s.flightMode = "STANDBY"
		s.pos = core.Position{Lat: s.home.Lat, Lon: s.home.Lon, AltMSL: s.home.Alt}
		s.armed = false
	})
}

// Kill cuts the motors. It intentionally bypasses fault injection for the
// link-up case: the last-resort action must not be made to fail by test
// scaffolding unless the link itself is down.
func (s *Sim) Kill(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return core.ErrNotConnected
	}
	s.armed = false
	s.flightMode = "KILLED"
	s.pos.AltRelative = 0
	s.pos.Down = 0
	log.Warn("[sim] Motors cut")
	return nil
}

// op runs one flight primitive: checks the link, applies injected faults,
// burns the synthetic duration, then commits the state mutation.
func (s *Sim) op(ctx context.Context, name string, commit func()) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return core.ErrNotConnected
	}
	if s.opPanics[name] {
		s.mu.Unlock()
		panic(fmt.Sprintf("sim: injected panic in %s", name))
	}
	if fail := s.takeFailure(name); fail != nil {
		s.mu.Unlock()
		return fail
	}
	delay := s.OpDelay
	s.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	s.mu.Lock()
	commit()
	s.mu.Unlock()
	return nil
}

// takeFailure consumes one injected failure for op. Caller holds s.mu.
func (s *Sim) takeFailure(op string) error {
	f, ok := s.opFailures[op]
	if !ok || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

// --- Telemetry feeds ---

func (s *Sim) SubscribePosition(ctx context.Context) (core.Stream[core.Position], error) {
	return newFeed(s, "position", func() core.Position { return s.pos })
}

func (s *Sim) SubscribeAttitude(ctx context.Context) (core.Stream[core.Attitude], error) {
	return newFeed(s, "attitude", func() core.Attitude { return core.Attitude{Yaw: 90} })
}

func (s *Sim) SubscribeBattery(ctx context.Context) (core.Stream[core.Battery], error) {
	return newFeed(s, "battery", func() core.Battery {
		if s.battery.RemainingPercent > 1 {
			s.battery.RemainingPercent -= 0.01
		}
		return s.battery
	})
}

func (s *Sim) SubscribeFlightMode(ctx context.Context) (core.Stream[string], error) {
	return newFeed(s, "flight_mode", func() string { return s.flightMode })
}

func (s *Sim) SubscribeGPS(ctx context.Context) (core.Stream[core.GPSInfo], error) {
	return newFeed(s, "gps", func() core.GPSInfo { return s.gps })
}

func (s *Sim) SubscribeArmed(ctx context.Context) (core.Stream[bool], error) {
	return newFeed(s, "armed", func() bool { return s.armed })
}

// newFeed opens one category stream. Sample closures read sim state and run
// with s.mu held.
func newFeed[T any](s *Sim, category string, sample func() T) (core.Stream[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, core.ErrNotConnected
	}
	return &simStream[T]{sim: s, category: category, sample: sample}, nil
}

// simStream emits one sample per SampleInterval.
type simStream[T any] struct {
	sim      *Sim
	category string
	sample   func() T
}

func (st *simStream[T]) Recv(ctx context.Context) (T, error) {
	var zero T

	st.sim.mu.Lock()
	interval := st.sim.SampleInterval
	if n := st.sim.feedFailures[st.category]; n > 0 {
		st.sim.feedFailures[st.category] = n - 1
		st.sim.mu.Unlock()
		return zero, fmt.Errorf("sim: injected %s feed error", st.category)
	}
	st.sim.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
	}

	st.sim.mu.Lock()
	defer st.sim.mu.Unlock()
	if !st.sim.connected {
		return zero, core.ErrFeedClosed
	}
	return st.sample(), nil
}
