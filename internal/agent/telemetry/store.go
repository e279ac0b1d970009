package telemetry

import (
	"sync"
	"time"

	"github.com/aerolink-io/aerolink/internal/agent/core"
	"github.com/aerolink-io/aerolink/internal/pkg/metrics"
)

// DefaultOrigin is the deterministic placeholder reported while no origin has
// been calibrated for the session (the PX4 SITL default home position).
var DefaultOrigin = core.Origin{Lat: 47.397742, Lon: 8.545594, Alt: 488.0}

// State is the composite last-known vehicle state. Category fields are nil
// until their collector has delivered at least one sample this session.
// Field names are part of the wire contract and must round-trip exactly.
type State struct {
	Position   *core.Position `json:"position"`
	Attitude   *core.Attitude `json:"attitude"`
	Battery    *core.Battery  `json:"battery"`
	FlightMode *string        `json:"flight_mode"`
	GPS        *core.GPSInfo  `json:"gps_info"`
	Armed      *bool          `json:"armed"`
	Connected  bool           `json:"connected"`
	Timestamp  time.Time      `json:"timestamp"`
	Origin     core.Origin    `json:"origin"`
}

// Store holds the telemetry state behind a mutex. Each category field is
// written by exactly one collector, so writers never contend with each other,
// only with snapshot readers. Readers always get a consistent copy.
type Store struct {
	mu sync.RWMutex

	position   *core.Position
	attitude   *core.Attitude
	battery    *core.Battery
	flightMode *string
	gps        *core.GPSInfo
	armed      *bool

	connected bool
	updatedAt time.Time

	origin    core.Origin
	originSet bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) SetPosition(p core.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = &p
	s.updatedAt = time.Now()
}

func (s *Store) SetAttitude(a core.Attitude) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attitude = &a
	s.updatedAt = time.Now()
}

func (s *Store) SetBattery(b core.Battery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battery = &b
	s.updatedAt = time.Now()
}

func (s *Store) SetFlightMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flightMode = &mode
	s.updatedAt = time.Now()
}

func (s *Store) SetGPS(g core.GPSInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gps = &g
	s.updatedAt = time.Now()
}

func (s *Store) SetArmed(armed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = &armed
	s.updatedAt = time.Now()
}

// SetConnected flips the link flag. Owned by the connection manager.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	s.updatedAt = time.Now()
}

// CalibrateOrigin freezes the session origin from the first valid fix.
// Subsequent calls are no-ops until Reset; the return value reports whether
// this call set it.
func (s *Store) CalibrateOrigin(o core.Origin) bool {
	if !o.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.originSet {
		return false
	}
	s.origin = o
	s.originSet = true
	return true
}

// Origin returns the calibrated origin and whether one has been set.
func (s *Store) Origin() (core.Origin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin, s.originSet
}

// Snapshot returns a consistent copy of the full state. Never blocks on I/O
// and always returns a value; with no origin calibrated the deterministic
// placeholder is reported instead of a null.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Connected: s.connected,
		Timestamp: s.updatedAt,
		Origin:    s.origin,
	}
	if !s.originSet {
		st.Origin = DefaultOrigin
	}

	if s.position != nil {
		p := *s.position
		st.Position = &p
	}
	if s.attitude != nil {
		a := *s.attitude
		st.Attitude = &a
	}
	if s.battery != nil {
		b := *s.battery
		st.Battery = &b
	}
	if s.flightMode != nil {
		m := *s.flightMode
		st.FlightMode = &m
	}
	if s.gps != nil {
		g := *s.gps
		st.GPS = &g
	}
	if s.armed != nil {
		a := *s.armed
		st.Armed = &a
	}

	if !s.updatedAt.IsZero() {
		metrics.TelemetryAge.Set(time.Since(s.updatedAt).Seconds())
	}

	return st
}

// Reset clears all session state back to defaults, including the origin.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = nil
	s.attitude = nil
	s.battery = nil
	s.flightMode = nil
	s.gps = nil
	s.armed = nil
	s.connected = false
	s.updatedAt = time.Now()
	s.origin = core.Origin{}
	s.originSet = false
}
