package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aerolink-io/aerolink/internal/agent/hal"
	"github.com/aerolink-io/aerolink/internal/agent/telemetry"
)

func newTestManager(t *testing.T, handshakeTimeout time.Duration) (*Manager, *hal.Sim, *telemetry.Store) {
	t.Helper()
	fc := hal.NewSim()
	store := telemetry.NewStore()
	return NewManager(fc, store, handshakeTimeout, 2*time.Millisecond), fc, store
}

func TestConnectEstablishesSession(t *testing.T) {
	m, _, store := newTestManager(t, time.Second)
	defer m.Disconnect(context.Background())

	if m.Connected() {
		t.Fatal("connected before Connect")
	}
	if !m.Connect(context.Background(), "sim://local") {
		t.Fatal("connect failed")
	}
	if !m.Connected() || m.State() != StateConnected {
		t.Errorf("state = %s after successful connect", m.State())
	}

	// Collectors must be live: wait for data to flow.
	deadline := time.Now().Add(time.Second)
	for {
		st := m.Telemetry()
		if st.Connected && st.Position != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no telemetry after connect: %+v", st)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if _, set := store.Origin(); !set {
		t.Error("origin not calibrated during session")
	}
}

func TestConnectIdempotentWhenConnected(t *testing.T) {
	m, _, _ := newTestManager(t, time.Second)
	defer m.Disconnect(context.Background())

	if !m.Connect(context.Background(), "sim://local") {
		t.Fatal("connect failed")
	}
	if !m.Connect(context.Background(), "sim://local") {
		t.Error("second connect on an established session reported failure")
	}
}

func TestConnectTimesOut(t *testing.T) {
	m, fc, _ := newTestManager(t, 20*time.Millisecond)
	fc.HandshakeDelay = time.Second

	if m.Connect(context.Background(), "sim://local") {
		t.Fatal("connect succeeded past its deadline")
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %s after timeout, want disconnected", m.State())
	}

	// The manager must be usable again once the vehicle is reachable.
	fc.HandshakeDelay = time.Millisecond
	if !m.Connect(context.Background(), "sim://local") {
		t.Error("reconnect after timeout failed")
	}
	m.Disconnect(context.Background())
}

func TestConnectHandshakeRefused(t *testing.T) {
	m, fc, _ := newTestManager(t, time.Second)
	fc.FailOp("connect", 1, errors.New("port in use"))

	if m.Connect(context.Background(), "sim://local") {
		t.Fatal("connect succeeded despite a refused handshake")
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", m.State())
	}
}

func TestDisconnectResetsSession(t *testing.T) {
	m, _, store := newTestManager(t, time.Second)

	if !m.Connect(context.Background(), "sim://local") {
		t.Fatal("connect failed")
	}

	// Let some telemetry land before tearing down.
	deadline := time.Now().Add(time.Second)
	for m.Telemetry().Position == nil {
		if time.Now().After(deadline) {
			t.Fatal("no telemetry before disconnect")
		}
		time.Sleep(2 * time.Millisecond)
	}

	m.Disconnect(context.Background())

	if m.Connected() || m.State() != StateDisconnected {
		t.Errorf("state = %s after disconnect", m.State())
	}

	st := m.Telemetry()
	if st.Connected || st.Position != nil {
		t.Errorf("session state survived disconnect: %+v", st)
	}
	if _, set := store.Origin(); set {
		t.Error("origin survived disconnect; it must recalibrate per session")
	}
	if st.Origin != telemetry.DefaultOrigin {
		t.Errorf("got origin %+v, want placeholder", st.Origin)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t, time.Second)

	// Never connected: must be a no-op.
	m.Disconnect(context.Background())
	m.Disconnect(context.Background())

	if !m.Connect(context.Background(), "sim://local") {
		t.Fatal("connect failed")
	}
	m.Disconnect(context.Background())
	m.Disconnect(context.Background())

	if m.State() != StateDisconnected {
		t.Errorf("state = %s", m.State())
	}
}

func TestLinkLossTearsDownSession(t *testing.T) {
	m, fc, _ := newTestManager(t, time.Second)
	defer m.Disconnect(context.Background())

	if !m.Connect(context.Background(), "sim://local") {
		t.Fatal("connect failed")
	}

	// Drop the link from the vehicle's side; the watchdog must notice and
	// return the session to disconnected instead of serving stale state.
	if err := fc.Disconnect(context.Background()); err != nil {
		t.Fatalf("simulated link drop: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for m.State() != StateDisconnected {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s after link loss, want disconnected", m.State())
		}
		time.Sleep(2 * time.Millisecond)
	}

	if st := m.Telemetry(); st.Connected {
		t.Errorf("telemetry still reports connected: %+v", st)
	}
}

func TestReconnectStartsFreshSession(t *testing.T) {
	m, fc, store := newTestManager(t, time.Second)

	if !m.Connect(context.Background(), "sim://local") {
		t.Fatal("first connect failed")
	}
	deadline := time.Now().Add(time.Second)
	for {
		if _, set := store.Origin(); set {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("origin never calibrated")
		}
		time.Sleep(2 * time.Millisecond)
	}

	m.Disconnect(context.Background())

	// Move the vehicle between sessions; the new session's origin must
	// reflect the new position, not the old session's.
	fc.SetHome(35.0, 139.0, 40)
	if !m.Connect(context.Background(), "sim://local") {
		t.Fatal("second connect failed")
	}
	defer m.Disconnect(context.Background())

	deadline = time.Now().Add(time.Second)
	for {
		if origin, set := store.Origin(); set {
			if origin.Lat != 35.0 || origin.Lon != 139.0 {
				t.Errorf("second session origin = %+v", origin)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second session origin never calibrated")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
