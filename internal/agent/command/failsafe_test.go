package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aerolink-io/aerolink/internal/agent/connection"
	"github.com/aerolink-io/aerolink/internal/agent/core"
	"github.com/aerolink-io/aerolink/internal/agent/hal"
	"github.com/aerolink-io/aerolink/internal/agent/telemetry"
)

func newTestDispatcher(t *testing.T, registry *Registry) (*Dispatcher, *hal.Sim) {
	t.Helper()

	fc := hal.NewSim()
	store := telemetry.NewStore()
	conn := connection.NewManager(fc, store, time.Second, 2*time.Millisecond)
	if !conn.Connect(context.Background(), "sim://local") {
		t.Fatal("sim link did not come up")
	}
	t.Cleanup(func() { conn.Disconnect(context.Background()) })

	return NewDispatcher(registry, conn), fc
}

func TestDispatcherLand(t *testing.T) {
	d, fc := newTestDispatcher(t, DefaultRegistry())

	if err := fc.Takeoff(context.Background(), 15); err != nil {
		t.Fatal(err)
	}

	d.Execute(context.Background(), FailsafeLand)

	state := snapshotSim(fc)
	if state.armed || state.altRelative != 0 {
		t.Errorf("vehicle still airborne: armed=%v alt=%v", state.armed, state.altRelative)
	}
}

func TestDispatcherEmergencyStopBypassesRegistry(t *testing.T) {
	// An empty registry breaks the command path completely; the motor cutoff
	// must still work.
	d, fc := newTestDispatcher(t, NewRegistry())

	if err := fc.Takeoff(context.Background(), 15); err != nil {
		t.Fatal(err)
	}

	d.Execute(context.Background(), FailsafeEmergencyStop)

	if simArmed(context.Background(), fc) {
		t.Error("motors still armed after emergency stop")
	}
}

func TestDispatcherUnknownActionDegradesToLand(t *testing.T) {
	d, fc := newTestDispatcher(t, DefaultRegistry())

	if err := fc.Takeoff(context.Background(), 15); err != nil {
		t.Fatal(err)
	}

	d.Execute(context.Background(), FailsafeAction("hover"))

	state := snapshotSim(fc)
	if state.armed || state.altRelative != 0 {
		t.Errorf("vehicle still airborne: armed=%v alt=%v", state.armed, state.altRelative)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	d, fc := newTestDispatcher(t, DefaultRegistry())
	fc.FailOp("land", -1, errors.New("actuator fault"))

	// Must not panic or propagate anything.
	d.Execute(context.Background(), FailsafeLand)
}

func TestDispatcherSwallowsPanics(t *testing.T) {
	d, fc := newTestDispatcher(t, DefaultRegistry())
	fc.PanicOp("land")

	d.Execute(context.Background(), FailsafeLand)
}

func TestDispatcherRTL(t *testing.T) {
	d, fc := newTestDispatcher(t, DefaultRegistry())
	fc.SetHome(35.0, 139.0, 40)

	ctx := context.Background()
	if err := fc.Takeoff(ctx, 20); err != nil {
		t.Fatal(err)
	}
	if err := fc.Goto(ctx, 35.01, 139.01, 20, 5); err != nil {
		t.Fatal(err)
	}

	d.Execute(ctx, FailsafeRTL)

	state := snapshotSim(fc)
	if state.lat != 35.0 || state.lon != 139.0 {
		t.Errorf("vehicle did not return home: at %v,%v", state.lat, state.lon)
	}
}

func TestDispatcherNotConnected(t *testing.T) {
	fc := hal.NewSim()
	store := telemetry.NewStore()
	conn := connection.NewManager(fc, store, time.Second, 2*time.Millisecond)
	d := NewDispatcher(DefaultRegistry(), conn)

	// Every action fails with ErrNotConnected underneath; none may escape.
	for _, action := range []FailsafeAction{FailsafeLand, FailsafeRTL, FailsafeEmergencyStop} {
		d.Execute(context.Background(), action)
	}

	if err := fc.Kill(context.Background()); !errors.Is(err, core.ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}
