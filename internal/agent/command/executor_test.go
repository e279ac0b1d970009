package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aerolink-io/aerolink/internal/agent/connection"
	"github.com/aerolink-io/aerolink/internal/agent/hal"
	"github.com/aerolink-io/aerolink/internal/agent/telemetry"
)

// newTestExecutor brings up an established sim link and an executor over the
// default command set.
func newTestExecutor(t *testing.T) (*Executor, *hal.Sim, *connection.Manager) {
	t.Helper()

	fc := hal.NewSim()
	store := telemetry.NewStore()
	conn := connection.NewManager(fc, store, time.Second, 2*time.Millisecond)
	if !conn.Connect(context.Background(), "sim://local") {
		t.Fatal("sim link did not come up")
	}
	t.Cleanup(func() { conn.Disconnect(context.Background()) })

	registry := DefaultRegistry()
	return NewExecutor(registry, conn, NewDispatcher(registry, conn)), fc, conn
}

func TestExecuteSequenceAllSucceed(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "takeoff", Params: map[string]any{"altitude": 30}, Mode: ModeContinue},
		{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: ModeContinue},
		{Name: "land", Mode: ModeContinue},
	})

	if !seq.Success {
		t.Fatalf("sequence failed: %+v", seq)
	}
	if seq.SequenceID == "" {
		t.Error("sequence ID is empty")
	}
	if len(seq.Results) != 3 || seq.TotalCommands != 3 || seq.SuccessfulCommands != 3 {
		t.Fatalf("got %d results, %d/%d successful", len(seq.Results), seq.SuccessfulCommands, seq.TotalCommands)
	}
	for i, r := range seq.Results {
		if !r.Success {
			t.Errorf("result %d failed: %+v", i, r)
		}
		if r.Duration < 0 {
			t.Errorf("result %d has negative duration", i)
		}
	}
}

func TestExecuteSequenceUnknownCommandContinues(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "spin", Mode: ModeContinue},
		{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: ModeContinue},
	})

	if len(seq.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(seq.Results))
	}
	if seq.Results[0].Error != CodeUnknownCommand {
		t.Errorf("got error %q, want %q", seq.Results[0].Error, CodeUnknownCommand)
	}
	if !seq.Results[1].Success {
		t.Error("sequence did not continue past a non-critical unknown command")
	}
	if seq.Success {
		t.Error("sequence with a failed command reported overall success")
	}
}

func TestExecuteSequenceUnknownCommandCriticalAborts(t *testing.T) {
	e, fc, _ := newTestExecutor(t)

	// Get airborne first so the failsafe landing is observable.
	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "takeoff", Params: map[string]any{"altitude": 20}, Mode: ModeContinue},
		{Name: "spin", Mode: ModeCritical},
		{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: ModeContinue},
	})

	if len(seq.Results) != 2 {
		t.Fatalf("got %d results, want 2 (sequence must truncate)", len(seq.Results))
	}
	if seq.Results[1].Error != CodeUnknownCommand {
		t.Errorf("got error %q, want %q", seq.Results[1].Error, CodeUnknownCommand)
	}

	state := snapshotSim(fc)
	if state.armed || state.altRelative != 0 {
		t.Errorf("failsafe landing did not run: armed=%v alt=%v", state.armed, state.altRelative)
	}
}

func TestExecuteSequenceCriticalFailureTruncates(t *testing.T) {
	e, fc, _ := newTestExecutor(t)
	fc.FailOp("takeoff", -1, errors.New("motor interlock"))

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "takeoff", Params: map[string]any{"altitude": 30}, Mode: ModeContinue},
		{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: ModeContinue},
	})

	if len(seq.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(seq.Results))
	}
	if seq.Results[0].Error != CodeRetryExhausted {
		t.Errorf("got error %q, want %q", seq.Results[0].Error, CodeRetryExhausted)
	}
	if seq.Success || seq.SuccessfulCommands != 0 {
		t.Errorf("truncated sequence reported success: %+v", seq)
	}
}

func TestExecuteSequenceRetrySucceedsWithinBudget(t *testing.T) {
	e, fc, _ := newTestExecutor(t)

	// land has a budget of one retry: one injected failure must be absorbed.
	fc.FailOp("land", 1, errors.New("transient link glitch"))

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "takeoff", Params: map[string]any{"altitude": 10}, Mode: ModeContinue},
		{Name: "land", Mode: ModeContinue},
	})

	if !seq.Success {
		t.Fatalf("retry within budget did not recover: %+v", seq)
	}
}

func TestExecuteSequenceRetryExhaustionEngagesFailsafe(t *testing.T) {
	e, fc, _ := newTestExecutor(t)

	// Two failures exceed land's budget of two attempts; its configured
	// failsafe is return-to-launch.
	fc.FailOp("land", 2, errors.New("persistent fault"))
	fc.SetHome(40.0, -105.0, 1600)

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "takeoff", Params: map[string]any{"altitude": 10}, Mode: ModeContinue},
		{Name: "goto", Params: map[string]any{"lat": 40.001, "lon": -105.0, "alt": 15}, Mode: ModeContinue},
		{Name: "land", Mode: ModeContinue},
		{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: ModeContinue},
	})

	if len(seq.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(seq.Results))
	}
	if seq.Results[2].Error != CodeRetryExhausted {
		t.Errorf("got error %q, want %q", seq.Results[2].Error, CodeRetryExhausted)
	}

	state := snapshotSim(fc)
	if state.lat != 40.0 || state.lon != -105.0 {
		t.Errorf("return-to-launch failsafe did not run: at %v,%v", state.lat, state.lon)
	}
}

func TestExecuteSequenceSkipAndContinueProceed(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	for _, mode := range []Mode{ModeContinue, ModeSkip} {
		seq := e.ExecuteSequence(context.Background(), []Command{
			{Name: "goto", Params: map[string]any{"lat": 200, "lon": 0, "alt": 10}, Mode: mode},
			{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: mode},
		})

		if len(seq.Results) != 2 {
			t.Fatalf("mode %s: got %d results, want 2", mode, len(seq.Results))
		}
		if seq.Results[0].Error != CodeInvalidParams {
			t.Errorf("mode %s: got error %q, want %q", mode, seq.Results[0].Error, CodeInvalidParams)
		}
		if !seq.Results[1].Success {
			t.Errorf("mode %s did not proceed past the failure", mode)
		}
	}
}

func TestExecuteSequencePanicLandsAndAborts(t *testing.T) {
	e, fc, _ := newTestExecutor(t)
	fc.PanicOp("goto")

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "takeoff", Params: map[string]any{"altitude": 25}, Mode: ModeContinue},
		{Name: "goto", Params: map[string]any{"lat": 47.4, "lon": 8.55, "alt": 25}, Mode: ModeContinue},
		{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: ModeContinue},
	})

	if len(seq.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(seq.Results))
	}
	if seq.Results[1].Error != CodeExecutionFault {
		t.Errorf("got error %q, want %q", seq.Results[1].Error, CodeExecutionFault)
	}

	state := snapshotSim(fc)
	if state.armed || state.altRelative != 0 {
		t.Errorf("panic did not force a landing: armed=%v alt=%v", state.armed, state.altRelative)
	}
}

func TestExecuteSequenceBusyRejection(t *testing.T) {
	e, _, _ := newTestExecutor(t)

	done := make(chan SequenceResult, 1)
	go func() {
		done <- e.ExecuteSequence(context.Background(), []Command{
			{Name: "hold", Params: map[string]any{"seconds": 0.3}, Mode: ModeContinue},
		})
	}()

	deadline := time.Now().Add(time.Second)
	for !e.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("first sequence never started")
		}
		time.Sleep(time.Millisecond)
	}

	rejected := e.ExecuteSequence(context.Background(), []Command{
		{Name: "land", Mode: ModeContinue},
	})
	if rejected.Error != CodeExecutorBusy {
		t.Errorf("got error %q, want %q", rejected.Error, CodeExecutorBusy)
	}
	if len(rejected.Results) != 0 {
		t.Errorf("busy rejection produced %d results, want 0", len(rejected.Results))
	}

	first := <-done
	if !first.Success {
		t.Errorf("in-flight sequence was disturbed by the rejected one: %+v", first)
	}
}

func TestExecuteSequenceInvalidParamsDoNotRetry(t *testing.T) {
	e, fc, _ := newTestExecutor(t)

	// If validation failures consumed retries against the vehicle, this
	// injected failure would be eaten. It must remain for the next command.
	fc.FailOp("land", 1, errors.New("should remain queued"))

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "hold", Params: map[string]any{"seconds": -5}, Mode: ModeContinue},
		{Name: "land", Mode: ModeContinue},
	})

	if seq.Results[0].Error != CodeInvalidParams {
		t.Errorf("got error %q, want %q", seq.Results[0].Error, CodeInvalidParams)
	}
	// land absorbs the injected failure with its retry and still succeeds.
	if !seq.Results[1].Success {
		t.Errorf("land did not recover: %+v", seq.Results[1])
	}
}

func TestExecuteSequenceNotConnected(t *testing.T) {
	fc := hal.NewSim()
	store := telemetry.NewStore()
	conn := connection.NewManager(fc, store, time.Second, 2*time.Millisecond)
	registry := DefaultRegistry()
	e := NewExecutor(registry, conn, NewDispatcher(registry, conn))

	seq := e.ExecuteSequence(context.Background(), []Command{
		{Name: "takeoff", Params: map[string]any{"altitude": 30}, Mode: ModeContinue},
		{Name: "hold", Params: map[string]any{"seconds": 0}, Mode: ModeContinue},
	})

	if len(seq.Results) != 1 {
		t.Fatalf("got %d results, want 1 (critical takeoff aborts)", len(seq.Results))
	}
	if seq.Results[0].Error != CodeNotConnected {
		t.Errorf("got error %q, want %q", seq.Results[0].Error, CodeNotConnected)
	}
}

// simState is a minimal observable slice of the simulator for assertions.
type simState struct {
	armed       bool
	altRelative float64
	lat, lon    float64
}

func snapshotSim(fc *hal.Sim) simState {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	st, err := fc.SubscribePosition(ctx)
	if err != nil {
		return simState{}
	}
	pos, err := st.Recv(ctx)
	if err != nil {
		return simState{}
	}
	return simState{armed: simArmed(ctx, fc), altRelative: pos.AltRelative, lat: pos.Lat, lon: pos.Lon}
}

func simArmed(ctx context.Context, fc *hal.Sim) bool {
	st, err := fc.SubscribeArmed(ctx)
	if err != nil {
		return false
	}
	armed, err := st.Recv(ctx)
	if err != nil {
		return false
	}
	return armed
}
