package command

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aerolink-io/aerolink/internal/agent/connection"
	"github.com/aerolink-io/aerolink/internal/agent/core"
	"github.com/aerolink-io/aerolink/internal/pkg/metrics"
	"github.com/aerolink-io/aerolink/pkg/log"
)

// SequenceResult is the envelope returned for one submitted batch.
// Field names are part of the wire contract.
type SequenceResult struct {
	Success            bool     `json:"success"`
	SequenceID         string   `json:"sequence_id"`
	Error              string   `json:"error,omitempty"`
	Results            []Result `json:"results"`
	TotalCommands      int      `json:"total_commands"`
	SuccessfulCommands int      `json:"successful_commands"`
}

// Executor runs ordered command sequences against the vehicle link, applying
// per-command retry budgets and criticality policy, and engaging the failsafe
// dispatcher when a safety-critical step cannot complete.
//
// Exactly one sequence executes at a time; a submission while one is in
// flight is rejected immediately without touching the connection.
type Executor struct {
	registry *Registry
	conn     *connection.Manager
	failsafe *Dispatcher

	busy atomic.Bool
}

// NewExecutor builds a sequence executor.
func NewExecutor(registry *Registry, conn *connection.Manager, failsafe *Dispatcher) *Executor {
	return &Executor{registry: registry, conn: conn, failsafe: failsafe}
}

// ExecuteSequence runs commands strictly in order and returns one Result per
// attempted command, in submission order. A critical failure truncates the
// sequence: later commands produce no results. The busy rejection produces
// zero results.
func (e *Executor) ExecuteSequence(ctx context.Context, commands []Command) SequenceResult {
	if !e.busy.CompareAndSwap(false, true) {
		log.Warn("Sequence rejected, executor busy", "commands", len(commands))
		return SequenceResult{
			Success:       false,
			Error:         CodeExecutorBusy,
			Results:       []Result{},
			TotalCommands: len(commands),
		}
	}
	defer e.busy.Store(false)

	seq := SequenceResult{
		SequenceID:    uuid.NewString(),
		Results:       make([]Result, 0, len(commands)),
		TotalCommands: len(commands),
	}

	log.Info("Executing command sequence", "sequenceID", seq.SequenceID, "commands", len(commands))

	for i, cmd := range commands {
		result, abort := e.executeOne(ctx, cmd)
		seq.Results = append(seq.Results, result)
		if result.Success {
			seq.SuccessfulCommands++
		}
		if abort {
			log.Warn("Sequence aborted", "sequenceID", seq.SequenceID, "at", i, "command", cmd.Name)
			break
		}
	}

	seq.Success = seq.SuccessfulCommands == seq.TotalCommands
	log.Info("Sequence finished", "sequenceID", seq.SequenceID,
		"successful", seq.SuccessfulCommands, "total", seq.TotalCommands)
	return seq
}

// Busy reports whether a sequence is currently in flight.
func (e *Executor) Busy() bool {
	return e.busy.Load()
}

// executeOne finalizes exactly one Result for cmd and reports whether the
// sequence must stop.
func (e *Executor) executeOne(ctx context.Context, cmd Command) (Result, bool) {
	start := time.Now()

	spec, err := e.registry.Spec(cmd.Name)
	if err != nil {
		// No spec to consult, so criticality comes from the submission alone
		// and the failsafe action defaults to land.
		result := e.finalize(cmd, start, CodeUnknownCommand, fmt.Sprintf("unknown command %q", cmd.Name))
		if cmd.Mode == ModeCritical {
			e.failsafe.Execute(ctx, FailsafeLand)
			return result, true
		}
		return result, false
	}

	attempts := spec.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		runner, err := e.registry.New(cmd.Name, cmd.Params)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				// Deterministic: retrying the same bad parameters cannot help.
				result := e.finalize(cmd, start, CodeInvalidParams, verr.Error())
				return result, e.resolveFailure(ctx, cmd, spec, err, false)
			}
			lastErr = err
			continue
		}

		if !e.conn.Connected() {
			lastErr = core.ErrNotConnected
			result := e.finalize(cmd, start, CodeNotConnected, "vehicle link not connected")
			return result, e.resolveFailure(ctx, cmd, spec, lastErr, false)
		}

		runErr, faulted := e.runAttempt(ctx, runner)
		if runErr == nil {
			result := Result{
				Success:  true,
				Message:  fmt.Sprintf("%s completed", cmd.Name),
				Duration: time.Since(start).Seconds(),
			}
			metrics.CommandsTotal.WithLabelValues(cmd.Name, "success").Inc()
			metrics.CommandDuration.WithLabelValues(cmd.Name).Observe(result.Duration)
			log.Info("Command succeeded", "command", cmd.Name, "attempt", attempt,
				"duration", time.Since(start))
			return result, false
		}

		lastErr = runErr
		log.Warn("Command attempt failed", "command", cmd.Name, "attempt", attempt,
			"of", attempts, runErr)

		if faulted {
			// A runtime fault is always critical and always lands,
			// regardless of mode or spec.
			result := e.finalize(cmd, start, CodeExecutionFault, fmt.Sprintf("runtime fault: %v", runErr))
			e.failsafe.Execute(ctx, FailsafeLand)
			return result, true
		}
	}

	result := e.finalize(cmd, start, CodeRetryExhausted,
		fmt.Sprintf("%s failed after %d attempts: %v", cmd.Name, attempts, lastErr))
	return result, e.resolveFailure(ctx, cmd, spec, lastErr, true)
}

// runAttempt invokes one fresh command instance, converting a panic in the
// vehicle-control path into an error flagged as a runtime fault.
func (e *Executor) runAttempt(ctx context.Context, runner Runner) (err error, faulted bool) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during command execution: %v", r)
			faulted = true
		}
	}()

	err = runner.Run(ctx, e.conn.Controller())
	return err, false
}

// resolveFailure applies the mode/criticality policy for a failed command and
// reports whether the sequence must stop. Skip and continue both proceed;
// the distinction is preserved on the wire only.
func (e *Executor) resolveFailure(ctx context.Context, cmd Command, spec Spec, lastErr error, retriesSpent bool) bool {
	critical := spec.Critical || cmd.Mode == ModeCritical

	if retriesSpent && spec.TimeoutBehavior == TimeoutFailsafe &&
		errors.Is(lastErr, context.DeadlineExceeded) {
		critical = true
	}

	if !critical {
		return false
	}

	action := spec.Failsafe
	if action == "" {
		action = FailsafeLand
	}
	e.failsafe.Execute(ctx, action)
	return true
}

// finalize records the failed outcome of one command.
func (e *Executor) finalize(cmd Command, start time.Time, code, message string) Result {
	result := Result{
		Success:  false,
		Message:  message,
		Error:    code,
		Duration: time.Since(start).Seconds(),
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Name, "failed").Inc()
	metrics.CommandDuration.WithLabelValues(cmd.Name).Observe(result.Duration)
	log.Warn("Command failed", "command", cmd.Name, "code", code, "message", message)
	return result
}
