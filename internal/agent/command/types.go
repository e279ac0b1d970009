package command

import (
	"fmt"
)

// Mode is the per-command failure policy submitted with a command.
// The string values are a wire contract and must round-trip exactly.
type Mode string

const (
	// ModeContinue records a failure and proceeds with the sequence.
	ModeContinue Mode = "continue"

	// ModeCritical aborts the sequence and triggers the failsafe on failure,
	// regardless of what the registry says about the command.
	ModeCritical Mode = "critical"

	// ModeSkip records a failure and proceeds. Kept distinct from continue
	// on the wire even though the observed failure behavior is identical.
	ModeSkip Mode = "skip"
)

// Valid reports whether m is one of the three wire values.
func (m Mode) Valid() bool {
	switch m {
	case ModeContinue, ModeCritical, ModeSkip:
		return true
	}
	return false
}

// FailsafeAction is one of the protective maneuvers the dispatcher can run.
type FailsafeAction string

const (
	FailsafeLand          FailsafeAction = "land"
	FailsafeRTL           FailsafeAction = "rtl"
	FailsafeEmergencyStop FailsafeAction = "emergency_stop"
)

// TimeoutBehavior controls how a command's natural-wait timeout is treated.
type TimeoutBehavior string

const (
	// TimeoutContinue treats a timed-out attempt like any other failure.
	TimeoutContinue TimeoutBehavior = "continue"

	// TimeoutFailsafe escalates a timed-out command to the criticality path
	// even when neither the spec nor the submission marks it critical.
	TimeoutFailsafe TimeoutBehavior = "failsafe"
)

// Machine-readable error codes carried in Result.Error.
const (
	CodeUnknownCommand = "unknown_command"
	CodeInvalidParams  = "invalid_params"
	CodeNotConnected   = "not_connected"
	CodeRetryExhausted = "retry_exhausted"
	CodeExecutionFault = "execution_fault"
	CodeExecutorBusy   = "executor_busy"
)

// Command is one unit of work in a sequence. Immutable once submitted.
type Command struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
	Mode   Mode           `json:"mode"`
}

// Result is the finalized outcome of one command's attempt sequence.
// Produced exactly once per command, after a success or once all retries are
// exhausted. Duration is seconds.
type Result struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration"`
}

// Spec is the registry metadata for one command name. Loaded once at startup
// and read-only during execution.
type Spec struct {
	Name            string          `json:"name" mapstructure:"name"`
	Critical        bool            `json:"critical" mapstructure:"critical"`
	Failsafe        FailsafeAction  `json:"failsafe,omitempty" mapstructure:"failsafe"`
	MaxRetries      int             `json:"max_retries" mapstructure:"max_retries"`
	TimeoutBehavior TimeoutBehavior `json:"timeout_behavior" mapstructure:"timeout_behavior"`
}

// ValidationError reports the parameters that failed schema validation.
type ValidationError struct {
	Command string
	Fields  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %v", e.Command, e.Fields)
}
