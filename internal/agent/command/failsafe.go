package command

import (
	"context"

	"github.com/aerolink-io/aerolink/internal/agent/connection"
	"github.com/aerolink-io/aerolink/internal/pkg/metrics"
	"github.com/aerolink-io/aerolink/pkg/log"
)

// Dispatcher runs protective actions when a critical command cannot complete.
// It is the termination point of the error-propagation chain: it never
// panics and never returns an error, because aborting the caller here would
// leave the vehicle with no protective response at all.
type Dispatcher struct {
	registry *Registry
	conn     *connection.Manager
}

// NewDispatcher builds a failsafe dispatcher.
func NewDispatcher(registry *Registry, conn *connection.Manager) *Dispatcher {
	return &Dispatcher{registry: registry, conn: conn}
}

// Execute attempts the given protective action and logs the outcome.
// Unknown actions degrade to land. Emergency stop bypasses the registry and
// command path entirely and calls the motor cutoff primitive directly, so it
// still works when the command path is what is failing.
func (d *Dispatcher) Execute(ctx context.Context, action FailsafeAction) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(nil, "Failsafe action panicked", "action", string(action), "panic", r)
		}
	}()

	log.Warn("Failsafe engaged", "action", string(action))
	metrics.FailsafeTotal.WithLabelValues(string(action)).Inc()

	var err error
	switch action {
	case FailsafeEmergencyStop:
		err = d.conn.Controller().Kill(ctx)
	case FailsafeRTL:
		err = d.runRegistered(ctx, "rtl")
	case FailsafeLand:
		err = d.runRegistered(ctx, "land")
	default:
		log.Warn("Unknown failsafe action, degrading to land", "action", string(action))
		err = d.runRegistered(ctx, "land")
	}

	if err != nil {
		log.Error(err, "Failsafe action failed", "action", string(action))
		return
	}
	log.Info("Failsafe action completed", "action", string(action))
}

func (d *Dispatcher) runRegistered(ctx context.Context, name string) error {
	runner, err := d.registry.New(name, nil)
	if err != nil {
		return err
	}
	return runner.Run(ctx, d.conn.Controller())
}
