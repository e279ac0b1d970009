package command

import (
	"context"
	"time"

	"github.com/aerolink-io/aerolink/internal/agent/core"
)

// runnerFunc adapts a closure to the Runner interface.
type runnerFunc func(ctx context.Context, fc core.FlightController) error

func (f runnerFunc) Run(ctx context.Context, fc core.FlightController) error {
	return f(ctx, fc)
}

func f64(v float64) *float64 { return &v }

// DefaultRegistry builds the built-in flight command set. The declarative
// definitions file can override the criticality metadata afterwards; the
// schemas and implementations are fixed.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(
		Spec{Name: "takeoff", Critical: true, Failsafe: FailsafeLand, MaxRetries: 1, TimeoutBehavior: TimeoutFailsafe},
		[]ParamSpec{
			{Name: "altitude", Type: ParamNumber, Required: true, Min: f64(1), Max: f64(120)},
		},
		func(params map[string]any) Runner {
			altitude := params["altitude"].(float64)
			return runnerFunc(func(ctx context.Context, fc core.FlightController) error {
				if err := fc.Arm(ctx); err != nil {
					return err
				}
				return fc.Takeoff(ctx, altitude)
			})
		},
	)

	r.Register(
		Spec{Name: "land", Critical: true, Failsafe: FailsafeRTL, MaxRetries: 1, TimeoutBehavior: TimeoutFailsafe},
		nil,
		func(map[string]any) Runner {
			return runnerFunc(func(ctx context.Context, fc core.FlightController) error {
				return fc.Land(ctx)
			})
		},
	)

	r.Register(
		Spec{Name: "goto", Critical: true, Failsafe: FailsafeRTL, MaxRetries: 2, TimeoutBehavior: TimeoutContinue},
		[]ParamSpec{
			{Name: "lat", Type: ParamNumber, Required: true, Min: f64(-90), Max: f64(90)},
			{Name: "lon", Type: ParamNumber, Required: true, Min: f64(-180), Max: f64(180)},
			{Name: "alt", Type: ParamNumber, Required: true, Min: f64(0), Max: f64(500)},
			{Name: "speed", Type: ParamNumber, Min: f64(0.1), Max: f64(30)},
		},
		func(params map[string]any) Runner {
			lat := params["lat"].(float64)
			lon := params["lon"].(float64)
			alt := params["alt"].(float64)
			speed := 0.0
			if v, ok := params["speed"].(float64); ok {
				speed = v
			}
			return runnerFunc(func(ctx context.Context, fc core.FlightController) error {
				return fc.Goto(ctx, lat, lon, alt, speed)
			})
		},
	)

	r.Register(
		Spec{Name: "rtl", Critical: true, Failsafe: FailsafeLand, MaxRetries: 1, TimeoutBehavior: TimeoutFailsafe},
		nil,
		func(map[string]any) Runner {
			return runnerFunc(func(ctx context.Context, fc core.FlightController) error {
				return fc.ReturnToLaunch(ctx)
			})
		},
	)

	r.Register(
		Spec{Name: "hold", Critical: false, MaxRetries: 0, TimeoutBehavior: TimeoutContinue},
		[]ParamSpec{
			{Name: "seconds", Type: ParamNumber, Required: true, Min: f64(0), Max: f64(3600)},
		},
		func(params map[string]any) Runner {
			seconds := params["seconds"].(float64)
			return runnerFunc(func(ctx context.Context, fc core.FlightController) error {
				timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timer.C:
					return nil
				}
			})
		},
	)

	r.Register(
		Spec{Name: "emergency_stop", Critical: true, Failsafe: FailsafeEmergencyStop, MaxRetries: 0, TimeoutBehavior: TimeoutContinue},
		nil,
		func(map[string]any) Runner {
			return runnerFunc(func(ctx context.Context, fc core.FlightController) error {
				return fc.Kill(ctx)
			})
		},
	)

	return r
}
