package core

import (
	"context"
)

// Stream delivers telemetry items of one category from the vehicle link.
// Recv blocks until the next item, the feed fails, or ctx is cancelled.
// A cancelled ctx surfaces as ctx.Err(), which callers must treat as a clean
// shutdown rather than a feed failure.
type Stream[T any] interface {
	Recv(ctx context.Context) (T, error)
}

// FlightController is the driven port toward the vehicle-control library.
// Flight operations are atomic from the agent's point of view: each call
// returns once the vehicle reports completion (e.g. Takeoff returns when the
// target altitude is reached) or with the underlying failure.
type FlightController interface {
	// Connect initiates the link handshake toward address. It returns
	// immediately; the caller polls Connected until the handshake finishes
	// or its own deadline expires.
	Connect(address string) error

	// Connected reports whether the link handshake has completed.
	Connected() bool

	// Disconnect tears down the link. Idempotent.
	Disconnect(ctx context.Context) error

	// Arm spins up the motors.
	Arm(ctx context.Context) error

	// Takeoff climbs to the given relative altitude in meters and returns
	// once it is reached.
	Takeoff(ctx context.Context, altitude float64) error

	// Land descends and disarms at the current position.
	Land(ctx context.Context) error

	// Goto flies to the given global position. A speed of 0 keeps the
	// vehicle's default cruise speed.
	Goto(ctx context.Context, lat, lon, alt, speed float64) error

	// ReturnToLaunch flies back to the launch point and lands.
	ReturnToLaunch(ctx context.Context) error

	// Kill cuts the motors immediately. Last-resort action; implementations
	// must make this succeed whenever the link is up at all.
	Kill(ctx context.Context) error

	// Telemetry feeds, one independent stream per category.
	SubscribePosition(ctx context.Context) (Stream[Position], error)
	SubscribeAttitude(ctx context.Context) (Stream[Attitude], error)
	SubscribeBattery(ctx context.Context) (Stream[Battery], error)
	SubscribeFlightMode(ctx context.Context) (Stream[string], error)
	SubscribeGPS(ctx context.Context) (Stream[GPSInfo], error)
	SubscribeArmed(ctx context.Context) (Stream[bool], error)
}
