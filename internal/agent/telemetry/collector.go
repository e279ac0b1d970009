package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aerolink-io/aerolink/internal/agent/core"
	"github.com/aerolink-io/aerolink/internal/pkg/metrics"
	"github.com/aerolink-io/aerolink/pkg/log"
)

// Category identifies one telemetry acquisition loop.
type Category string

const (
	CategoryPosition   Category = "position"
	CategoryAttitude   Category = "attitude"
	CategoryBattery    Category = "battery"
	CategoryFlightMode Category = "flight_mode"
	CategoryGPS        Category = "gps"
	CategoryArmed      Category = "armed"
)

const (
	// maxFeedRetries is how many consecutive feed errors a collector
	// tolerates before stopping permanently for the session.
	maxFeedRetries = 3

	// maxBackoff caps the exponential resubscribe delay.
	maxBackoff = 10 * time.Second
)

// backoffUnit scales the exponential resubscribe delay. One second in
// production; tests shrink it.
var backoffUnit = time.Second

// StartCollectors launches one supervised acquisition loop per telemetry
// category, writing into store. All loops stop when ctx is cancelled; the
// returned WaitGroup is done once every loop has exited.
//
// Failure is isolated per category: a collector that exhausts its retries
// stops updating its field and nothing else.
func StartCollectors(ctx context.Context, fc core.FlightController, store *Store) *sync.WaitGroup {
	var wg sync.WaitGroup

	start := func(run func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run()
		}()
	}

	start(func() {
		collect(ctx, CategoryPosition, fc.SubscribePosition, func(p core.Position) {
			store.SetPosition(p)
			if _, set := store.Origin(); !set {
				o := core.Origin{Lat: p.Lat, Lon: p.Lon, Alt: p.AltMSL}
				if store.CalibrateOrigin(o) {
					log.Info("Origin calibrated", "lat", o.Lat, "lon", o.Lon, "alt", o.Alt)
				}
			}
		})
	})
	start(func() { collect(ctx, CategoryAttitude, fc.SubscribeAttitude, store.SetAttitude) })
	start(func() { collect(ctx, CategoryBattery, fc.SubscribeBattery, store.SetBattery) })
	start(func() { collect(ctx, CategoryFlightMode, fc.SubscribeFlightMode, store.SetFlightMode) })
	start(func() { collect(ctx, CategoryGPS, fc.SubscribeGPS, store.SetGPS) })
	start(func() { collect(ctx, CategoryArmed, fc.SubscribeArmed, store.SetArmed) })

	return &wg
}

// collect is the supervised loop for one category: subscribe, pump items into
// apply, and on a feed error back off exponentially (min(2^n, 10)s) before
// resubscribing. Context cancellation exits immediately and never consumes a
// retry. The loop never panics past itself into the caller.
func collect[T any](
	ctx context.Context,
	category Category,
	subscribe func(context.Context) (core.Stream[T], error),
	apply func(T),
) {
	logger := log.WithName("collector").WithValues("category", string(category))

	retries := 0
	for {
		if ctx.Err() != nil {
			logger.Debug("Collector cancelled")
			return
		}

		stream, err := subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("Collector cancelled during subscribe")
				return
			}
			retries++
			if retries >= maxFeedRetries {
				logger.Warn("Telemetry stream degraded, collector stopped for this session", "retries", retries, err)
				metrics.CollectorStoppedTotal.WithLabelValues(string(category)).Inc()
				return
			}
			if !sleepBackoff(ctx, retries) {
				return
			}
			metrics.CollectorRestartsTotal.WithLabelValues(string(category)).Inc()
			continue
		}

		err = pump(ctx, stream, func(item T) {
			apply(item)
			retries = 0
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Clean shutdown via disconnect.
			logger.Debug("Collector cancelled")
			return
		}

		retries++
		if retries >= maxFeedRetries {
			logger.Warn("Telemetry stream degraded, collector stopped for this session", "retries", retries, err)
			metrics.CollectorStoppedTotal.WithLabelValues(string(category)).Inc()
			return
		}

		logger.Warn("Telemetry feed error, resubscribing", "retries", retries, err)
		if !sleepBackoff(ctx, retries) {
			return
		}
		metrics.CollectorRestartsTotal.WithLabelValues(string(category)).Inc()
	}
}

// pump drains a stream until error or cancellation.
func pump[T any](ctx context.Context, stream core.Stream[T], apply func(T)) error {
	for {
		item, err := stream.Recv(ctx)
		if err != nil {
			return err
		}
		apply(item)
	}
}

// sleepBackoff waits min(2^n, 10) seconds, returning false if cancelled.
func sleepBackoff(ctx context.Context, n int) bool {
	delay := time.Duration(1<<uint(n)) * backoffUnit
	if delay > maxBackoff {
		delay = maxBackoff
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
