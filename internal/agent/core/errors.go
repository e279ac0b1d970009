package core

import "errors"

var (
	// ErrNotConnected is returned by link operations when no handshake has
	// completed.
	ErrNotConnected = errors.New("vehicle link not connected")

	// ErrFeedClosed is returned by Stream.Recv when the underlying feed has
	// ended on the vehicle side. Distinct from context cancellation.
	ErrFeedClosed = errors.New("telemetry feed closed")
)
