package topic

import (
	"fmt"
)

// Constants defining the standard topic segments.
// These act as the protocol contract between the ground side and the drone
// agent. Changing these values breaks compatibility with deployed agents.
const (
	// SuffixCommand is the downstream command-batch topic (Ground -> Drone).
	// Structure: {root}/command/{droneID}
	SuffixCommand = "command"

	// SuffixCommandAck is the upstream batch-result topic (Drone -> Ground).
	// Keeping it under 'command/ack' preserves logical grouping.
	// Structure: {root}/command/ack/{droneID}
	SuffixCommandAck = "command/ack"

	// SuffixTelemetry is the upstream telemetry snapshot topic (Drone -> Ground).
	// Structure: {root}/telemetry/{droneID}
	SuffixTelemetry = "telemetry"

	// SuffixOnline is the upstream online/offline status topic (Drone -> Ground).
	// Published retained; also used as the last-will topic.
	// Structure: {root}/online/{droneID}
	SuffixOnline = "online"

	// SuffixRegister is the upstream agent registration topic (Drone -> Ground).
	// Structure: {root}/register/{droneID}
	SuffixRegister = "register"
)

// Builder encapsulates the logic for constructing MQTT topic strings.
type Builder struct {
	// root is the base namespace for all topics (e.g., "uav/v1").
	root string
}

// NewBuilder creates a new Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Command returns the topic for command batches sent to a specific drone.
// Direction: Ground -> Drone
func (b *Builder) Command(droneID string) string {
	return b.Build(SuffixCommand, droneID)
}

// CommandAck returns the topic a drone uses to report batch results.
// Direction: Drone -> Ground
func (b *Builder) CommandAck(droneID string) string {
	return b.Build(SuffixCommandAck, droneID)
}

// Telemetry returns the topic a drone publishes state snapshots on.
// Direction: Drone -> Ground
func (b *Builder) Telemetry(droneID string) string {
	return b.Build(SuffixTelemetry, droneID)
}

// Online returns the retained online-status topic for a drone.
// Direction: Drone -> Ground
func (b *Builder) Online(droneID string) string {
	return b.Build(SuffixOnline, droneID)
}

// Register returns the topic a drone registers itself on.
// Direction: Drone -> Ground
func (b *Builder) Register(droneID string) string {
	return b.Build(SuffixRegister, droneID)
}

// Build constructs the final topic string.
// Pattern: {root}/{suffix}/{identifier}
func (b *Builder) Build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
