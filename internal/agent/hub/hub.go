package hub

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/time/rate"

	"github.com/aerolink-io/aerolink/internal/agent/command"
	"github.com/aerolink-io/aerolink/internal/agent/telemetry"
	"github.com/aerolink-io/aerolink/pkg/log"
	"github.com/aerolink-io/aerolink/pkg/mqtt"
	mqtttopic "github.com/aerolink-io/aerolink/pkg/mqtt/topic"
)

// SequenceExecutor is the slice of the executor the hub needs.
type SequenceExecutor interface {
	ExecuteSequence(ctx context.Context, commands []command.Command) command.SequenceResult
}

// TelemetryProvider is the slice of the connection manager the hub needs.
type TelemetryProvider interface {
	Telemetry() telemetry.State
}

// BatchRequest is the wire envelope for a submitted command batch.
type BatchRequest struct {
	Commands  []command.Command `json:"commands"`
	QueueMode string            `json:"queue_mode,omitempty"`
}

// OnlineStatus is the retained online-flag payload; also the last-will body.
type OnlineStatus struct {
	DroneID string `json:"drone_id"`
	Online  bool   `json:"online"`
	Reason  string `json:"reason,omitempty"`
}

// Registration is the identity packet sent once on startup.
type Registration struct {
	DroneID         string  `json:"drone_id"`
	AgentVersion    string  `json:"agent_version"`
	FirmwareVersion string  `json:"firmware_version"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	UptimeSeconds   uint64  `json:"uptime_seconds"`
	Timestamp       int64   `json:"timestamp"`
}

// Hub is the MQTT uplink: it receives command batches from the ground side
// and publishes results, telemetry snapshots, and status.
type Hub struct {
	droneID string

	mc     mqtt.Client
	topics *mqtttopic.Builder

	executor SequenceExecutor
	conn     TelemetryProvider

	// limiter caps telemetry publishes so ad-hoc snapshots after batches
	// cannot flood the broker on a constrained link.
	limiter *rate.Limiter

	// TelemetryInterval is the periodic snapshot publish period.
	TelemetryInterval time.Duration
}

// New builds a Hub.
func New(droneID string, client mqtt.Client, topics *mqtttopic.Builder, executor SequenceExecutor, conn TelemetryProvider) *Hub {
	return &Hub{
		droneID:           droneID,
		mc:                client,
		topics:            topics,
		executor:          executor,
		conn:              conn,
		limiter:           rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
		TelemetryInterval: time.Second,
	}
}

// Start connects the client, waits for the broker, and subscribes to the
// command topic.
func (h *Hub) Start(ctx context.Context) error {
	if err := h.mc.Start(ctx); err != nil {
		return err
	}
	if err := h.mc.AwaitConnection(ctx); err != nil {
		return err
	}

	return h.mc.Subscribe(ctx, h.topics.Command(h.droneID), 1, h.handleBatch)
}

// Stop disconnects the MQTT client, publishing the offline flag first so the
// retained status flips even on a clean shutdown (the last will only covers
// unclean ones).
func (h *Hub) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.PublishOnline(ctx, false, "Shutdown")
	log.Info("Disconnecting MQTT client...")
	h.mc.Disconnect(ctx)
}

// RunTelemetry publishes state snapshots periodically until ctx is cancelled.
func (h *Hub) RunTelemetry(ctx context.Context) error {
	ticker := time.NewTicker(h.TelemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.PublishTelemetry(ctx)
		}
	}
}

// PublishTelemetry sends one snapshot, subject to the rate limit.
func (h *Hub) PublishTelemetry(ctx context.Context) {
	if !h.limiter.Allow() {
		return
	}

	payload, err := json.Marshal(h.conn.Telemetry())
	if err != nil {
		log.Error(err, "Failed to encode telemetry snapshot")
		return
	}
	if err := h.mc.Publish(ctx, h.topics.Telemetry(h.droneID), 0, false, payload); err != nil {
		log.Error(err, "Failed to publish telemetry")
	}
}

// PublishOnline sends the retained online flag.
func (h *Hub) PublishOnline(ctx context.Context, online bool, reason string) {
	payload, _ := json.Marshal(OnlineStatus{DroneID: h.droneID, Online: online, Reason: reason})
	if err := h.mc.Publish(ctx, h.topics.Online(h.droneID), 1, true, payload); err != nil {
		log.Error(err, "Failed to publish online status", "online", online)
	}
}

// PublishRegistration sends the identity packet.
func (h *Hub) PublishRegistration(ctx context.Context, reg Registration) {
	payload, err := json.Marshal(reg)
	if err != nil {
		log.Error(err, "Failed to encode registration")
		return
	}
	if err := h.mc.Publish(ctx, h.topics.Register(h.droneID), 1, false, payload); err != nil {
		log.Error(err, "Failed to publish registration")
	}
}

// handleBatch decodes one command batch, runs it, and publishes the results.
func (h *Hub) handleBatch(ctx context.Context, topic string, payload []byte) {
	var req BatchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Error(err, "Dropping malformed command batch", "topic", topic)
		return
	}

	log.Info("Command batch received", "commands", len(req.Commands), "queueMode", req.QueueMode)

	result := h.executor.ExecuteSequence(ctx, req.Commands)

	ack, err := json.Marshal(result)
	if err != nil {
		log.Error(err, "Failed to encode batch result", "sequenceID", result.SequenceID)
		return
	}
	if err := h.mc.Publish(ctx, h.topics.CommandAck(h.droneID), 1, false, ack); err != nil {
		log.Error(err, "Failed to publish batch result", "sequenceID", result.SequenceID)
	}

	// Push a fresh snapshot so the ground sees the post-batch state promptly.
	h.PublishTelemetry(ctx)
}
