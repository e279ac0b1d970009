package agent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aerolink-io/aerolink/internal/agent/command"
	"github.com/aerolink-io/aerolink/internal/agent/connection"
	"github.com/aerolink-io/aerolink/internal/agent/hal"
	"github.com/aerolink-io/aerolink/internal/agent/hub"
	"github.com/aerolink-io/aerolink/internal/agent/server"
	"github.com/aerolink-io/aerolink/internal/agent/telemetry"
	"github.com/aerolink-io/aerolink/pkg/log"
	"github.com/aerolink-io/aerolink/pkg/mqtt"
	mqtttopic "github.com/aerolink-io/aerolink/pkg/mqtt/topic"
)

// Agent wires the flight-controller link, command execution, and the two
// outward surfaces (MQTT uplink, local HTTP) into one runnable unit.
type Agent struct {
	cfg *Config

	conn     *connection.Manager
	registry *command.Registry
	executor *command.Executor
	hub      *hub.Hub
	server   *server.Server
}

// NewAgent assembles the agent from configuration. The MQTT uplink is
// optional: with an empty broker URL the agent runs link, commands, and the
// HTTP surface only.
func NewAgent(cfg *Config) (*Agent, error) {
	cfg.Complete()

	store := telemetry.NewStore()
	fc := hal.NewSim()
	conn := connection.NewManager(fc, store, cfg.Link.HandshakeTimeout, cfg.Link.PollInterval)

	registry := command.DefaultRegistry()
	if cfg.CommandSpecFile != "" {
		patches, err := command.LoadSpecFile(cfg.CommandSpecFile)
		if err != nil {
			return nil, err
		}
		registry.ApplyPatches(patches)
	}

	dispatcher := command.NewDispatcher(registry, conn)
	executor := command.NewExecutor(registry, conn, dispatcher)

	a := &Agent{
		cfg:      cfg,
		conn:     conn,
		registry: registry,
		executor: executor,
		server:   server.New(cfg.Http, cfg.DroneID, executor, conn),
	}

	if cfg.Mqtt.Broker != "" {
		topics := mqtttopic.NewBuilder(cfg.Mqtt.TopicRoot)

		clientCfg := cfg.Mqtt.ToClientConfig()
		if clientCfg.ClientID == "" {
			clientCfg.ClientID = "alink-" + cfg.DroneID
		}
		clientCfg.WillTopic = topics.Online(cfg.DroneID)
		clientCfg.WillPayload = []byte(`{"drone_id":"` + cfg.DroneID + `","online":false,"reason":"Connection lost"}`)
		clientCfg.WillQoS = 1
		clientCfg.WillRetain = true

		mc, err := mqtt.NewClient(clientCfg)
		if err != nil {
			return nil, err
		}
		a.hub = hub.New(cfg.DroneID, mc, topics, executor, conn)
	}

	return a, nil
}

// Run starts all subsystems and blocks until ctx is cancelled or one of
// them fails.
func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting alink-drone-agent",
		"droneID", a.cfg.DroneID,
		"version", a.cfg.Version,
		"link", a.cfg.Link.Address,
		"commands", a.registry.Names())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.maintainLink(ctx)
		return nil
	})

	if a.hub != nil {
		if err := a.hub.Start(ctx); err != nil {
			return err
		}
		defer a.hub.Stop()

		a.hub.PublishOnline(ctx, true, "")
		a.hub.PublishRegistration(ctx, hostStats(a.cfg.DroneID, a.cfg.Version, a.cfg.FirmwareVersion))

		g.Go(func() error {
			if err := a.hub.RunTelemetry(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return a.server.Run(ctx)
	})

	err := g.Wait()

	log.Info("Agent shutting down...")
	a.conn.Disconnect(context.Background())

	return err
}

// maintainLink keeps trying to establish the vehicle link until it succeeds
// or the agent shuts down. The uplink stays available throughout so the
// ground side can observe the disconnected state.
func (a *Agent) maintainLink(ctx context.Context) {
	for ctx.Err() == nil {
		if a.conn.Connect(ctx, a.cfg.Link.Address) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}
