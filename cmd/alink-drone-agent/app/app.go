package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aerolink-io/aerolink/cmd/alink-drone-agent/app/options"
	"github.com/aerolink-io/aerolink/internal/agent"
	"github.com/aerolink-io/aerolink/pkg/app"
	"github.com/aerolink-io/aerolink/pkg/log"
)

const (
	commandName = "alink-drone-agent"
	commandDesc = `The AeroLink drone agent runs on the vehicle's companion computer. It keeps
the flight-controller link alive, mirrors telemetry for the ground side, and
executes command batches with per-command retry and failsafe policy.`
)

// version is injected at build time via -ldflags.
var version = "dev"

func NewApp() *app.App {
	opts := options.NewAgentOptions()
	application := app.NewApp(
		commandName,
		"Launch the AeroLink drone agent",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.AgentOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := opts.Config(version)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		a, err := agent.NewAgent(cfg)
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		return a.Run(ctx)
	}
}
