package agent

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/aerolink-io/aerolink/pkg/options"
)

// Config carries everything the agent needs to run. It is assembled by the
// command-line layer from flags, environment, and the optional config file.
type Config struct {
	// DroneID identifies this vehicle on every topic and payload. When empty
	// it is derived from the hostname, falling back to a random ID.
	DroneID string

	// Version is the agent build version reported on registration.
	Version string

	// FirmwareVersion is the flight stack version reported on registration.
	FirmwareVersion string

	// CommandSpecFile optionally overrides per-command execution policy
	// (criticality, failsafe action, retries) from a YAML file.
	CommandSpecFile string

	Link *options.LinkOptions
	Mqtt *options.MqttOptions
	Http *options.HttpOptions
}

// Complete fills in derived defaults.
func (c *Config) Complete() {
	if c.DroneID == "" {
		if name, err := os.Hostname(); err == nil && name != "" {
			c.DroneID = name
		} else {
			c.DroneID = fmt.Sprintf("drone-%s", uuid.NewString()[:8])
		}
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.FirmwareVersion == "" {
		c.FirmwareVersion = "unknown"
	}
}
