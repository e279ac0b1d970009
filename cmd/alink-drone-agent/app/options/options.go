package options

import (
	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/aerolink-io/aerolink/internal/agent"
	"github.com/aerolink-io/aerolink/pkg/app"
	"github.com/aerolink-io/aerolink/pkg/log"
	"github.com/aerolink-io/aerolink/pkg/options"
)

type AgentOptions struct {
	// DroneID identifies the vehicle; derived from the hostname when empty.
	DroneID string `json:"drone-id" mapstructure:"drone-id"`

	// FirmwareVersion reported on registration.
	FirmwareVersion string `json:"firmware-version" mapstructure:"firmware-version"`

	// CommandSpecFile optionally overrides per-command execution policy.
	CommandSpecFile string `json:"command-spec-file" mapstructure:"command-spec-file"`

	LinkOptions *options.LinkOptions `json:"link" mapstructure:"link"`
	MqttOptions *options.MqttOptions `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions *options.HttpOptions `json:"http" mapstructure:"http"`
	Log         *log.Options         `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*AgentOptions)(nil)

func NewAgentOptions() *AgentOptions {
	o := &AgentOptions{
		LinkOptions: options.NewLinkOptions(),
		MqttOptions: options.NewMqttOptions(),
		HttpOptions: options.NewHttpOptions(),
		Log:         log.NewOptions(),
	}

	return o
}

func (o *AgentOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.addAgentFlags(fss.FlagSet("agent"))
	o.LinkOptions.AddFlags(fss.FlagSet("link"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *AgentOptions) addAgentFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.DroneID, "drone-id", o.DroneID, "Vehicle identifier used on all topics and payloads.")
	fs.StringVar(&o.FirmwareVersion, "firmware-version", o.FirmwareVersion, "Flight stack version reported on registration.")
	fs.StringVar(&o.CommandSpecFile, "command-spec-file", o.CommandSpecFile, "YAML file overriding per-command execution policy.")
}

func (o *AgentOptions) Complete() error {
	return nil
}

func (o *AgentOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.LinkOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *AgentOptions) Config(version string) (*agent.Config, error) {
	return &agent.Config{
		DroneID:         o.DroneID,
		Version:         version,
		FirmwareVersion: o.FirmwareVersion,
		CommandSpecFile: o.CommandSpecFile,
		Link:            o.LinkOptions,
		Mqtt:            o.MqttOptions,
		Http:            o.HttpOptions,
	}, nil
}
