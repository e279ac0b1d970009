package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/aerolink-io/aerolink/pkg/log"
)

// RunFunc defines the application's startup callback function.
type RunFunc func() error

// NamedFlagSetOptions abstracts an options aggregate that exposes grouped
// flag sets plus completion and validation hooks.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section for the --help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in any fields not set explicitly.
	Complete() error

	// Validate checks the options and returns an aggregate error if invalid.
	Validate() error
}

// App is the main structure of a cli application.
type App struct {
	name        string
	shortDesc   string
	description string

	options NamedFlagSetOptions
	runFunc RunFunc

	cmd *cobra.Command
}

// Option defines optional parameters for initializing the application structure.
type Option func(*App)

// WithDescription is used to set the description of the application.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithOptions opens the application's function to read from the command line
// or read parameters from a configuration file.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc is used to set the application startup callback function option.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDefaultValidArgs rejects any non-flag arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		// Applied in buildCommand.
	}
}

// NewApp creates a new application instance.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{
		name:      name,
		shortDesc: shortDesc,
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

var configFile string

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.shortDesc,
		Long:         a.description,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run()
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	if a.options != nil {
		for _, fs := range a.options.Flags().FlagSets {
			cmd.Flags().AddFlagSet(fs)
		}
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		fmt.Sprintf("Read configuration from the specified file (overridden by flags). Defaults to %s.yaml search.", a.name))

	a.cmd = cmd
}

// Command returns the underlying cobra command, for composing subcommands.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run launches the application.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *App) run() error {
	if a.options != nil {
		if err := a.loadConfig(); err != nil {
			return err
		}

		if err := a.options.Complete(); err != nil {
			return err
		}

		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc != nil {
		return a.runFunc()
	}

	return nil
}

// loadConfig merges an optional config file into the options aggregate.
// Flags set explicitly on the command line keep precedence: they are replayed
// into viper's override layer, which outranks the file, before unmarshalling.
// Flag names mirror the config key paths ("mqtt.broker" both places), so the
// replay needs no translation.
func (a *App) loadConfig() error {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(a.name)
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("/etc/%s", a.name))
	}

	v.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(a.name), "-", "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// No config file is fine; flags and defaults apply.
			return nil
		}
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	log.Debug("Loaded configuration file", "file", v.ConfigFileUsed())

	a.cmd.Flags().Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.Set(f.Name, sv.GetSlice())
			return
		}
		v.Set(f.Name, f.Value.String())
	})

	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return nil
}
