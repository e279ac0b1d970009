package command

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/aerolink-io/aerolink/internal/agent/core"
	"github.com/aerolink-io/aerolink/pkg/log"
)

// ErrUnknownCommand is returned when a command name is not registered.
var ErrUnknownCommand = errors.New("unknown command")

// Runner is one executable command instance. A fresh Runner is constructed
// for every attempt so no retry observes mutated state.
type Runner interface {
	// Run executes the command against the vehicle and blocks until the
	// vehicle reports completion or failure.
	Run(ctx context.Context, fc core.FlightController) error
}

// Factory builds a Runner from already-validated parameters.
type Factory func(params map[string]any) Runner

// ParamType is the accepted type of one schema parameter.
type ParamType string

const (
	ParamNumber ParamType = "number"
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
)

// ParamSpec describes one parameter of a command's schema.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool

	// Min/Max bound number parameters when non-nil.
	Min *float64
	Max *float64
}

type entry struct {
	spec    Spec
	schema  []ParamSpec
	factory Factory
}

// Registry maps command names to their schema, criticality metadata, and an
// executable-instance factory. Process lifetime; read-only after load.
type Registry struct {
	entries map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds one command definition. A critical spec without a failsafe
// action is a configuration defect: it is flagged loudly and defaulted to
// land rather than silently ignored.
func (r *Registry) Register(spec Spec, schema []ParamSpec, factory Factory) {
	if spec.Critical && spec.Failsafe == "" {
		log.Warn("Critical command registered without a failsafe action, defaulting to land", "command", spec.Name)
		spec.Failsafe = FailsafeLand
	}
	if spec.TimeoutBehavior == "" {
		spec.TimeoutBehavior = TimeoutContinue
	}
	r.entries[spec.Name] = &entry{spec: spec, schema: schema, factory: factory}
}

// Spec returns the metadata for name.
func (r *Registry) Spec(name string) (Spec, error) {
	e, ok := r.entries[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return e.spec, nil
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New validates params against the command's schema and constructs a fresh
// executable instance. Invalid parameters yield a *ValidationError naming
// every offending field.
func (r *Registry) New(name string, params map[string]any) (Runner, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	normalized, bad := validateParams(e.schema, params)
	if len(bad) > 0 {
		return nil, &ValidationError{Command: name, Fields: bad}
	}

	return e.factory(normalized), nil
}

// validateParams type-checks and range-checks params against schema,
// returning coerced values and the list of offending parameter names.
// Unknown parameters are rejected so typos fail fast instead of being
// silently dropped.
func validateParams(schema []ParamSpec, params map[string]any) (map[string]any, []string) {
	normalized := make(map[string]any, len(params))
	var bad []string

	known := make(map[string]bool, len(schema))
	for _, p := range schema {
		known[p.Name] = true

		raw, present := params[p.Name]
		if !present {
			if p.Required {
				bad = append(bad, p.Name)
			}
			continue
		}

		switch p.Type {
		case ParamNumber:
			v, err := cast.ToFloat64E(raw)
			if err != nil {
				bad = append(bad, p.Name)
				continue
			}
			if p.Min != nil && v < *p.Min {
				bad = append(bad, p.Name)
				continue
			}
			if p.Max != nil && v > *p.Max {
				bad = append(bad, p.Name)
				continue
			}
			normalized[p.Name] = v
		case ParamString:
			v, err := cast.ToStringE(raw)
			if err != nil {
				bad = append(bad, p.Name)
				continue
			}
			normalized[p.Name] = v
		case ParamBool:
			v, err := cast.ToBoolE(raw)
			if err != nil {
				bad = append(bad, p.Name)
				continue
			}
			normalized[p.Name] = v
		default:
			bad = append(bad, p.Name)
		}
	}

	for name := range params {
		if !known[name] {
			bad = append(bad, name)
		}
	}

	sort.Strings(bad)
	return normalized, bad
}

// SpecPatch is a partial override of one command's registry metadata, as
// parsed from the declarative definitions file.
type SpecPatch struct {
	Critical        *bool            `mapstructure:"critical"`
	Failsafe        *FailsafeAction  `mapstructure:"failsafe"`
	MaxRetries      *int             `mapstructure:"max_retries"`
	TimeoutBehavior *TimeoutBehavior `mapstructure:"timeout_behavior"`
}

// LoadSpecFile reads per-command definitions from a YAML file:
//
//	commands:
//	  takeoff:
//	    critical: true
//	    failsafe: land
//	    max_retries: 2
//	    timeout_behavior: failsafe
func LoadSpecFile(path string) (map[string]SpecPatch, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read command definitions: %w", err)
	}

	patches := make(map[string]SpecPatch)
	if err := v.UnmarshalKey("commands", &patches); err != nil {
		return nil, fmt.Errorf("failed to parse command definitions: %w", err)
	}
	return patches, nil
}

// ApplyPatches overlays declarative spec overrides onto registered commands.
// Unknown names are flagged rather than silently created: a patch without an
// implementation cannot execute.
func (r *Registry) ApplyPatches(patches map[string]SpecPatch) {
	for name, p := range patches {
		e, ok := r.entries[name]
		if !ok {
			log.Warn("Command definition for unregistered command ignored", "command", name)
			continue
		}
		if p.Critical != nil {
			e.spec.Critical = *p.Critical
		}
		if p.Failsafe != nil {
			e.spec.Failsafe = *p.Failsafe
		}
		if p.MaxRetries != nil && *p.MaxRetries >= 0 {
			e.spec.MaxRetries = *p.MaxRetries
		}
		if p.TimeoutBehavior != nil {
			e.spec.TimeoutBehavior = *p.TimeoutBehavior
		}
		if e.spec.Critical && e.spec.Failsafe == "" {
			log.Warn("Critical command configured without a failsafe action, defaulting to land", "command", name)
			e.spec.Failsafe = FailsafeLand
		}
	}
}
