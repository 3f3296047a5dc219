// Package config loads and validates the host's YAML configuration.
package config

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
)

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config is the host configuration file.
type Config struct {
	// StepSeconds is the fixed delta-time handed to every module per tick.
	StepSeconds float64 `yaml:"step_seconds" json:"step_seconds" validate:"gt=0,lte=1"`

	// TickRate paces Run in ticks per second. Zero runs unpaced.
	TickRate float64 `yaml:"tick_rate" json:"tick_rate" validate:"gte=0"`

	// Workers bounds parallel dispatch within a tick.
	Workers int `yaml:"workers" json:"workers" validate:"gte=1,lte=256"`

	// MaxMemoryPages caps each module's linear memory. Zero keeps the engine default.
	MaxMemoryPages uint32 `yaml:"max_memory_pages" json:"max_memory_pages" validate:"lte=65536"`

	Namespace     string `yaml:"namespace" json:"namespace" validate:"required"`
	ABIConstraint string `yaml:"abi_constraint" json:"abi_constraint" validate:"required"`

	// StrictEventTypes makes emit_event abort on unregistered type tags.
	StrictEventTypes bool `yaml:"strict_event_types" json:"strict_event_types"`

	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`

	// EventTypes registers guest-defined event tags alongside the built-ins.
	EventTypes []EventType `yaml:"event_types,omitempty" json:"event_types,omitempty" validate:"dive"`

	Modules []Module `yaml:"modules,omitempty" json:"modules,omitempty" validate:"dive"`
}

// EventType names one guest-defined event tag.
type EventType struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	Tag  uint32 `yaml:"tag" json:"tag"`
}

// Module names one guest binary and the capabilities granted to it.
type Module struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Path string `yaml:"path" json:"path" validate:"required"`

	// Grants lists capability names or glob patterns such as "log_*".
	Grants []string `yaml:"grants,omitempty" json:"grants,omitempty" validate:"dive,required"`

	// Priority orders dispatch; lower runs first.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Default returns the configuration used when a file omits a field.
func Default() *Config {
	return &Config{
		StepSeconds:      1.0 / 60.0,
		Workers:          1,
		Namespace:        abi.Namespace,
		ABIConstraint:    abi.DefaultConstraint,
		StrictEventTypes: true,
		LogLevel:         "info",
	}
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stdErrors.Is(err, io.EOF) {
		return nil, &errors.ConfigError{Err: fmt.Errorf("decode: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Validate checks field constraints and cross-field rules. Failures are returned
// as *errors.ConfigError naming the offending field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if stdErrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &errors.ConfigError{
				Field: strings.TrimPrefix(fe.Namespace(), "Config."),
				Err:   fmt.Errorf("failed on %q", fe.Tag()),
			}
		}
		return &errors.ConfigError{Err: err}
	}

	constraint, err := semver.NewConstraint(c.ABIConstraint)
	if err != nil {
		return &errors.ConfigError{Field: "abi_constraint", Err: err}
	}
	if !constraint.Check(semver.MustParse(abi.Version)) {
		return &errors.ConfigError{
			Field: "abi_constraint",
			Err:   fmt.Errorf("%q excludes host ABI %s", c.ABIConstraint, abi.Version),
		}
	}

	seen := make(map[string]struct{}, len(c.Modules))
	for i, m := range c.Modules {
		if _, dup := seen[m.ID]; dup {
			return &errors.ConfigError{
				Field: fmt.Sprintf("modules[%d].id", i),
				Err:   fmt.Errorf("duplicate module id %q", m.ID),
			}
		}
		seen[m.ID] = struct{}{}

		for j, g := range m.Grants {
			if !doublestar.ValidatePattern(g) {
				return &errors.ConfigError{
					Field: fmt.Sprintf("modules[%d].grants[%d]", i, j),
					Err:   fmt.Errorf("invalid grant pattern %q", g),
				}
			}
		}
	}
	return nil
}

// Step returns StepSeconds as a delta-time.
func (c *Config) Step() float32 {
	return float32(c.StepSeconds)
}

// Descriptors reads every configured module binary. Relative paths resolve
// against baseDir; grant patterns expand against capabilities.
func (c *Config) Descriptors(baseDir string, capabilities []string) ([]entities.ModuleDescriptor, error) {
	descs := make([]entities.ModuleDescriptor, 0, len(c.Modules))
	for _, m := range c.Modules {
		path := m.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		bin, err := os.ReadFile(path) //nolint:gosec // G304: configured module path
		if err != nil {
			return nil, fmt.Errorf("read module %q: %w", m.ID, err)
		}
		descs = append(descs, entities.ModuleDescriptor{
			ID:     m.ID,
			Binary: bin,
			Grants: ExpandGrants(m.Grants, capabilities),
		})
	}
	return descs, nil
}

// ExpandGrants resolves grant patterns against capability names. Plain names are
// kept as written so the loader can report them; patterns contribute every
// capability they match. The result is de-duplicated in first-seen order.
func ExpandGrants(patterns, capabilities []string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[{\\") {
			add(p)
			continue
		}
		for _, name := range capabilities {
			if ok, err := doublestar.Match(p, name); err == nil && ok {
				add(name)
			}
		}
	}
	return out
}

// Priorities maps module ids to their configured dispatch priority.
func (c *Config) Priorities() map[string]int {
	out := make(map[string]int, len(c.Modules))
	for _, m := range c.Modules {
		out[m.ID] = m.Priority
	}
	return out
}

// Schema returns the JSON schema (Draft 2020-12) of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Config{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return out, nil
}
