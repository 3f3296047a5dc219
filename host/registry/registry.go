// Package registry maps event type tags to names and payload schemas.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/ports"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
	builtins   bool // Register NoOp and Hello
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true, // Secure default: prevent accidental overwrites
		builtins:   true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates). Disable only for testing or hot-reloading.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// WithBuiltins enables/disables registration of the built-in event types
// (0 NoOp, 1 Hello). Default is true.
func WithBuiltins(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.builtins = enabled
	}
}

type eventType struct {
	model  any
	name   string
	schema string
}

// Registry implements ports.EventTypeRegistry.
type Registry struct {
	types  map[uint32]eventType
	config registryConfig
	mu     sync.RWMutex
}

// NewRegistry creates a new Registry with the given options.
func NewRegistry(opts ...RegistryOption) ports.EventTypeRegistry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry{config: cfg, types: make(map[uint32]eventType)}
	if cfg.builtins {
		// Cannot fail on an empty registry.
		_ = r.Register(entities.EventNoOp, "NoOp", nil)
		_ = r.Register(entities.EventHello, "Hello", entities.HelloEvent{})
	}
	return r
}

// Register adds an event type. model, when non-nil, is reflected into a JSON
// Schema describing the payload.
func (r *Registry) Register(tag uint32, name string, model any) error {
	if name == "" {
		return fmt.Errorf("event type %d: name cannot be empty", tag)
	}

	et := eventType{name: name, model: model}
	if model != nil {
		s := jsonschema.Reflect(model)
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal schema for %s: %w", name, err)
		}
		et.schema = string(data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config.strictMode {
		if existing, exists := r.types[tag]; exists {
			return fmt.Errorf("event type %d already registered as %q", tag, existing.name)
		}
	}
	r.types[tag] = et
	return nil
}

// Known reports whether tag is registered.
func (r *Registry) Known(tag uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[tag]
	return ok
}

// Name returns the registered name of tag.
func (r *Registry) Name(tag uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.types[tag]
	return et.name, ok
}

// GetSchema retrieves the JSON Schema of tag's payload model.
func (r *Registry) GetSchema(tag uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.types[tag]
	if !ok || et.schema == "" {
		return "", false
	}
	return et.schema, true
}

// List returns all registered tags, ascending.
func (r *Registry) List() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]uint32, 0, len(r.types))
	for tag := range r.types {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
