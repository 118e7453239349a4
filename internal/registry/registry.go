package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/specialistvlad/imageburst/internal/transport"
)

// Module is the interface that all transport modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Factory builds a Dialer for the given configuration.
type Factory func(cfg transport.Config, logger *slog.Logger) transport.Dialer

// Registry holds all the registered transport factories for a single
// application instance.
type Registry struct {
	transports map[string]Factory
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		transports: make(map[string]Factory),
	}
}

// RegisterTransport registers a factory under name. Registering the same
// name twice is a programmer error and panics.
func (r *Registry) RegisterTransport(name string, factory Factory) {
	if _, exists := r.transports[name]; exists {
		panic(fmt.Sprintf("transport with name '%s' already registered", name))
	}
	slog.Debug("Registering transport.", "name", name)
	r.transports[name] = factory
}

// Names returns the registered transport names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports whether name refers to a registered transport.
func (r *Registry) Validate(name string) error {
	if _, ok := r.transports[name]; !ok {
		return fmt.Errorf("unknown transport %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return nil
}

// Dialer builds the dialer registered under name.
func (r *Registry) Dialer(name string, cfg transport.Config, logger *slog.Logger) (transport.Dialer, error) {
	if err := r.Validate(name); err != nil {
		return nil, err
	}
	return r.transports[name](cfg, logger), nil
}
