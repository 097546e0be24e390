// Package registry holds the explicit mapping from audited type names to the
// factories and loaders the revision builder needs. Types opt into auditing
// by registering at startup; nothing is discovered implicitly.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/retracehq/retrace/internal/models"
)

// Auditable is the capability every audited type implements. ApplyAttribute
// lets each concrete type decide its own attribute mapping: it returns false
// for attributes the type has no home for, which the revision builder skips
// silently (schema drift tolerance).
type Auditable interface {
	AuditableRef() models.EntityRef
	ApplyAttribute(name string, value json.RawMessage) bool
}

// Factory constructs a fresh, unsaved instance of an audited type.
type Factory func() Auditable

// Loader fetches the live instance by id, returning models.ErrEntityNotFound
// when no live row exists.
type Loader func(ctx context.Context, id string) (Auditable, error)

// Config is one audited type's registration.
type Config struct {
	New  Factory
	Find Loader
}

// Registry maps type names to their audit configuration. Safe for concurrent
// use; registration normally happens once at startup.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Config
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{types: make(map[string]Config)}
}

// Register adds an audited type. Registering the same name twice or an
// incomplete config is a wiring bug and returns an error.
func (r *Registry) Register(name string, cfg Config) error {
	if name == "" {
		return models.ErrMissingEntityType
	}

	if cfg.New == nil || cfg.Find == nil {
		return fmt.Errorf("registering %q: factory and loader are both required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return fmt.Errorf("type %q is already registered", name)
	}

	r.types[name] = cfg

	return nil
}

// Lookup returns the configuration for a type name.
func (r *Registry) Lookup(name string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.types[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", models.ErrUnknownType, name)
	}

	return cfg, nil
}

// Types returns the sorted set of registered audited type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
