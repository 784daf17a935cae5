package plugin

import (
	"fmt"
	"log/slog"
	"sort"
)

// Base ids per family. Post-render ids start high so they never collide with
// host command ids assigned to the other families.
const (
	CollectorBaseID  = 0
	PresetBaseID     = 0
	PostRenderBaseID = 30001
)

// Registry owns one Family per capability.
type Registry struct {
	Collectors  *Family[ContextCollector]
	Presets     *Family[PathPreset]
	PostRenders *Family[PostRender]
}

// NewRegistry creates a registry with three empty families.
func NewRegistry() *Registry {
	return &Registry{
		Collectors:  NewFamily[ContextCollector]("collectors", CollectorBaseID),
		Presets:     NewFamily[PathPreset]("presets", PresetBaseID),
		PostRenders: NewFamily[PostRender]("post-renders", PostRenderBaseID),
	}
}

// Register adds p to every family whose capability it implements. It fails
// with a *RegistrationError when p implements none of them.
func (r *Registry) Register(p any) error {
	if p == nil {
		return &RegistrationError{Plugin: p, Reason: "plugin is nil"}
	}
	if !identifiable(p) {
		return &RegistrationError{Plugin: p, Reason: "plugin type is not comparable; register a pointer"}
	}

	registered := false
	if c, ok := p.(ContextCollector); ok {
		id := r.Collectors.Register(c)
		slog.Debug("plugin registered", "family", r.Collectors.Name(), "label", c.Label(), "id", id)
		registered = true
	}
	if ps, ok := p.(PathPreset); ok {
		id := r.Presets.Register(ps)
		slog.Debug("plugin registered", "family", r.Presets.Name(), "label", ps.Label(), "id", id)
		registered = true
	}
	if pr, ok := p.(PostRender); ok {
		id := r.PostRenders.Register(pr)
		slog.Debug("plugin registered", "family", r.PostRenders.Name(), "label", pr.Label(), "id", id)
		registered = true
	}
	if !registered {
		return &RegistrationError{
			Plugin: p,
			Reason: "plugins must implement ContextCollector, PathPreset or PostRender",
		}
	}
	return nil
}

// Unregister removes p from every family it belongs to.
func (r *Registry) Unregister(p any) error {
	if p == nil || !identifiable(p) {
		return &RegistrationError{Plugin: p, Reason: "plugin cannot be unregistered"}
	}

	known := false
	if c, ok := p.(ContextCollector); ok {
		r.Collectors.Unregister(c)
		known = true
	}
	if ps, ok := p.(PathPreset); ok {
		r.Presets.Unregister(ps)
		known = true
	}
	if pr, ok := p.(PostRender); ok {
		r.PostRenders.Unregister(pr)
		known = true
	}
	if !known {
		return &RegistrationError{
			Plugin: p,
			Reason: "plugins must implement ContextCollector, PathPreset or PostRender",
		}
	}
	return nil
}

// CollectContext runs every collector in order against path. The first
// collector error aborts the chain; no partial context is returned.
func (r *Registry) CollectContext(path string) (Context, error) {
	ctx := Context{}
	for _, e := range r.Collectors.List() {
		next, err := e.Plugin.Collect(path, ctx)
		if err != nil {
			return nil, fmt.Errorf("collector %s failed: %w", e.Label(), err)
		}
		ctx = next
	}
	return ctx, nil
}

// PresetPath collects the context for path and executes the preset named by
// key (an id or a label).
func (r *Registry) PresetPath(key any, path string) (Output, error) {
	e, ok := r.Presets.Get(key)
	if !ok {
		return Output{}, fmt.Errorf("preset %v: %w", key, ErrNotFound)
	}
	ctx, err := r.CollectContext(path)
	if err != nil {
		return Output{}, err
	}
	return e.Plugin.Execute(ctx)
}

// AvailablePostRenders returns the post-render entries whose Available
// reports true.
func (r *Registry) AvailablePostRenders() []Entry[PostRender] {
	var out []Entry[PostRender]
	for _, e := range r.PostRenders.List() {
		if e.Plugin.Available() {
			out = append(out, e)
		}
	}
	return out
}

// Factory creates a new instance of a plugin.
type Factory func() any

// factories is the catalog of compiled-in plugin implementations, keyed by the
// names plugin-description files use.
var factories = map[string]Factory{}

// RegisterFactory registers a plugin factory by name.
func RegisterFactory(name string, factory Factory) {
	factories[name] = factory
}

// GetFactory returns a plugin factory by name.
func GetFactory(name string) (Factory, bool) {
	f, ok := factories[name]
	return f, ok
}

// RegisteredFactories returns the names of all registered factories, sorted.
func RegisteredFactories() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the plugin registered under name and initializes it with
// config when it is Configurable.
func Build(name string, config map[string]interface{}) (any, error) {
	factory, ok := GetFactory(name)
	if !ok {
		return nil, &RegistrationError{Plugin: name, Reason: "no plugin factory named " + name}
	}
	p := factory()
	if c, ok := p.(Configurable); ok {
		if config == nil {
			config = map[string]interface{}{}
		}
		if err := c.Init(config); err != nil {
			return nil, fmt.Errorf("init plugin %s: %w", name, err)
		}
	}
	return p, nil
}
