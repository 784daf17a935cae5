package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Result describes one finished post-render run.
type Result struct {
	Entry    Entry[PostRender]
	Paths    []string
	Err      error
	Duration time.Duration
}

// ResultHook observes post-render results.
type ResultHook func(ctx context.Context, res Result)

// Manager runs post-render actions from a registry.
type Manager struct {
	registry *Registry
	hooks    []ResultHook
}

// NewManager creates a post-render manager over r.
func NewManager(r *Registry) *Manager {
	return &Manager{registry: r}
}

// AddHook registers a hook called after every post-render run.
func (m *Manager) AddHook(h ResultHook) {
	m.hooks = append(m.hooks, h)
}

// Defaults returns the available post-render entries selected by default.
func (m *Manager) Defaults() []Entry[PostRender] {
	var out []Entry[PostRender]
	for _, e := range m.registry.AvailablePostRenders() {
		if e.Plugin.Enabled() {
			out = append(out, e)
		}
	}
	return out
}

// Run executes the post-render named by key (an id or a label) on paths.
func (m *Manager) Run(ctx context.Context, key any, paths []string) error {
	e, ok := m.registry.PostRenders.Get(key)
	if !ok {
		return fmt.Errorf("post-render %v: %w", key, ErrNotFound)
	}
	if !e.Plugin.Available() {
		return fmt.Errorf("post-render %s: %w", e.Label(), ErrUnavailable)
	}
	return m.run(ctx, e, paths)
}

// RunAll executes every named post-render in the given order. A failing
// action is logged and does not stop the ones after it; all failures are
// returned joined.
func (m *Manager) RunAll(ctx context.Context, keys []any, paths []string) error {
	var errs []error
	for _, key := range keys {
		if err := m.Run(ctx, key, paths); err != nil {
			slog.Warn("post-render error", "post_render", key, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) run(ctx context.Context, e Entry[PostRender], paths []string) error {
	start := time.Now()
	err := e.Plugin.Execute(ctx, paths)
	res := Result{Entry: e, Paths: paths, Err: err, Duration: time.Since(start)}
	for _, h := range m.hooks {
		h(ctx, res)
	}
	if err != nil {
		return fmt.Errorf("post-render %s failed: %w", e.Label(), err)
	}
	return nil
}
