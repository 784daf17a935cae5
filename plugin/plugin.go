// Package plugin defines the capability interfaces review4d is extended
// through and the registry that orders and identifies them.
//
// There are three capability families: context collectors derive a Context
// from a document path, path presets turn a Context into an output path, and
// post-render actions run once a preview render has finished. Each family
// lives in its own Family with an isolated id space.
//
// Built-in plugins live in the internal/plugins/* packages and are made
// available by importing them with a blank import (e.g.
// _ "github.com/ferro-labs/review4d/internal/plugins/folders"); they register
// a Factory by name which plugin-description files refer to.
package plugin

import (
	"context"
	"errors"
	"fmt"
)

// Plugin is the metadata every capability shares.
type Plugin interface {
	// Label is the human-readable name used for lookups and listings.
	Label() string
	// Order is the sort key inside a family; lower sorts first.
	Order() int
}

// ContextCollector extracts context from a document path. Collect receives
// the context built by the collectors before it and returns the context for
// the collectors after it.
type ContextCollector interface {
	Plugin
	Collect(path string, ctx Context) (Context, error)
}

// PathPreset generates an output path for a preview render.
type PathPreset interface {
	Plugin
	Execute(ctx Context) (Output, error)
}

// PostRender runs after a preview render completes.
type PostRender interface {
	Plugin
	// Enabled reports whether the action is selected by default.
	Enabled() bool
	// Available reports whether the action can run in this environment.
	Available() bool
	Execute(ctx context.Context, renderPaths []string) error
}

// Configurable is implemented by plugins that accept options from a
// plugin-description file.
type Configurable interface {
	Init(config map[string]interface{}) error
}

// Context holds the keys and values extracted from a document path.
type Context map[string]string

// Clone returns a copy of c.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Output is the result of a PathPreset: either a produced path or a decline.
type Output struct {
	path     string
	produced bool
}

// Produced returns an Output carrying path.
func Produced(path string) Output {
	return Output{path: path, produced: true}
}

// Declined returns an Output signalling that the preset produced no path and
// the user should choose one manually.
func Declined() Output {
	return Output{}
}

// Path returns the produced path and whether one was produced.
func (o Output) Path() (string, bool) {
	return o.path, o.produced
}

// IsDeclined reports whether the preset declined to produce a path.
func (o Output) IsDeclined() bool {
	return !o.produced
}

func (o Output) String() string {
	if !o.produced {
		return "<declined>"
	}
	return o.path
}

// Lookup errors.
var (
	ErrNotFound    = errors.New("plugin not found")
	ErrUnavailable = errors.New("plugin not available")
)

// RegistrationError is returned when a value cannot be registered into any
// family.
type RegistrationError struct {
	Plugin any
	Reason string
}

func (e *RegistrationError) Error() string {
	if name, ok := e.Plugin.(string); ok {
		return fmt.Sprintf("failed to register %q: %s", name, e.Reason)
	}
	return fmt.Sprintf("failed to register %T: %s", e.Plugin, e.Reason)
}

// PresetError is returned by a PathPreset that could not produce a path,
// typically because the context lacks a key it needs. It is meant to be shown
// to the user rather than treated as fatal.
type PresetError struct {
	Preset string
	Reason string
}

func (e *PresetError) Error() string {
	return fmt.Sprintf("preset %q: %s", e.Preset, e.Reason)
}

// Meta is an embeddable implementation of Plugin for fixed label and order.
type Meta struct {
	Name string
	Rank int
}

// Label returns the plugin label.
func (m Meta) Label() string { return m.Name }

// Order returns the plugin sort key.
func (m Meta) Order() int { return m.Rank }

// Describe formats a plugin the way listings print it.
func Describe(id int, p Plugin) string {
	return fmt.Sprintf("<%T:%s:%d>", p, p.Label(), id)
}
