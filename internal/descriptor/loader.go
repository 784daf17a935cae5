package descriptor

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ferro-labs/review4d/plugin"
)

// ConfigName is the name inline plugins from the config file are reported
// under.
const ConfigName = "<config>"

// Registrar receives built plugins. *plugin.Registry implements it.
type Registrar interface {
	Register(p any) error
}

// Options controls a load pass.
type Options struct {
	// Dirs are searched in addition to REVIEW4D_PLUGINS.
	Dirs []string
	// SkipBuiltin leaves out the embedded descriptor.
	SkipBuiltin bool
	// Inline plugins, usually from the config file, loaded after the
	// built-in descriptor and before discovered files.
	Inline []Spec
}

// Loaded records a descriptor whose plugins were registered.
type Loaded struct {
	File    string   `json:"file"`
	Plugins []string `json:"plugins"`
}

// Skipped records a descriptor that was not registered, with the reason.
type Skipped struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Report summarizes a load pass.
type Report struct {
	Loaded   []Loaded  `json:"loaded"`
	Skipped  []Skipped `json:"skipped,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
	// Plugins holds every plugin registered by the pass, in load order.
	Plugins []any `json:"-"`
}

// Load runs one registration pass into reg. Each descriptor is read once and
// registered as a whole: if any of its plugins fails to build or register,
// none of them are and the file is reported as skipped.
func Load(reg Registrar, opts Options) Report {
	var report Report

	if !opts.SkipBuiltin {
		f, err := Builtin()
		report.apply(reg, BuiltinName, f, err)
	}
	if len(opts.Inline) > 0 {
		report.apply(reg, ConfigName, &File{Path: ConfigName, Plugins: opts.Inline, Entry: true}, nil)
	}

	files, warnings := Discover(SearchPath(opts.Dirs))
	for _, w := range warnings {
		slog.Warn("skipping plugin directory", "error", w)
		report.Warnings = append(report.Warnings, w.Error())
	}
	for _, path := range files {
		f, err := ReadFile(path)
		report.apply(reg, path, f, err)
	}
	return report
}

func (r *Report) apply(reg Registrar, name string, f *File, err error) {
	if err == nil && !f.Entry {
		slog.Debug("not a plugin description, skipping", "file", name)
		return
	}
	var built []any
	if err == nil {
		built, err = build(f)
	}
	if err == nil {
		err = register(reg, built)
	}
	if err != nil {
		for _, p := range built {
			if c, ok := p.(io.Closer); ok {
				_ = c.Close()
			}
		}
		slog.Warn("skipping plugin description", "file", name, "error", err)
		r.Skipped = append(r.Skipped, Skipped{File: name, Error: err.Error()})
		return
	}

	loaded := Loaded{File: name, Plugins: []string{}}
	for _, p := range built {
		loaded.Plugins = append(loaded.Plugins, label(p))
	}
	r.Loaded = append(r.Loaded, loaded)
	r.Plugins = append(r.Plugins, built...)
	slog.Debug("plugin description loaded", "file", name, "plugins", len(built))
}

// build creates every enabled plugin in f.
func build(f *File) ([]any, error) {
	var out []any
	for _, spec := range f.Plugins {
		if spec.Disabled {
			continue
		}
		p, err := plugin.Build(spec.Name, spec.Config)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// register dry-runs the plugins against a scratch registry so a file with an
// unregistrable plugin leaves reg untouched.
func register(reg Registrar, plugins []any) error {
	scratch := plugin.NewRegistry()
	for _, p := range plugins {
		if err := scratch.Register(p); err != nil {
			return err
		}
	}
	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			return fmt.Errorf("register %s: %w", label(p), err)
		}
	}
	return nil
}

func label(p any) string {
	if l, ok := p.(plugin.Plugin); ok {
		return l.Label()
	}
	return fmt.Sprintf("%T", p)
}
