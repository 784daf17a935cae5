// Package review4d routes preview renders of 3D scene documents. A Review
// derives a context from a document path through an ordered chain of
// collectors, turns it into an output path with a selectable path preset,
// and runs post-render actions on the finished media.
//
// Plugins are compiled in and selected at startup from plugin-description
// files; see package plugin and internal/descriptor.
package review4d

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ferro-labs/review4d/internal/descriptor"
	"github.com/ferro-labs/review4d/internal/logging"
	"github.com/ferro-labs/review4d/internal/metrics"
	"github.com/ferro-labs/review4d/internal/paths"
	"github.com/ferro-labs/review4d/internal/renderlog"
	"github.com/ferro-labs/review4d/plugin"

	// Built-in plugins.
	"github.com/ferro-labs/review4d/internal/plugins/filename"
	"github.com/ferro-labs/review4d/internal/plugins/localpresets"

	_ "github.com/ferro-labs/review4d/internal/plugins/copyto"
	_ "github.com/ferro-labs/review4d/internal/plugins/folders"
	_ "github.com/ferro-labs/review4d/internal/plugins/notify"
	_ "github.com/ferro-labs/review4d/internal/plugins/renderlog"
	_ "github.com/ferro-labs/review4d/internal/plugins/s3publish"
	_ "github.com/ferro-labs/review4d/internal/plugins/showfile"
	_ "github.com/ferro-labs/review4d/internal/plugins/studiopresets"
)

// Dispatcher runs task on the goroutine that owns post-render work. The
// default runs it on the caller's goroutine.
type Dispatcher func(ctx context.Context, task func(context.Context) error) error

func inline(ctx context.Context, task func(context.Context) error) error {
	return task(ctx)
}

// Option configures a Review.
type Option func(*Review)

// WithDispatcher sets the dispatcher post-render actions run through.
func WithDispatcher(d Dispatcher) Option {
	return func(r *Review) { r.dispatch = d }
}

// Review is the review4d service: a plugin registry loaded from config and
// plugin-description files, plus the post-render runner.
type Review struct {
	cfg      Config
	registry *plugin.Registry
	manager  *plugin.Manager
	dispatch Dispatcher
	logs     *renderlog.Store
	report   descriptor.Report
	closers  []io.Closer
}

// writerUser is implemented by post-renders that record into the shared
// render log.
type writerUser interface {
	UseWriter(w renderlog.Writer)
}

// New creates a Review from cfg. The default collector and the User
// Previews, Desktop and Custom presets are always registered; everything else
// comes from plugin-description files.
func New(cfg Config, opts ...Option) (*Review, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	r := &Review{
		cfg:      cfg,
		registry: plugin.NewRegistry(),
		dispatch: inline,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, p := range []any{
		filename.New(),
		localpresets.NewUserPreviews(cfg.Paths.UserPreviews),
		localpresets.NewDesktop(cfg.Paths.Desktop),
		localpresets.NewCustom(),
	} {
		if err := r.registry.Register(p); err != nil {
			return nil, err
		}
	}

	if cfg.RenderLog != nil {
		logs, err := renderlog.Open(cfg.RenderLog.Driver, cfg.RenderLog.DSN)
		if err != nil {
			return nil, err
		}
		r.logs = logs
		r.closers = append(r.closers, logs)
	}

	r.report = descriptor.Load(r.registry, descriptor.Options{
		Dirs:        cfg.PluginDirs,
		SkipBuiltin: cfg.SkipBuiltinPlugins,
		Inline:      cfg.Plugins,
	})
	metrics.DescriptorErrors.Add(float64(len(r.report.Skipped)))
	for _, p := range r.report.Plugins {
		if c, ok := p.(io.Closer); ok {
			r.closers = append(r.closers, c)
		}
		if u, ok := p.(writerUser); ok && r.logs != nil {
			u.UseWriter(r.logs)
		}
	}

	r.manager = plugin.NewManager(r.registry)
	r.manager.AddHook(observePostRender)
	if r.logs != nil {
		r.manager.AddHook(r.recordPostRender)
	}

	metrics.RegisteredPlugins.WithLabelValues(r.registry.Collectors.Name()).Set(float64(r.registry.Collectors.Len()))
	metrics.RegisteredPlugins.WithLabelValues(r.registry.Presets.Name()).Set(float64(r.registry.Presets.Len()))
	metrics.RegisteredPlugins.WithLabelValues(r.registry.PostRenders.Name()).Set(float64(r.registry.PostRenders.Len()))

	slog.Info("review4d ready",
		"collectors", r.registry.Collectors.Len(),
		"presets", r.registry.Presets.Len(),
		"post_renders", r.registry.PostRenders.Len(),
		"descriptors_skipped", len(r.report.Skipped),
	)
	return r, nil
}

// Registry returns the plugin registry.
func (r *Review) Registry() *plugin.Registry { return r.registry }

// Report returns the plugin load report.
func (r *Review) Report() descriptor.Report { return r.report }

// Config returns the configuration the service was created with.
func (r *Review) Config() Config { return r.cfg }

// RenderLog returns the render log store, or nil when it is disabled.
func (r *Review) RenderLog() *renderlog.Store { return r.logs }

// CollectContext runs the collector chain on path.
func (r *Review) CollectContext(path string) (plugin.Context, error) {
	ctx, err := r.registry.CollectContext(path)
	if err != nil {
		metrics.ContextCollections.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ContextCollections.WithLabelValues("success").Inc()
	return ctx, nil
}

// PresetPath returns the output path the preset named by key (id or label)
// generates for the document at path.
func (r *Review) PresetPath(key any, path string) (plugin.Output, error) {
	e, ok := r.registry.Presets.Get(key)
	if !ok {
		return plugin.Output{}, fmt.Errorf("preset %v: %w", key, plugin.ErrNotFound)
	}
	ctx, err := r.CollectContext(path)
	if err != nil {
		return plugin.Output{}, err
	}
	return r.execute(e, ctx)
}

// PresetPathFromContext runs the preset named by key on an already collected
// context.
func (r *Review) PresetPathFromContext(key any, ctx plugin.Context) (plugin.Output, error) {
	e, ok := r.registry.Presets.Get(key)
	if !ok {
		return plugin.Output{}, fmt.Errorf("preset %v: %w", key, plugin.ErrNotFound)
	}
	return r.execute(e, ctx)
}

func (r *Review) execute(e plugin.Entry[plugin.PathPreset], ctx plugin.Context) (plugin.Output, error) {
	out, err := e.Plugin.Execute(ctx.Clone())
	switch {
	case err != nil:
		metrics.PresetExecutions.WithLabelValues(e.Label(), "error").Inc()
		var pe *plugin.PresetError
		if errors.As(err, &pe) {
			slog.Info("preset could not produce a path", "preset", e.Label(), "reason", pe.Reason)
		}
		return plugin.Output{}, err
	case out.IsDeclined():
		metrics.PresetExecutions.WithLabelValues(e.Label(), "declined").Inc()
	default:
		metrics.PresetExecutions.WithLabelValues(e.Label(), "produced").Inc()
	}
	return out, nil
}

// DefaultPresetPath walks the presets in order and returns the first one
// that produces a path for the document. Presets that decline or fail with a
// PresetError are skipped. When none produces a path the error wraps
// plugin.ErrNotFound.
func (r *Review) DefaultPresetPath(path string) (plugin.Entry[plugin.PathPreset], plugin.Output, error) {
	ctx, err := r.CollectContext(path)
	if err != nil {
		return plugin.Entry[plugin.PathPreset]{}, plugin.Output{}, err
	}
	for _, e := range r.registry.Presets.List() {
		out, err := r.execute(e, ctx)
		if err != nil {
			var pe *plugin.PresetError
			if errors.As(err, &pe) {
				continue
			}
			return e, plugin.Output{}, err
		}
		if !out.IsDeclined() {
			return e, out, nil
		}
	}
	return plugin.Entry[plugin.PathPreset]{}, plugin.Output{}, fmt.Errorf("no preset produced a path for %s: %w", path, plugin.ErrNotFound)
}

// DocumentPath returns the full path of a host document from its folder and
// file name. Unsaved documents have no folder and keep their bare name.
func (r *Review) DocumentPath(dir, name string) string {
	return paths.DocumentPath(dir, name)
}

// AvailablePostRenders returns the post-render actions that can run here.
func (r *Review) AvailablePostRenders() []plugin.Entry[plugin.PostRender] {
	return r.registry.AvailablePostRenders()
}

// DefaultPostRenders returns the available actions selected by default.
func (r *Review) DefaultPostRenders() []plugin.Entry[plugin.PostRender] {
	return r.manager.Defaults()
}

// RunPostRender runs the post-render named by key (id or label) on
// renderPaths through the dispatcher.
func (r *Review) RunPostRender(ctx context.Context, key any, renderPaths []string) error {
	ctx = withRenderID(ctx)
	return r.dispatch(ctx, func(ctx context.Context) error {
		return r.manager.Run(ctx, key, renderPaths)
	})
}

// RunPostRenders runs each named post-render in order. Failures do not stop
// later actions and are returned joined.
func (r *Review) RunPostRenders(ctx context.Context, keys []any, renderPaths []string) error {
	ctx = withRenderID(ctx)
	return r.dispatch(ctx, func(ctx context.Context) error {
		return r.manager.RunAll(ctx, keys, renderPaths)
	})
}

// RunDefaultPostRenders runs DefaultPostRenders on renderPaths.
func (r *Review) RunDefaultPostRenders(ctx context.Context, renderPaths []string) error {
	var keys []any
	for _, e := range r.DefaultPostRenders() {
		keys = append(keys, e.ID)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.RunPostRenders(ctx, keys, renderPaths)
}

// Close releases the render log and any plugin resources.
func (r *Review) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func withRenderID(ctx context.Context) context.Context {
	if logging.RenderIDFromContext(ctx) != "" {
		return ctx
	}
	return logging.WithRenderID(ctx, logging.NewID())
}

func observePostRender(ctx context.Context, res plugin.Result) {
	status := "success"
	log := logging.FromContext(ctx).With("post_render", res.Entry.Label(), "renders", len(res.Paths), "duration", res.Duration)
	if res.Err != nil {
		status = "error"
		log.Warn("post-render failed", "error", res.Err)
	} else {
		log.Info("post-render finished")
	}
	metrics.PostRenderRuns.WithLabelValues(res.Entry.Label(), status).Inc()
	metrics.PostRenderDuration.WithLabelValues(res.Entry.Label()).Observe(res.Duration.Seconds())
}

func (r *Review) recordPostRender(ctx context.Context, res plugin.Result) {
	info, _ := renderlog.RenderFromContext(ctx)
	status, msg := renderlog.StatusSucceeded, ""
	if res.Err != nil {
		status, msg = renderlog.StatusFailed, res.Err.Error()
	}
	for _, p := range res.Paths {
		err := r.logs.Write(ctx, renderlog.Entry{
			Source:     info.Source,
			Preset:     info.Preset,
			OutputPath: p,
			PostRender: res.Entry.Label(),
			Status:     status,
			Error:      msg,
		})
		if err != nil {
			logging.FromContext(ctx).Warn("render log write failed", "error", err)
			return
		}
	}
}
