package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	review4d "github.com/ferro-labs/review4d"
	"github.com/ferro-labs/review4d/internal/admin"
	"github.com/ferro-labs/review4d/internal/cache"
	"github.com/ferro-labs/review4d/internal/descriptor"
	"github.com/ferro-labs/review4d/internal/logging"
	"github.com/ferro-labs/review4d/internal/metrics"
	"github.com/ferro-labs/review4d/internal/ratelimit"
	"github.com/ferro-labs/review4d/internal/renderlog"
	"github.com/ferro-labs/review4d/internal/version"
	"github.com/ferro-labs/review4d/plugin"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the review4d HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()

			if addr == "" {
				addr = r.Config().Server.Addr
			}
			if addr == "" {
				addr = review4d.DefaultAddr
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           newRouter(r),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      10 * time.Minute,
				IdleTimeout:       60 * time.Second,
			}

			// Graceful shutdown on SIGINT / SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				slog.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			slog.Info("review4d listening", "version", version.Short(), "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default "+review4d.DefaultAddr+")")
	return cmd
}

type server struct {
	review   *review4d.Review
	contexts *cache.Memory[plugin.Context]
}

// newRouter builds the HTTP router.
func newRouter(rv *review4d.Review) http.Handler {
	cfg := rv.Config().Server
	s := &server{review: rv}
	if cfg.ContextCache.Capacity > 0 {
		ttl, _ := cfg.ContextCache.TTLDuration()
		s.contexts = cache.NewMemory[plugin.Context](cfg.ContextCache.Capacity, ttl)
	}

	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins...))
	if rl := cfg.RateLimit; rl != nil {
		r.Use(ratelimit.NewStore(rl.RPS, rl.Burst).Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	adminHandlers := &admin.Handlers{
		Report: func() descriptor.Report { return rv.Report() },
	}
	if logs := rv.RenderLog(); logs != nil {
		adminHandlers.Logs = logs
		adminHandlers.LogAdmin = logs
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/context", s.getContext)
		r.Get("/path", s.defaultPath)
		r.Get("/collectors", s.listCollectors)
		r.Get("/presets", s.listPresets)
		r.Get("/presets/{key}/path", s.presetPath)
		r.Get("/post-renders", s.listPostRenders)
		r.Post("/post-renders/run", s.runPostRenders)
		r.Get("/renders", adminHandlers.ListRenders)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.TokenAuth(cfg.AdminToken))
		r.Mount("/", adminHandlers.Routes())
	})

	return r
}

// collect returns the context for path, from the cache when enabled. The
// returned context is shared with the cache and must not be modified.
func (s *server) collect(path string) (plugin.Context, error) {
	if s.contexts != nil {
		if ctx, ok := s.contexts.Get(path); ok {
			metrics.ContextCacheLookups.WithLabelValues("hit").Inc()
			return ctx, nil
		}
		metrics.ContextCacheLookups.WithLabelValues("miss").Inc()
	}
	ctx, err := s.review.CollectContext(path)
	if err != nil {
		return nil, err
	}
	if s.contexts != nil {
		s.contexts.Set(path, ctx)
	}
	return ctx, nil
}

func (s *server) getContext(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	ctx, err := s.collect(path)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"path": path, "context": ctx})
}

func (s *server) defaultPath(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	e, out, err := s.review.DefaultPresetPath(path)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPathResponse(viewOf(e), out))
}

func (s *server) presetPath(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	key := parseKey(chi.URLParam(r, "key"))
	e, found := s.review.Registry().Presets.Get(key)
	if !found {
		admin.WriteError(w, http.StatusNotFound, fmt.Sprintf("preset %v not found", key), "", "")
		return
	}
	ctx, err := s.collect(path)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	out, err := s.review.PresetPathFromContext(e.ID, ctx)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPathResponse(viewOf(e), out))
}

func (s *server) listCollectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": views(s.review.Registry().Collectors.List())})
}

func (s *server) listPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": views(s.review.Registry().Presets.List())})
}

func (s *server) listPostRenders(w http.ResponseWriter, _ *http.Request) {
	entries := s.review.Registry().PostRenders.List()
	data := make([]postRenderView, 0, len(entries))
	for _, e := range entries {
		data = append(data, postRenderView{
			pluginView: viewOf(e),
			Available:  e.Plugin.Available(),
			Enabled:    e.Plugin.Enabled(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

type runRequest struct {
	// Actions holds ids (numbers) or labels (strings). Empty runs the
	// defaults.
	Actions []any    `json:"actions"`
	Renders []string `json:"renders"`
	Source  string   `json:"source"`
	Preset  string   `json:"preset"`
}

func (s *server) runPostRenders(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		admin.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "", "")
		return
	}
	if len(req.Renders) == 0 {
		admin.WriteError(w, http.StatusBadRequest, "renders is required", "", "")
		return
	}

	keys := make([]any, 0, len(req.Actions))
	for _, a := range req.Actions {
		switch v := a.(type) {
		case float64:
			keys = append(keys, int(v))
		case string:
			keys = append(keys, v)
		default:
			admin.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid action %v: use an id or a label", a), "", "")
			return
		}
	}

	ctx := logging.WithRenderID(r.Context(), logging.NewID())
	ctx = renderlog.WithRender(ctx, renderlog.Render{Source: req.Source, Preset: req.Preset})
	var err error
	if len(keys) == 0 {
		err = s.review.RunDefaultPostRenders(ctx, req.Renders)
	} else {
		err = s.review.RunPostRenders(ctx, keys, req.Renders)
	}
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"render_id": logging.RenderIDFromContext(ctx),
		"renders":   len(req.Renders),
	})
}

type pluginView struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

type postRenderView struct {
	pluginView
	Available bool `json:"available"`
	Enabled   bool `json:"enabled"`
}

// pathResponse carries path only when produced is true; a produced empty
// path still has the field.
type pathResponse struct {
	Preset   pluginView `json:"preset"`
	Produced bool       `json:"produced"`
	Path     *string    `json:"path,omitempty"`
}

func newPathResponse(preset pluginView, out plugin.Output) pathResponse {
	res := pathResponse{Preset: preset}
	if p, ok := out.Path(); ok {
		res.Produced = true
		res.Path = &p
	}
	return res
}

func viewOf[T plugin.Plugin](e plugin.Entry[T]) pluginView {
	return pluginView{ID: e.ID, Label: e.Label(), Order: e.Order()}
}

func views[T plugin.Plugin](entries []plugin.Entry[T]) []pluginView {
	out := make([]pluginView, 0, len(entries))
	for _, e := range entries {
		out = append(out, viewOf(e))
	}
	return out
}

func requirePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := r.URL.Query().Get("path")
	if path == "" {
		admin.WriteError(w, http.StatusBadRequest, "path query parameter is required", "", "")
		return "", false
	}
	return path, true
}

// writeReviewError maps review errors to HTTP statuses.
func writeReviewError(w http.ResponseWriter, err error) {
	var pe *plugin.PresetError
	switch {
	case errors.As(err, &pe):
		admin.WriteError(w, http.StatusUnprocessableEntity, err.Error(), "", "")
	case errors.Is(err, plugin.ErrNotFound):
		admin.WriteError(w, http.StatusNotFound, err.Error(), "", "")
	case errors.Is(err, plugin.ErrUnavailable):
		admin.WriteError(w, http.StatusConflict, err.Error(), "", "")
	default:
		admin.WriteError(w, http.StatusInternalServerError, err.Error(), "", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
