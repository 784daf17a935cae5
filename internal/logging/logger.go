// Package logging configures log/slog for review4d and carries per-render and
// per-request ids through context so log lines can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	renderIDKey  contextKey = "render_id"
	requestIDKey contextKey = "request_id"
)

// Logger is the package-level structured logger. Prefer FromContext(ctx).
var Logger *slog.Logger

func init() {
	Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// Setup (re-)initialises the package logger on stderr, keeping stdout free
// for command output. level is one of debug/info/warn/error (default info);
// format is "json" (default) or "text".
func Setup(level, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewID returns a random id suitable for renders and requests.
func NewID() string {
	return uuid.NewString()
}

// WithRenderID stores a render id in the context.
func WithRenderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, renderIDKey, id)
}

// RenderIDFromContext returns the render id stored in ctx, if any.
func RenderIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(renderIDKey).(string)
	return v
}

// WithRequestID stores an HTTP request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// FromContext returns Logger annotated with the ids found in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := Logger
	if id := RenderIDFromContext(ctx); id != "" {
		l = l.With("render_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}

// Middleware stores a request id in every request context and echoes it in
// the X-Request-ID response header, reusing the incoming header when set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = NewID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
