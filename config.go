package review4d

import "github.com/ferro-labs/review4d/internal/descriptor"

// Config holds the configuration for a Review service.
type Config struct {
	// Paths overrides the roots used by the User Previews and Desktop presets.
	Paths PathsConfig `json:"paths,omitempty" yaml:"paths,omitempty"`
	// PluginDirs are searched for plugin-description files, before the
	// directories in REVIEW4D_PLUGINS.
	PluginDirs []string `json:"plugin_dirs,omitempty" yaml:"plugin_dirs,omitempty"`
	// SkipBuiltinPlugins leaves out the embedded plugin description.
	SkipBuiltinPlugins bool `json:"skip_builtin_plugins,omitempty" yaml:"skip_builtin_plugins,omitempty"`
	// Plugins are built after the built-in plugins and before discovered
	// plugin-description files.
	Plugins []descriptor.Spec `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	// RenderLog enables the render log (optional).
	RenderLog *RenderLogConfig `json:"render_log,omitempty" yaml:"render_log,omitempty"`
	// Server configures `review4d serve`.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
}

// PathsConfig holds preset root folders. Empty values use the platform
// defaults.
type PathsConfig struct {
	UserPreviews string `json:"user_previews,omitempty" yaml:"user_previews,omitempty"`
	Desktop      string `json:"desktop,omitempty" yaml:"desktop,omitempty"`
}

// RenderLogConfig selects the render log store.
type RenderLogConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string             `json:"addr,omitempty" yaml:"addr,omitempty"`
	ContextCache ContextCacheConfig `json:"context_cache,omitempty" yaml:"context_cache,omitempty"`
	// AdminToken protects the /admin routes with a bearer token. Empty
	// leaves them open.
	AdminToken string `json:"admin_token,omitempty" yaml:"admin_token,omitempty"`
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
	// RateLimit limits requests per client address (optional).
	RateLimit *RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RateLimitConfig is a token bucket per client address.
type RateLimitConfig struct {
	RPS   float64 `json:"rps" yaml:"rps"`
	Burst float64 `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// ContextCacheConfig sizes the server's collected-context cache. A zero
// capacity disables it.
type ContextCacheConfig struct {
	Capacity int `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	// TTL is a Go duration string such as "30s".
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// DefaultAddr is the address `review4d serve` listens on by default.
const DefaultAddr = ":8686"
