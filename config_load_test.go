package review4d

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ferro-labs/review4d/internal/descriptor"
)

func TestLoadConfig_YAML(t *testing.T) {
	data := `
paths:
  user_previews: /srv/previews
plugin_dirs:
  - /studio/plugins
plugins:
  - name: copy-to
    config:
      dest: /mnt/review
      enabled: true
render_log:
  driver: sqlite
  dsn: renders.db
server:
  addr: ":9000"
  context_cache:
    capacity: 128
    ttl: 30s
`
	path := writeTempFile(t, "review4d.yaml", data)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Paths.UserPreviews != "/srv/previews" {
		t.Errorf("user_previews = %q", cfg.Paths.UserPreviews)
	}
	if len(cfg.PluginDirs) != 1 || cfg.PluginDirs[0] != "/studio/plugins" {
		t.Errorf("plugin_dirs = %v", cfg.PluginDirs)
	}
	if len(cfg.Plugins) != 1 || cfg.Plugins[0].Config["dest"] != "/mnt/review" {
		t.Errorf("plugins = %+v", cfg.Plugins)
	}
	if cfg.RenderLog == nil || cfg.RenderLog.DSN != "renders.db" {
		t.Errorf("render_log = %+v", cfg.RenderLog)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.ContextCache.Capacity != 128 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if err := ValidateConfig(*cfg); err != nil {
		t.Errorf("ValidateConfig: %v", err)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeTempFile(t, "review4d.json", `{"skip_builtin_plugins": true, "paths": {"desktop": "/d"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.SkipBuiltinPlugins || cfg.Paths.Desktop != "/d" {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	_, err := LoadConfig("/tmp/does-not-exist-config-12345.json")
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, "bad.json", `{invalid`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "config.toml", `key = "value"`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadConfigOrDefault(t *testing.T) {
	t.Setenv(ConfigEnvVar, "")
	cfg, err := LoadConfigOrDefault("")
	if err != nil || cfg == nil {
		t.Fatalf("empty path: cfg=%v err=%v", cfg, err)
	}

	path := writeTempFile(t, "env.yaml", "skip_builtin_plugins: true\n")
	t.Setenv(ConfigEnvVar, path)
	cfg, err = LoadConfigOrDefault("")
	if err != nil {
		t.Fatalf("env path: %v", err)
	}
	if !cfg.SkipBuiltinPlugins {
		t.Error("expected the file named by the environment to be loaded")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"known plugin", Config{Plugins: []descriptor.Spec{{Name: "copy-to"}}}, false},
		{"unnamed plugin", Config{Plugins: []descriptor.Spec{{}}}, true},
		{"unknown plugin", Config{Plugins: []descriptor.Spec{{Name: "nope"}}}, true},
		{"sqlite without dsn", Config{RenderLog: &RenderLogConfig{}}, false},
		{"postgres without dsn", Config{RenderLog: &RenderLogConfig{Driver: "postgres"}}, true},
		{"unknown driver", Config{RenderLog: &RenderLogConfig{Driver: "mysql", DSN: "x"}}, true},
		{"negative capacity", Config{Server: ServerConfig{ContextCache: ContextCacheConfig{Capacity: -1}}}, true},
		{"rate limit", Config{Server: ServerConfig{RateLimit: &RateLimitConfig{RPS: 5}}}, false},
		{"zero rate limit", Config{Server: ServerConfig{RateLimit: &RateLimitConfig{}}}, true},
		{"bad ttl", Config{Server: ServerConfig{ContextCache: ContextCacheConfig{TTL: "soon"}}}, true},
		{"negative ttl", Config{Server: ServerConfig{ContextCache: ContextCacheConfig{TTL: "-1s"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTTLDuration(t *testing.T) {
	d, err := ContextCacheConfig{TTL: "90s"}.TTLDuration()
	if err != nil || d != 90*time.Second {
		t.Errorf("got %v, %v", d, err)
	}
	d, err = ContextCacheConfig{}.TTLDuration()
	if err != nil || d != 0 {
		t.Errorf("empty ttl: got %v, %v", d, err)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
