package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	review4d "github.com/ferro-labs/review4d"
	"github.com/ferro-labs/review4d/internal/logging"
	"github.com/ferro-labs/review4d/internal/version"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	pluginDirs []string
	noBuiltin  bool
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   "review4d",
		Short: "Route preview renders of scene documents",
		Long: `review4d derives a context from a scene document path, turns it into an
output path for a preview render with a path preset, and runs post-render
actions on the finished media.

Plugins are selected with plugin-description files found in --plugin-dir and
the directories listed in REVIEW4D_PLUGINS.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetupWriter(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "config file (default: $"+review4d.ConfigEnvVar+")")
	flags.StringVar(&o.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&o.logFormat, "log-format", "text", "log format: text or json")
	flags.StringSliceVar(&o.pluginDirs, "plugin-dir", nil, "directory searched for plugin descriptions (repeatable)")
	flags.BoolVar(&o.noBuiltin, "no-builtin", false, "skip the built-in plugin description")

	root.AddCommand(
		newContextCmd(o),
		newPathCmd(o),
		newPresetsCmd(o),
		newCollectorsCmd(o),
		newPostRendersCmd(o),
		newPluginsCmd(o),
		newPostRenderCmd(o),
		newValidateCmd(o),
		newWatchCmd(o),
		newServeCmd(o),
		newVersionCmd(),
	)
	return root
}

// config loads the config file and applies flag overrides.
func (o *rootOptions) config() (*review4d.Config, error) {
	cfg, err := review4d.LoadConfigOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg.PluginDirs = append(cfg.PluginDirs, o.pluginDirs...)
	if o.noBuiltin {
		cfg.SkipBuiltinPlugins = true
	}
	return cfg, nil
}

func (o *rootOptions) open(opts ...review4d.Option) (*review4d.Review, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return review4d.New(*cfg, opts...)
}

// parseKey turns a command-line plugin key into an id when it is numeric and
// a label otherwise.
func parseKey(s string) any {
	if id, err := strconv.Atoi(s); err == nil {
		return id
	}
	return s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
