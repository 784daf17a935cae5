package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	review4d "github.com/ferro-labs/review4d"
	"github.com/ferro-labs/review4d/internal/descriptor"
	"github.com/ferro-labs/review4d/internal/renderlog"
	"github.com/ferro-labs/review4d/internal/version"
	"github.com/ferro-labs/review4d/plugin"
)

func newContextCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "context <document>",
		Short: "Print the context collected from a document path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, err := r.CollectContext(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ctx)
		},
	}
}

func newPathCmd(o *rootOptions) *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "path <document>",
		Short: "Print the preview output path for a document",
		Long: `Print the preview output path a path preset generates for a document.
Without --preset the first preset, in order, that produces a path is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			if preset == "" {
				e, res, err := r.DefaultPresetPath(args[0])
				if err != nil {
					return err
				}
				p, _ := res.Path()
				fmt.Fprintf(out, "%s\t%s\n", e.Label(), p)
				return nil
			}

			res, err := r.PresetPath(parseKey(preset), args[0])
			if err != nil {
				return err
			}
			p, ok := res.Path()
			if !ok {
				fmt.Fprintf(out, "%s produced no path; choose the output file yourself\n", preset)
				return nil
			}
			fmt.Fprintln(out, p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "preset id or label")
	return cmd
}

func newPresetsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List path presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()
			return writeEntries(cmd.OutOrStdout(), r.Registry().Presets.List(), nil)
		},
	}
}

func newCollectorsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collectors",
		Short: "List context collectors in the order they run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()
			return writeEntries(cmd.OutOrStdout(), r.Registry().Collectors.List(), nil)
		},
	}
}

func newPostRendersCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post-renders",
		Short: "List post-render actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()
			return writeEntries(cmd.OutOrStdout(), r.Registry().PostRenders.List(), func(p plugin.PostRender) []string {
				return []string{yesNo(p.Available()), yesNo(p.Enabled())}
			}, "AVAILABLE", "DEFAULT")
		},
	}
}

// writeEntries prints entries as a table. extra adds per-plugin columns
// under the given headers.
func writeEntries[T plugin.Plugin](w io.Writer, entries []plugin.Entry[T], extra func(T) []string, headers ...string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(append([]string{"ID", "LABEL", "ORDER"}, headers...), "\t"))
	for _, e := range entries {
		cols := []string{fmt.Sprint(e.ID), e.Label(), fmt.Sprint(e.Order())}
		if extra != nil {
			cols = append(cols, extra(e.Plugin)...)
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func newPluginsCmd(o *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List plugin factories and the plugin-description load report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()

			report := r.Report()
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, map[string]interface{}{
					"factories": plugin.RegisteredFactories(),
					"report":    report,
				})
			}

			fmt.Fprintln(out, "Factories:")
			for _, name := range plugin.RegisteredFactories() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Loaded:")
			for _, l := range report.Loaded {
				fmt.Fprintf(out, "  %s: %s\n", l.File, strings.Join(l.Plugins, ", "))
			}
			if len(report.Skipped) > 0 {
				fmt.Fprintln(out, "Skipped:")
				for _, s := range report.Skipped {
					fmt.Fprintf(out, "  %s: %s\n", s.File, s.Error)
				}
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newPostRenderCmd(o *rootOptions) *cobra.Command {
	var (
		actions []string
		source  string
		preset  string
	)
	cmd := &cobra.Command{
		Use:   "post-render <render>...",
		Short: "Run post-render actions on finished renders",
		Long: `Run post-render actions on finished renders. Without --action every
available action selected by default runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := o.open()
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := cmd.Context()
			if source != "" || preset != "" {
				ctx = renderlog.WithRender(ctx, renderlog.Render{Source: source, Preset: preset})
			}
			if len(actions) == 0 {
				return r.RunDefaultPostRenders(ctx, args)
			}
			keys := make([]any, len(actions))
			for i, a := range actions {
				keys[i] = parseKey(a)
			}
			return r.RunPostRenders(ctx, keys, args)
		},
	}
	cmd.Flags().StringSliceVarP(&actions, "action", "a", nil, "post-render id or label (repeatable)")
	cmd.Flags().StringVar(&source, "source", "", "document the renders were made from, for the render log")
	cmd.Flags().StringVar(&preset, "preset", "", "preset that produced the render path, for the render log")
	return cmd
}

func newValidateCmd(o *rootOptions) *cobra.Command {
	var descriptors bool
	cmd := &cobra.Command{
		Use:   "validate [config-file | --descriptor file...]",
		Short: "Validate a config file or plugin-description files",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if descriptors {
				if len(args) == 0 {
					return errors.New("validate --descriptor needs at least one file")
				}
				var failed int
				for _, path := range args {
					f, err := descriptor.ReadFile(path)
					switch {
					case err != nil:
						failed++
						fmt.Fprintf(out, "✗ %s: %v\n", path, err)
					case !f.Entry:
						fmt.Fprintf(out, "- %s: not a plugin description\n", path)
					default:
						fmt.Fprintf(out, "✓ %s: %d plugin(s)\n", path, len(f.Plugins))
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d invalid plugin description(s)", failed)
				}
				return nil
			}

			path := o.configPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no config file given")
			}
			cfg, err := review4d.LoadConfig(path)
			if err != nil {
				return err
			}
			if err := review4d.ValidateConfig(*cfg); err != nil {
				return fmt.Errorf("validation error: %w", err)
			}
			fmt.Fprintln(out, "✓ Config is valid")
			fmt.Fprintf(out, "  Plugin dirs: %d\n", len(cfg.PluginDirs))
			fmt.Fprintf(out, "  Plugins:     %d\n", len(cfg.Plugins))
			fmt.Fprintf(out, "  Render log:  %s\n", yesNo(cfg.RenderLog != nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&descriptors, "descriptor", false, "validate plugin-description files instead of a config")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
