package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	review4d "github.com/ferro-labs/review4d"
	"github.com/ferro-labs/review4d/internal/logging"
	"github.com/ferro-labs/review4d/internal/mainthread"
	"github.com/ferro-labs/review4d/internal/paths"
	"github.com/ferro-labs/review4d/internal/watcher"
)

func newWatchCmd(o *rootOptions) *cobra.Command {
	var (
		settle     time.Duration
		extensions []string
	)
	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Run the default post-render actions on renders as they finish",
		Long: `Watch render folders and run the default post-render actions on each
batch of finished renders. A render counts as finished once it has gone
--settle without changes. Without arguments the User Previews folder is
watched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Post-render actions run on this goroutine, in Run below.
			queue := mainthread.New()
			r, err := o.open(review4d.WithDispatcher(func(ctx context.Context, task func(context.Context) error) error {
				return queue.Dispatch(ctx, task)
			}))
			if err != nil {
				return err
			}
			defer r.Close()

			dirs := args
			if len(dirs) == 0 {
				dir := r.Config().Paths.UserPreviews
				if dir == "" {
					dir = paths.UserPreviewsDir()
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("creating %s: %w", dir, err)
				}
				dirs = []string{dir}
			}

			wcfg := watcher.DefaultConfig(dirs...)
			if settle > 0 {
				wcfg.Settle = settle
			}
			if len(extensions) > 0 {
				wcfg.Extensions = extensions
			}
			w, err := watcher.New(wcfg)
			if err != nil {
				return err
			}
			batches, err := w.Start()
			if err != nil {
				return err
			}
			defer w.Stop()

			go forwardRenders(ctx, r, batches)

			slog.Info("watching for renders", "dirs", dirs, "post_renders", len(r.DefaultPostRenders()))
			queue.Run(ctx)
			return nil
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", 0, "quiet period before a render counts as finished (default 2s)")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "render file extensions to watch (default .mp4,.mov,.avi)")
	return cmd
}

// forwardRenders runs the default post-renders on every batch until batches
// is closed or ctx ends.
func forwardRenders(ctx context.Context, r *review4d.Review, batches <-chan []string) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			bctx := logging.WithRenderID(ctx, logging.NewID())
			logging.FromContext(bctx).Info("renders finished", "count", len(batch))
			if err := r.RunDefaultPostRenders(bctx, batch); err != nil {
				logging.FromContext(bctx).Warn("post-render actions failed", "error", err)
			}
		}
	}
}
