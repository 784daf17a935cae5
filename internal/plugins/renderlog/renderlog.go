// Package renderlog provides a post-render action that records finished
// renders in the render log. Register it with a blank import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/renderlog"
package renderlog

import (
	"context"
	"fmt"

	"github.com/ferro-labs/review4d/internal/logging"
	store "github.com/ferro-labs/review4d/internal/renderlog"
	"github.com/ferro-labs/review4d/plugin"
)

// FactoryName is the name the action is registered under.
const FactoryName = "render-log"

func init() {
	plugin.RegisterFactory(FactoryName, func() any {
		return New(nil)
	})
}

// Recorder writes one entry per render path.
type Recorder struct {
	plugin.Meta
	writer  store.Writer
	owned   *store.Store
	enabled bool
}

// New returns a recorder writing to w. A nil writer leaves the recorder
// unavailable until UseWriter is called.
func New(w store.Writer) *Recorder {
	return &Recorder{Meta: plugin.Meta{Name: "Render Log", Rank: 100}, writer: w, enabled: true}
}

// Init configures the recorder. Options: driver and dsn open a dedicated
// store; without them the service's shared render log is used. enabled
// defaults to true.
func (r *Recorder) Init(config map[string]interface{}) error {
	if v, ok := config["enabled"].(bool); ok {
		r.enabled = v
	}
	if label, ok := config["label"].(string); ok && label != "" {
		r.Name = label
	}
	dsn, _ := config["dsn"].(string)
	if dsn == "" {
		return nil
	}
	driver, _ := config["driver"].(string)
	s, err := store.Open(driver, dsn)
	if err != nil {
		return err
	}
	r.owned = s
	r.writer = s
	return nil
}

// UseWriter sets the writer unless the recorder opened its own store.
func (r *Recorder) UseWriter(w store.Writer) {
	if r.owned == nil {
		r.writer = w
	}
}

// Close closes a store opened by Init.
func (r *Recorder) Close() error {
	return r.owned.Close()
}

// Enabled reports whether the action is preselected.
func (r *Recorder) Enabled() bool { return r.enabled }

// Available reports whether a writer is set.
func (r *Recorder) Available() bool { return r.writer != nil }

// Execute records renderPaths.
func (r *Recorder) Execute(ctx context.Context, renderPaths []string) error {
	if r.writer == nil {
		return fmt.Errorf("render log is not configured")
	}
	info, _ := store.RenderFromContext(ctx)
	for _, p := range renderPaths {
		err := r.writer.Write(ctx, store.Entry{
			Source:     info.Source,
			Preset:     info.Preset,
			OutputPath: p,
			Status:     store.StatusRendered,
		})
		if err != nil {
			return err
		}
	}
	logging.FromContext(ctx).Debug("renders recorded", "count", len(renderPaths))
	return nil
}
