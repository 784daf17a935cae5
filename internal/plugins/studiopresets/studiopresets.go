// Package studiopresets provides the presets that route previews into a
// project's review tree: Animation and Dailies. Both rely on the keys set by
// the project-folder collector. Register them with a blank import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/studiopresets"
package studiopresets

import (
	"time"

	"github.com/ferro-labs/review4d/internal/paths"
	"github.com/ferro-labs/review4d/plugin"
)

// Factory names.
const (
	AnimationName = "animation"
	DailiesName   = "dailies"
)

func init() {
	plugin.RegisterFactory(AnimationName, func() any { return NewAnimation() })
	plugin.RegisterFactory(DailiesName, func() any { return NewDailies(time.Now) })
}

func require(preset string, ctx plugin.Context, keys ...string) error {
	for _, k := range keys {
		if ctx[k] == "" {
			return &plugin.PresetError{Preset: preset, Reason: "context has no " + k + "; is the document inside a project folder?"}
		}
	}
	return nil
}

// Animation writes into <project_root>/review/animation/<folder>/<parent>/<name>.
type Animation struct{ plugin.Meta }

// NewAnimation returns the Animation preset.
func NewAnimation() *Animation {
	return &Animation{Meta: plugin.Meta{Name: "Animation", Rank: -100}}
}

// Execute builds the animation review path.
func (a *Animation) Execute(ctx plugin.Context) (plugin.Output, error) {
	if err := require(a.Name, ctx, "project_root", "folder", "parent", "name"); err != nil {
		return plugin.Output{}, err
	}
	return plugin.Produced(paths.Normalize(
		ctx["project_root"],
		"review/animation",
		ctx["folder"],
		ctx["parent"],
		ctx["name"],
		paths.PreviewName(ctx),
	)), nil
}

// Dailies writes into <project_root>/review/dailies/<YYYY-MM-DD>.
type Dailies struct {
	plugin.Meta
	now func() time.Time
}

// NewDailies returns the Dailies preset dated by now.
func NewDailies(now func() time.Time) *Dailies {
	if now == nil {
		now = time.Now
	}
	return &Dailies{Meta: plugin.Meta{Name: "Dailies", Rank: -99}, now: now}
}

// Execute builds the dailies path for today.
func (d *Dailies) Execute(ctx plugin.Context) (plugin.Output, error) {
	if err := require(d.Name, ctx, "project_root"); err != nil {
		return plugin.Output{}, err
	}
	return plugin.Produced(paths.Normalize(
		ctx["project_root"],
		"review/dailies",
		d.now().Format(time.DateOnly),
		paths.PreviewName(ctx),
	)), nil
}
