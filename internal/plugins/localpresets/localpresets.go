// Package localpresets provides the presets that need no project structure:
// User Previews, Desktop and Custom. Register them with a blank import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/localpresets"
package localpresets

import (
	"fmt"

	"github.com/ferro-labs/review4d/internal/paths"
	"github.com/ferro-labs/review4d/plugin"
)

// Factory names.
const (
	UserPreviewsName = "user-previews"
	DesktopName      = "desktop"
	CustomName       = "custom"
)

func init() {
	plugin.RegisterFactory(UserPreviewsName, func() any { return NewUserPreviews("") })
	plugin.RegisterFactory(DesktopName, func() any { return NewDesktop("") })
	plugin.RegisterFactory(CustomName, func() any { return NewCustom() })
}

// rootPreset writes the preview into a fixed folder.
type rootPreset struct {
	plugin.Meta
	root     string
	fallback func() string
}

// Root returns the folder previews are written to.
func (p *rootPreset) Root() string {
	if p.root != "" {
		return p.root
	}
	return p.fallback()
}

// Init reads an optional "root" folder.
func (p *rootPreset) Init(config map[string]interface{}) error {
	raw, ok := config["root"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return fmt.Errorf("root: expected a string, got %T", raw)
	}
	p.root = s
	return nil
}

// Execute returns <root>/<preview name>.
func (p *rootPreset) Execute(ctx plugin.Context) (plugin.Output, error) {
	return plugin.Produced(paths.Normalize(p.Root(), paths.PreviewName(ctx))), nil
}

// UserPreviews writes into the per-user previews folder.
type UserPreviews struct{ rootPreset }

// NewUserPreviews returns the User Previews preset. An empty root uses
// paths.UserPreviewsDir.
func NewUserPreviews(root string) *UserPreviews {
	return &UserPreviews{rootPreset{
		Meta:     plugin.Meta{Name: "User Previews", Rank: 1},
		root:     root,
		fallback: paths.UserPreviewsDir,
	}}
}

// Desktop writes onto the user's desktop.
type Desktop struct{ rootPreset }

// NewDesktop returns the Desktop preset. An empty root uses paths.DesktopDir.
func NewDesktop(root string) *Desktop {
	return &Desktop{rootPreset{
		Meta:     plugin.Meta{Name: "Desktop", Rank: 2},
		root:     root,
		fallback: paths.DesktopDir,
	}}
}

// Custom always declines; the user picks the path by hand.
type Custom struct{ plugin.Meta }

// NewCustom returns the Custom preset.
func NewCustom() *Custom {
	return &Custom{Meta: plugin.Meta{Name: "Custom", Rank: 100}}
}

// Execute declines.
func (c *Custom) Execute(plugin.Context) (plugin.Output, error) {
	return plugin.Declined(), nil
}
