// Package copyto provides a post-render action that copies finished renders
// into a destination folder, such as a shared review drop. Register it with a
// blank import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/copyto"
package copyto

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ferro-labs/review4d/plugin"
)

// FactoryName is the name the action is registered under.
const FactoryName = "copy-to"

func init() {
	plugin.RegisterFactory(FactoryName, func() any {
		return &CopyTo{Meta: plugin.Meta{Name: "Copy To", Rank: 10}}
	})
}

// CopyTo copies each render into Dest. Files are replaced atomically, so a
// reader of Dest never sees a partial copy.
type CopyTo struct {
	plugin.Meta
	dest      string
	enabled   bool
	overwrite bool
}

// New returns an action copying into dest.
func New(dest string) *CopyTo {
	return &CopyTo{Meta: plugin.Meta{Name: "Copy To", Rank: 10}, dest: dest, overwrite: true}
}

// Init configures the action. Options: dest (required), label, enabled,
// overwrite (default true).
func (c *CopyTo) Init(config map[string]interface{}) error {
	dest, _ := config["dest"].(string)
	if dest == "" {
		return fmt.Errorf("dest is required")
	}
	c.dest = dest
	c.overwrite = true
	if label, ok := config["label"].(string); ok && label != "" {
		c.Name = label
	}
	if v, ok := config["enabled"].(bool); ok {
		c.enabled = v
	}
	if v, ok := config["overwrite"].(bool); ok {
		c.overwrite = v
	}
	return nil
}

// Dest returns the destination folder.
func (c *CopyTo) Dest() string { return c.dest }

// Enabled reports whether the action is preselected.
func (c *CopyTo) Enabled() bool { return c.enabled }

// Available reports whether a destination is configured.
func (c *CopyTo) Available() bool { return c.dest != "" }

// Execute copies every render into the destination folder, stopping at the
// first failure.
func (c *CopyTo) Execute(ctx context.Context, renderPaths []string) error {
	if c.dest == "" {
		return fmt.Errorf("copy-to: no destination configured")
	}
	if err := os.MkdirAll(c.dest, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", c.dest, err)
	}
	for _, src := range renderPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(c.dest, filepath.Base(src))
		if !c.overwrite {
			if _, err := os.Stat(dst); err == nil {
				return fmt.Errorf("copy %s: %s already exists", src, dst)
			}
		}
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copy %s: %w", src, err)
		}
	}
	return nil
}
