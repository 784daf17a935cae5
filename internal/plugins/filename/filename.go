// Package filename provides the default context collector, which extracts
// the document's folder, name, version and extension from its path. Register
// it with a blank import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/filename"
//
// review4d.New always registers it; every other collector may rely on the
// keys it produces.
package filename

import (
	"regexp"
	"strings"

	"github.com/ferro-labs/review4d/plugin"
)

// FactoryName is the name the collector is registered under.
const FactoryName = "default-context"

func init() {
	plugin.RegisterFactory(FactoryName, func() any {
		return New()
	})
}

var versionPattern = regexp.MustCompile(`v?\d+`)

// Collector sets file, dirname, filename, basename, version and ext.
//
// Example, for /project/anim_seq_010_v001.c4d:
//
//	file:     /project/anim_seq_010_v001.c4d
//	dirname:  /project
//	filename: anim_seq_010_v001.c4d
//	basename: anim_seq_010
//	version:  v001
//	ext:      .c4d
type Collector struct {
	plugin.Meta
}

// New returns the default collector. It sorts first so later collectors can
// read its keys.
func New() *Collector {
	return &Collector{Meta: plugin.Meta{Name: "Default", Rank: -1000}}
}

// Collect fills the baseline keys into ctx.
func (c *Collector) Collect(path string, ctx plugin.Context) (plugin.Context, error) {
	if ctx == nil {
		ctx = plugin.Context{}
	}

	// Unsaved documents carry a placeholder name instead of a path.
	if strings.Contains(strings.ToLower(path), "untitled") {
		ctx["file"] = path
		ctx["dirname"] = ""
		ctx["filename"] = path
		ctx["basename"] = strings.ReplaceAll(path, " ", "_")
		ctx["version"] = ""
		ctx["ext"] = ""
		return ctx, nil
	}

	dir, name := split(path)
	stem, ext := splitExt(name)

	basename, version := stem, ""
	if locs := versionPattern.FindAllStringIndex(stem, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		version = stem[last[0]:last[1]]
		basename = strings.TrimRight(stem[:last[0]], "-_")
	}

	ctx["file"] = path
	ctx["dirname"] = dir
	ctx["filename"] = name
	ctx["basename"] = basename
	ctx["version"] = version
	ctx["ext"] = ext
	return ctx, nil
}

// split returns the folder and last segment of path. Both separators are
// honoured; trailing separators are trimmed from the folder unless it is a
// root.
func split(path string) (dir, name string) {
	i := strings.LastIndexAny(path, `/\`)
	if i < 0 {
		return "", path
	}
	dir, name = path[:i+1], path[i+1:]
	trimmed := strings.TrimRight(dir, `/\`)
	if trimmed == "" {
		return dir, name
	}
	return trimmed, name
}

// splitExt splits name at its last dot. Leading dots do not start an
// extension, so ".hidden" has none.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	if strings.Trim(name[:i], ".") == "" {
		return name, ""
	}
	return name[:i], name[i:]
}
