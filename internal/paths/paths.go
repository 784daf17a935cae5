// Package paths holds the path helpers shared by the built-in presets.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ferro-labs/review4d/plugin"
)

// Normalize joins parts, makes the result absolute and renders it with
// forward slashes regardless of the host separator.
func Normalize(parts ...string) string {
	joined := filepath.Join(parts...)
	if abs, err := filepath.Abs(joined); err == nil {
		joined = abs
	}
	return strings.ReplaceAll(filepath.ToSlash(joined), `\`, "/")
}

// PreviewName derives the preview file name from a collected context.
func PreviewName(ctx plugin.Context) string {
	basename, version := ctx["basename"], ctx["version"]
	switch {
	case basename != "" && version != "":
		return basename + "_" + version + ".mp4"
	case basename != "":
		return basename + ".mp4"
	default:
		return "untitled.mp4"
	}
}

// DesktopDir returns the user's desktop folder.
func DesktopDir() string {
	if profile := os.Getenv("USERPROFILE"); profile != "" {
		return Normalize(profile, "Desktop")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Normalize("Desktop")
	}
	return Normalize(home, "Desktop")
}

// UserPreviewsDir returns the local folder previews are cached in by default.
func UserPreviewsDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Normalize(dir, "review4d", "prefs", "pv")
}

// DocumentPath returns the full path of a host document given its folder and
// file name; either may be empty for unsaved documents.
func DocumentPath(dir, name string) string {
	switch {
	case dir != "" && name != "":
		return Normalize(dir, name)
	case dir != "":
		return Normalize(dir)
	default:
		return name
	}
}
