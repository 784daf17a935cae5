// Package showfile provides a post-render action that reveals finished
// renders in the operating system's file browser. Register it with a blank
// import:
//
//	_ "github.com/ferro-labs/review4d/internal/plugins/showfile"
package showfile

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"runtime"
	"strings"

	"github.com/ferro-labs/review4d/plugin"
)

// FactoryName is the name the action is registered under.
const FactoryName = "show-file"

func init() {
	plugin.RegisterFactory(FactoryName, func() any {
		return New()
	})
}

// Runner starts an external command.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// ShowFile opens the folder of each render. A single render is selected in
// the browser where the platform supports it.
type ShowFile struct {
	plugin.Meta
	goos    string
	run     Runner
	enabled bool
}

// New returns the action for the current platform.
func New() *ShowFile {
	return NewWithRunner(runtime.GOOS, execRunner)
}

// NewWithRunner returns the action for goos, starting commands with run.
func NewWithRunner(goos string, run Runner) *ShowFile {
	return &ShowFile{
		Meta: plugin.Meta{Name: "Show in File Browser"},
		goos: goos,
		run:  run,
	}
}

// Init reads the optional "enabled" flag.
func (s *ShowFile) Init(config map[string]interface{}) error {
	if v, ok := config["enabled"]; ok {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("enabled: expected a bool, got %T", v)
		}
		s.enabled = b
	}
	return nil
}

// Enabled reports whether the action is preselected. Off unless configured.
func (s *ShowFile) Enabled() bool { return s.enabled }

// Available reports whether the platform has a known file browser.
func (s *ShowFile) Available() bool {
	switch s.goos {
	case "windows", "darwin", "linux":
		return true
	}
	return false
}

// Execute reveals renderPaths.
func (s *ShowFile) Execute(ctx context.Context, renderPaths []string) error {
	if len(renderPaths) == 0 {
		return nil
	}
	if len(renderPaths) == 1 {
		name, args := s.selectCommand(renderPaths[0])
		return s.start(ctx, name, args...)
	}
	for _, folder := range distinctFolders(renderPaths) {
		name, args := s.openCommand(folder)
		if err := s.start(ctx, name, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShowFile) start(ctx context.Context, name string, args ...string) error {
	if err := s.run(ctx, name, args...); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

func (s *ShowFile) selectCommand(file string) (string, []string) {
	switch s.goos {
	case "windows":
		return "explorer", []string{"/select,", windowsPath(file)}
	case "darwin":
		return "open", []string{"-R", file}
	default:
		return "xdg-open", []string{dir(file)}
	}
}

func (s *ShowFile) openCommand(folder string) (string, []string) {
	switch s.goos {
	case "windows":
		return "explorer", []string{windowsPath(folder)}
	case "darwin":
		return "open", []string{folder}
	default:
		return "xdg-open", []string{folder}
	}
}

func distinctFolders(files []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range files {
		d := dir(f)
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func dir(p string) string {
	return path.Dir(strings.ReplaceAll(p, `\`, "/"))
}

func windowsPath(p string) string {
	return strings.ReplaceAll(p, "/", `\`)
}
