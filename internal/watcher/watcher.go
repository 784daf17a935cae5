// Package watcher reports finished preview renders by watching output
// folders for media files that stop changing.
package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultExtensions are the media extensions treated as render output.
var DefaultExtensions = []string{".mp4", ".mov", ".avi"}

// Config holds watcher options.
type Config struct {
	Dirs       []string
	Extensions []string
	// Settle is how long a file must go without events before it is
	// reported.
	Settle time.Duration
}

// DefaultConfig returns a config watching dirs for DefaultExtensions.
func DefaultConfig(dirs ...string) Config {
	return Config{
		Dirs:       dirs,
		Extensions: DefaultExtensions,
		Settle:     2 * time.Second,
	}
}

// Watcher emits batches of settled render paths.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	dirs       []string
	extensions map[string]bool
	settle     time.Duration
	renders    chan []string
	done       chan struct{}
}

// New creates a watcher. Call Start to begin watching.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Dirs) == 0 {
		return nil, fmt.Errorf("watcher: at least one directory is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	settle := cfg.Settle
	if settle <= 0 {
		settle = 2 * time.Second
	}
	w := &Watcher{
		fsWatcher:  fsw,
		dirs:       cfg.Dirs,
		extensions: make(map[string]bool, len(exts)),
		settle:     settle,
		renders:    make(chan []string, 16),
		done:       make(chan struct{}),
	}
	for _, ext := range exts {
		w.extensions[strings.ToLower(ext)] = true
	}
	return w, nil
}

// Start watches the configured directories and returns the channel settled
// render batches are sent on. The channel is closed by Stop.
func (w *Watcher) Start() (<-chan []string, error) {
	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	go w.loop()
	return w.renders, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	defer close(w.renders)

	var timer *time.Timer
	pending := map[string]bool{}

	for {
		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C
		}

		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevant(event) {
				continue
			}
			pending[filepath.ToSlash(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.settle)
			}

		case <-fire:
			timer = nil
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = map[string]bool{}
			select {
			case w.renders <- batch:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Warn("render watcher error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// isRelevant reports whether event touches a media file.
func (w *Watcher) isRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return w.extensions[strings.ToLower(filepath.Ext(event.Name))]
}
