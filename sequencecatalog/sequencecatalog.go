// Package sequencecatalog loads named, hot-reloadable input-sequence
// presets from *.sequence.json files, so route handlers can execute a
// preset by name instead of inlining its steps on every call (spec.md
// §4.4's sequence contract, supplemented with a reusable preset layer).
package sequencecatalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Godeaux/Godot-AI-Bridge/inputbridge"
	"github.com/Godeaux/Godot-AI-Bridge/logger"
)

// Preset is one named, reusable sequence of input steps.
type Preset struct {
	Name       string            `json:"name"`
	Steps      []inputbridge.Step `json:"steps"`
	SourcePath string            `json:"-"`
}

// Registry stores presets discovered from *.sequence.json files and
// refreshes them as those files change on disk. Grounded on
// promptcatalog.Registry's map-plus-mutex shape, generalized from prompt
// templates to input-sequence presets.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset

	watcher *fsnotify.Watcher
	log     *logger.Logger
}

// NewRegistry creates an empty registry. log may be nil.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{presets: map[string]Preset{}, log: log}
}

// LoadDir reads every *.sequence.json file directly under dir and
// registers its preset. Non-fatal per-file errors are logged and skipped.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("sequencecatalog: read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sequence.json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.loadFile(path); err != nil {
			r.warn("Skipping sequence preset", "path", path, "error", err)
		}
	}
	return nil
}

func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var preset Preset
	if err := json.Unmarshal(data, &preset); err != nil {
		return fmt.Errorf("invalid sequence json: %w", err)
	}
	name := strings.TrimSpace(preset.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".sequence.json")
	}
	preset.Name = name
	preset.SourcePath = path

	r.mu.Lock()
	r.presets[name] = preset
	r.mu.Unlock()
	return nil
}

func (r *Registry) removeBySourcePath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.presets {
		if p.SourcePath == path {
			delete(r.presets, name)
		}
	}
}

// Get returns the named preset's steps.
func (r *Registry) Get(name string) (Preset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	return p, ok
}

// List returns every known preset name, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.presets))
	for name := range r.presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Watch starts an fsnotify watch on dir, reloading a file's preset on
// write/create and removing it on remove/rename, until Close is called.
func (r *Registry) Watch(dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sequencecatalog: new watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("sequencecatalog: watch %s: %w", dir, err)
	}

	r.mu.Lock()
	r.watcher = watcher
	r.mu.Unlock()

	go r.watchLoop(watcher)
	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".sequence.json") {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if err := r.loadFile(event.Name); err != nil {
					r.warn("Failed to reload sequence preset", "path", event.Name, "error", err)
				} else {
					r.info("Sequence preset reloaded", "path", event.Name)
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				r.removeBySourcePath(event.Name)
				r.info("Sequence preset removed", "path", event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.warn("Sequence catalog watch error", "error", err)
		}
	}
}

// Close stops the filesystem watch, if one was started.
func (r *Registry) Close() error {
	r.mu.Lock()
	watcher := r.watcher
	r.watcher = nil
	r.mu.Unlock()
	if watcher == nil {
		return nil
	}
	return watcher.Close()
}

func (r *Registry) info(msg string, args ...any) {
	if r.log == nil {
		return
	}
	r.log.Info(msg, args...)
}

func (r *Registry) warn(msg string, args ...any) {
	if r.log == nil {
		return
	}
	r.log.Warn(msg, args...)
}
