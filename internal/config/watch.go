package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
	"os"

	"github.com/ws281x-core/ledctl/internal/color"
)

// PresetWatcher watches a preset document on disk and republishes its
// contents into a live PresetTable whenever it changes. Zone topology is
// never watched this way — it is immutable once loaded.
type PresetWatcher struct {
	path    string
	table   *color.PresetTable
	watcher *fsnotify.Watcher
	onError func(error)
}

// NewPresetWatcher opens a watcher on path (a YAML file of PresetConfig
// entries) and performs an initial load into table before returning.
func NewPresetWatcher(path string, table *color.PresetTable, onError func(error)) (*PresetWatcher, error) {
	if onError == nil {
		onError = func(error) {}
	}
	w := &PresetWatcher{path: path, table: table, onError: onError}
	if err := w.reload(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("preset watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("preset watcher: %w", err)
	}
	w.watcher = fw

	go w.loop()
	return w, nil
}

func (w *PresetWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				w.onError(err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *PresetWatcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("preset watcher: read %s: %w", w.path, err)
	}

	var entries []PresetConfig
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("preset watcher: parse %s: %w", w.path, err)
	}

	presets := make([]color.Preset, 0, len(entries))
	for _, e := range entries {
		presets = append(presets, e.ToColorPreset())
	}
	w.table.Replace(presets)
	return nil
}

// Close stops the watcher.
func (w *PresetWatcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
