package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and hands each
// valid new configuration to a callback. Invalid or unreadable versions are
// logged and skipped; the last good configuration stays in effect.
type Watcher struct {
	path    string
	onLoad  func(Config)
	watcher *fsnotify.Watcher
}

// Watch starts watching path. onLoad runs on the watcher goroutine for every
// successfully loaded change. Call Close to stop.
func Watch(path string, onLoad func(Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, onLoad: onLoad, watcher: watcher}

	// Watch the directory, not the file: editors replace files, which
	// drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				slog.Warn("config: reload skipped", "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", w.path)
			w.onLoad(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}
