package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file and invokes onChange with a freshly loaded
// and validated Config whenever it is rewritten. Invalid edits are logged
// and skipped, so the running configuration never regresses to a broken
// state. The watcher shuts down when stop is closed.
//
// The parent directory is watched rather than the file itself, because most
// editors replace the file on save and the inode-level watch would be lost.
func Watch(stop <-chan struct{}, cfile string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(cfile)
	if err != nil {
		watcher.Close()
		return err
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		// Editors fire several events per save; a short timer collapses
		// them into a single reload.
		var reload *time.Timer
		var reloadC <-chan time.Time // nil until the first event

		for {
			select {
			case <-stop:
				slog.Info("Ending config watcher go-routine...")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				if reload != nil {
					reload.Stop()
				}
				reload = time.NewTimer(100 * time.Millisecond)
				reloadC = reload.C
			case <-reloadC:
				conf, err := ReadConfig(abs)
				if err != nil {
					slog.Warn("Ignoring config change", "error", err)
					continue
				}
				slog.Info("Config file changed, applying", "file", abs)
				onChange(conf)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Config watcher error", "error", err)
			}
		}
	}()

	return nil
}
