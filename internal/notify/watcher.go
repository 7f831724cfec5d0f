package notify

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/daybook-ai/daybook/internal/config"
)

// RulesWatcher hot-reloads the event rules table when its YAML file changes.
type RulesWatcher struct {
	path    string
	rules   *config.EventRules
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRulesWatcher creates a watcher for the rules file at path.
func NewRulesWatcher(path string, rules *config.EventRules) *RulesWatcher {
	return &RulesWatcher{
		path:  path,
		rules: rules,
		done:  make(chan struct{}),
	}
}

// Start begins watching. The containing directory is watched rather than
// the file itself so editors that replace the file atomically still trigger
// a reload. Call Stop to clean up.
func (rw *RulesWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(rw.path)); err != nil {
		_ = w.Close()
		return err
	}
	rw.watcher = w

	go rw.loop()
	log.Printf("notify: watching %s for rule changes", rw.path)
	return nil
}

// Stop shuts down the watcher.
func (rw *RulesWatcher) Stop() {
	if rw.watcher != nil {
		_ = rw.watcher.Close()
	}
	<-rw.done
}

func (rw *RulesWatcher) loop() {
	defer close(rw.done)
	for {
		select {
		case evt, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(evt.Name) != filepath.Clean(rw.path) {
				continue
			}
			if err := rw.rules.Reload(rw.path); err != nil {
				log.Printf("notify: rules reload failed: %v", err)
				continue
			}
			log.Printf("notify: event rules reloaded from %s", rw.path)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}
