// Package watcher keeps a dev session in sync with the filesystem: editing
// a configuration file reloads that resource, creating a resource directory
// registers it, deleting one drops it.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blocksmith-dev/blocksmith/internal/logger"
	"github.com/blocksmith-dev/blocksmith/internal/models"
	"github.com/blocksmith-dev/blocksmith/internal/scanner"
	"github.com/blocksmith-dev/blocksmith/internal/service"
)

// reloadDebounce coalesces the burst of write events editors emit while
// saving a single file.
const reloadDebounce = 200 * time.Millisecond

// Watcher drives session updates from filesystem events.
type Watcher struct {
	session       *service.Session
	blocksRoot    string
	templatesRoot string
	fs            *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher over the two resource roots.
func New(session *service.Session, blocksRoot, templatesRoot string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		session:       session,
		blocksRoot:    blocksRoot,
		templatesRoot: templatesRoot,
		fs:            fs,
		timers:        make(map[string]*time.Timer),
	}, nil
}

// Start registers the roots and their resource directories and blocks
// processing events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.fs.Close()

	for _, root := range []string{w.blocksRoot, w.templatesRoot} {
		if err := w.watchRoot(root); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.cancelTimers()
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Log.Warnf("watcher error: %v", err)
		}
	}
}

// watchRoot adds a collection root and every resource directory under it. A
// missing root is tolerated; it may be created later by `blocksmith create`.
func (w *Watcher) watchRoot(root string) error {
	if err := w.fs.Add(root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			if err := w.fs.Add(filepath.Join(root, entry.Name())); err != nil {
				logger.Log.Warnf("cannot watch %s: %v", entry.Name(), err)
			}
		}
	}
	return nil
}

func (w *Watcher) handle(event fsnotify.Event) {
	kind, name, rel, ok := w.locate(event.Name)
	if !ok {
		return
	}

	// A new directory directly under a root is a candidate resource; watch
	// it so its files report events.
	if rel == "" {
		if event.Op.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.fs.Add(event.Name); err != nil {
					logger.Log.Warnf("cannot watch %s: %v", name, err)
				}
			}
			return
		}
		if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
			w.session.RemoveResource(name)
		}
		return
	}

	switch filepath.Base(rel) {
	case scanner.ConfigFileName:
		if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
			w.scheduleReload(kind, name)
		}
	case scanner.PackageFileName:
		if event.Op.Has(fsnotify.Create) {
			if err := w.session.AddResource(kind, name); err != nil {
				logger.Log.Warnf("cannot register %s %q: %v", kind, name, err)
			}
		} else if event.Op.Has(fsnotify.Write) {
			w.scheduleReload(kind, name)
		}
	}
}

// locate maps an event path onto (kind, resource name, path inside the
// resource). rel is empty when the path is the resource directory itself.
func (w *Watcher) locate(path string) (models.ResourceKind, string, string, bool) {
	for _, root := range []struct {
		kind models.ResourceKind
		dir  string
	}{
		{models.KindBlock, w.blocksRoot},
		{models.KindTemplate, w.templatesRoot},
	} {
		rel, err := filepath.Rel(root.dir, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
		name := parts[0]
		if strings.HasPrefix(name, ".") {
			return "", "", "", false
		}
		if len(parts) == 1 {
			return root.kind, name, "", true
		}
		return root.kind, name, parts[1], true
	}
	return "", "", "", false
}

// scheduleReload debounces per resource; only the last event in a save
// burst triggers the reload.
func (w *Watcher) scheduleReload(kind models.ResourceKind, name string) {
	key := string(kind) + "/" + name

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[key]; ok {
		timer.Stop()
	}
	w.timers[key] = time.AfterFunc(reloadDebounce, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()

		if err := w.session.ReloadConfig(kind, name); err != nil {
			logger.Log.Warnf("reload of %s %q failed: %v", kind, name, err)
		}
	})
}

func (w *Watcher) cancelTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, timer := range w.timers {
		timer.Stop()
		delete(w.timers, key)
	}
}
