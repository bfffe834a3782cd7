package hmr

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher turns file changes under a directory into update broadcasts for
// the modules keep-alive clients currently hold.
type Watcher struct {
	dir     string
	server  *Server
	changes *ChangeTracker
	fsw     *fsnotify.Watcher
	log     zerolog.Logger
}

func NewWatcher(dir string, server *Server, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:     abs,
		server:  server,
		changes: NewChangeTracker(),
		fsw:     fsw,
		log:     log,
	}
	if err := w.addTree(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// ModuleKey maps a file below the watched directory to the key clients use,
// e.g. "./components/cart.js".
func (w *Watcher) ModuleKey(path string) (string, bool) {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "./" + filepath.ToSlash(rel), true
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			_, _ = w.changes.DetectChange(path)
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.changes.Forget(ev.Name)
		return
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", ev.Name).Msg("watch new directory")
			}
			return
		}
	case !ev.Has(fsnotify.Write):
		return
	}

	changed, err := w.changes.DetectChange(ev.Name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn().Err(err).Str("file", ev.Name).Msg("read changed file")
		}
		return
	}
	if !changed {
		return
	}

	key, ok := w.ModuleKey(ev.Name)
	if !ok || !w.server.Active.IsActive(key) {
		w.log.Debug().Str("file", ev.Name).Msg("change to inactive module ignored")
		return
	}
	w.server.BroadcastUpdate("recompiled "+key, key)
}
