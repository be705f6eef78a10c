package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 150 * time.Millisecond

// Watcher re-exports a script whenever it changes on disk.
type Watcher struct {
	app      *App
	src, dst string

	Debounce time.Duration
	// OnExport, if set, is called after every export attempt.
	OnExport func(err error)
}

// NewWatcher returns a watcher exporting src to dst through app.
func NewWatcher(app *App, src, dst string) *Watcher {
	return &Watcher{app: app, src: filepath.Clean(src), dst: dst, Debounce: DefaultDebounce}
}

// Run exports once, then again after each change, until ctx is done.
// The parent directory is watched because many editors save by renaming
// a new file over the old one.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.src)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.src), err)
	}
	w.app.log.Info("watching", "script", w.src, "output", w.dst)
	w.export(ctx)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.src {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.app.log.Debug("script changed", "op", ev.Op.String())
			pending = time.After(w.Debounce)

		case <-pending:
			pending = nil
			w.export(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.app.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) export(ctx context.Context) {
	err := w.app.Export(ctx, w.src, w.dst)
	if err == nil {
		w.app.log.Info("exported", "script", w.src, "output", w.dst)
	}
	if w.OnExport != nil {
		w.OnExport(err)
	}
}
