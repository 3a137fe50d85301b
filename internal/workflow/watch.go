package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay is how long the working directory has to stay quiet
// before a change triggers a reindex.
const DefaultWatchDelay = 2 * time.Second

// Watch calls trigger once the document directories of workdir stopped
// changing for delay. The workdir and every document directory in it are
// watched, hidden entries (the index, the lock, temporary files) are
// ignored. Watch blocks until ctx is done.
func Watch(ctx context.Context, workdir string, delay time.Duration, trigger func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.WarnContext(ctx, "closing watcher", "error", err)
		}
	}()

	if err := w.Add(workdir); err != nil {
		return fmt.Errorf("watching %s: %w", workdir, err)
	}
	entries, err := os.ReadDir(workdir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", workdir, err)
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			watchDir(ctx, w, filepath.Join(workdir, e.Name()))
		}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	arm := func() {
		if timer == nil {
			timer = time.AfterFunc(delay, trigger)
			return
		}
		timer.Reset(delay)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				arm()
				continue
			}
			slog.WarnContext(ctx, "watching workdir", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(workdir, ev) {
				continue
			}
			slog.DebugContext(ctx, "workdir changed", "path", ev.Name, "op", ev.Op.String())
			if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == filepath.Clean(workdir) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					watchDir(ctx, w, ev.Name)
				}
			}
			arm()
		}
	}
}

func watchDir(ctx context.Context, w *fsnotify.Watcher, dir string) {
	if err := w.Add(dir); err != nil {
		slog.WarnContext(ctx, "watching document", "path", dir, "error", err)
	}
}

// relevant reports whether ev touches a document: a directory directly in
// workdir or a file inside one.
func relevant(workdir string, ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(workdir, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if hidden(p) {
			return false
		}
	}
	return true
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
