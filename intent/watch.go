package intent

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the rules file whenever it changes, until ctx is done. A
// reload that fails to parse keeps the previous ruleset. The parent directory
// is watched rather than the file itself so editors that replace the file
// (rename-over) keep triggering.
func (c *Classifier) Watch(ctx context.Context, path string, log *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		// Best-effort watcher close; no actionable error handling path.
		_ = w.Close()
	}()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := c.reload(path); err != nil {
				log.Warn("intent.rules.reload.err", slog.String("err", err.Error()))
				continue
			}
			log.Info("intent.rules.reloaded", slog.String("path", path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("intent.watch.err", slog.String("err", err.Error()))
		}
	}
}
