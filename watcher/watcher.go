// Package watcher reruns an action whenever a file is rewritten.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Watch blocks until ctx is done, calling onChange once after each burst of
// writes to path has been quiet for debounce. onChange runs on the calling
// goroutine; its errors are logged and watching continues.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer w.Close()

	// Editors and linkers often replace the file, so watch the directory.
	name := filepath.Clean(path)
	dir := filepath.Dir(name)
	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	log.Info().Msgf("Watching %s for changes", name)

	var quiet <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			log.Trace().Msgf("File event %s", ev)
			quiet = time.After(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")
		case <-quiet:
			quiet = nil
			log.Debug().Msgf("%s changed", name)
			if err := onChange(); err != nil {
				log.Error().Err(err).Msg("Reload failed")
			}
		}
	}
}
