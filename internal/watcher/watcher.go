// Package watcher re-extracts phase names whenever the task module changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/QTest-hq/phasescan/internal/phases"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the quiet period after the last write before a rescan
const DefaultDebounce = 200 * time.Millisecond

// Update is delivered after every scan
type Update struct {
	Path   string
	Phases []string
	Err    error
	At     time.Time
}

// Watcher watches a single source file.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename-and-replace keep being observed.
type Watcher struct {
	path      string
	extractor *phases.Extractor
	debounce  time.Duration
}

// New creates a watcher for path
func New(path string, extractor *phases.Extractor, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: abs, extractor: extractor, debounce: debounce}, nil
}

// Path returns the watched file
func (w *Watcher) Path() string {
	return w.path
}

// Run performs an initial scan, then rescans after each debounced change
// until ctx is done. fn is called from the Run goroutine only.
func (w *Watcher) Run(ctx context.Context, fn func(Update)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	log.Debug().Str("file", w.path).Dur("debounce", w.debounce).Msg("watching for changes")

	fn(w.scan(ctx))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")
			timer.Reset(w.debounce)

		case <-timer.C:
			fn(w.scan(ctx))

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (w *Watcher) scan(ctx context.Context) Update {
	names, err := w.extractor.Extract(ctx, w.path)
	return Update{Path: w.path, Phases: names, Err: err, At: time.Now()}
}
