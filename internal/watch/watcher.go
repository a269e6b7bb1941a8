// Package watch monitors a local media directory and triggers batch passes
// when new media files appear.
package watch

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/avscribe/av-engine/internal/media"
)

// TriggerFunc runs one batch pass. Invocations never overlap.
type TriggerFunc func(ctx context.Context)

// Watcher monitors a directory for new media files. Events are debounced
// per file, then coalesced into at most one pending batch pass.
type Watcher struct {
	dir     string
	trigger TriggerFunc
	log     zerolog.Logger

	watcher *fsnotify.Watcher
	pending chan struct{}

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	runs atomic.Int64
}

const debounceDelay = 500 * time.Millisecond

func New(dir string, trigger TriggerFunc, log zerolog.Logger) *Watcher {
	return &Watcher{
		dir:            dir,
		trigger:        trigger,
		log:            log.With().Str("component", "watcher").Logger(),
		pending:        make(chan struct{}, 1),
		debounceTimers: make(map[string]*time.Timer),
	}
}

// Start initializes the fsnotify watcher and begins watching. Only the
// top-level directory is watched, matching the non-recursive source
// listing: a file in a subdirectory would never be listed, so its events
// must not trigger passes. Runs until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	w.log.Info().
		Str("watch_dir", w.dir).
		Msg("file watcher initialized")

	go w.watchLoop(ctx)
	go w.runLoop(ctx)
	return nil
}

// Stop closes the fsnotify watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.log.Info().Int64("runs", w.runs.Load()).Msg("file watcher stopped")
}

// watchLoop processes fsnotify events.
func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			// Directories are not media, even when named like one.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				continue
			}

			if !media.Supported(event.Name) {
				continue
			}

			w.scheduleTrigger(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleTrigger debounces per file, then marks a batch pass as pending.
// Coalescing rapid Create+Write events ensures the file is fully written
// before the pass picks it up.
func (w *Watcher) scheduleTrigger(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(debounceDelay)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(debounceDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.log.Debug().Str("path", path).Msg("media file settled, batch pass pending")
		select {
		case w.pending <- struct{}{}:
		default:
		}
	})
}

// runLoop serializes batch passes: one at a time, at most one queued.
func (w *Watcher) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.pending:
			w.runs.Add(1)
			w.trigger(ctx)
		}
	}
}
