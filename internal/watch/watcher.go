// Package watch observes the data directory for edits made outside crewrun.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	atomicio "github.com/sawpanic/crewrun/internal/io"
)

// DefaultDebounce collapses the burst of events a spreadsheet save produces.
const DefaultDebounce = 500 * time.Millisecond

// Handler receives the base names of files that settled after a change.
type Handler func(ctx context.Context, files []string)

// Watcher reports changes to a fixed set of files in one directory.
type Watcher struct {
	dir      string
	names    map[string]bool
	debounce time.Duration
	handler  Handler

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a watcher for the named files in dir.
func New(dir string, names []string, handler Handler) *Watcher {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[filepath.Base(n)] = true
	}
	return &Watcher{
		dir:      dir,
		names:    set,
		debounce: DefaultDebounce,
		handler:  handler,
		pending:  make(map[string]time.Time),
	}
}

// WithDebounce overrides the settle interval.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	// rename-based writes replace the inode, so watch the directory, not the files
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	log.Info().Str("dir", w.dir).Dur("debounce", w.debounce).Msg("watching data directory")

	tick := w.debounce / 4
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.record(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		case <-ticker.C:
			if files := w.settled(time.Now()); len(files) > 0 {
				w.handler(ctx, files)
			}
		}
	}
}

func (w *Watcher) record(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, atomicio.TempSuffix) || !w.names[name] {
		return
	}
	log.Debug().Str("file", name).Str("op", event.Op.String()).Msg("data file event")

	w.mu.Lock()
	w.pending[name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []string
	for name, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			out = append(out, name)
			delete(w.pending, name)
		}
	}
	sort.Strings(out)
	return out
}
