// Package watch refreshes the tool registry when the tools directory changes.
//
// Events are debounced: a burst of writes (an editor saving, a checkout)
// produces one refresh after the directory has been quiet for the debounce
// interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wagiedev/mcp-dynamic-tools/internal/loader"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// Refresher re-scans the tools directory.
type Refresher interface {
	Refresh(ctx context.Context) (registry.Diff, error)
}

// ChangeFunc is called after a refresh that changed the catalog.
type ChangeFunc func(ctx context.Context, diff registry.Diff)

// Config holds watcher configuration.
type Config struct {
	Dir        string
	Extensions []string
	Debounce   time.Duration
	Refresher  Refresher
	OnChange   ChangeFunc
	Logger     *slog.Logger
}

// Watcher turns filesystem events into registry refreshes.
type Watcher struct {
	cfg   Config
	log   *slog.Logger
	ready chan struct{}
}

// New validates cfg and returns a watcher. Call Run to start watching.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("create watcher: directory is required")
	}

	if cfg.Refresher == nil {
		return nil, errors.New("create watcher: refresher is required")
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	if len(cfg.Extensions) == 0 {
		cfg.Extensions = loader.DefaultExtensions
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Watcher{
		cfg:   cfg,
		log:   log.With("component", "watch", "dir", cfg.Dir),
		ready: make(chan struct{}),
	}, nil
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. It returns nil on cancellation and an
// error if the directory cannot be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		if err := fw.Close(); err != nil {
			w.log.Debug("Failed to close watcher", "error", err)
		}
	}()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}

	close(w.ready)
	w.log.Info("Watching tools directory", "debounce", w.cfg.Debounce)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if !w.relevant(event) {
				continue
			}

			w.log.Debug("Tools directory event", "name", filepath.Base(event.Name), "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}

			pending = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			w.log.Warn("Watcher error", "error", err)

		case <-pending:
			pending = nil

			w.refresh(ctx)

		case <-ctx.Done():
			w.log.Debug("Watcher stopped")

			return nil
		}
	}
}

// relevant reports whether an event can change the catalog.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	return !loader.IsPrivate(name) && loader.HasExtension(name, w.cfg.Extensions)
}

func (w *Watcher) refresh(ctx context.Context) {
	diff, err := w.cfg.Refresher.Refresh(ctx)
	if err != nil {
		w.log.Warn("Refresh after change failed", "error", err)

		return
	}

	if diff.Empty() {
		return
	}

	w.log.Debug("Catalog changed on disk",
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"changed", len(diff.Changed),
	)

	if w.cfg.OnChange != nil {
		w.cfg.OnChange(ctx, diff)
	}
}
