// Package registry owns the tool catalog.
//
// The catalog is an immutable Snapshot published through an atomic pointer.
// Readers never lock; Refresh builds a new snapshot from disk and swaps it in.
// The registry starts no goroutines of its own: refreshes are triggered by its
// callers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/loader"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// ScanStats summarizes one directory scan.
type ScanStats struct {
	Dir        string
	Candidates int
	Valid      int
	Failed     int
	Duration   time.Duration
	Err        error
}

// ScanObserver receives one observation per scan.
type ScanObserver interface {
	ObserveScan(ctx context.Context, stats ScanStats)
}

// Config holds registry configuration.
type Config struct {
	// Dir is the tools directory. Only its direct entries are considered.
	Dir string

	// Extensions selects tool files. Empty means loader.DefaultExtensions.
	Extensions []string

	// Builtins are registered ahead of every discovered file.
	Builtins []tool.Builtin

	// Observer is optional.
	Observer ScanObserver

	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// Registry is the single source of truth for which tools exist.
type Registry struct {
	cfg     Config
	log     *slog.Logger
	current atomic.Pointer[Snapshot]
	flight  singleflight.Group

	// requests numbers Refresh calls in arrival order.
	requests atomic.Uint64
}

// refreshResult is what one shared scan hands to every caller waiting on it.
type refreshResult struct {
	diff Diff

	// covers is the last request number that arrived before the scan listed
	// the directory.
	covers uint64
}

// New creates a registry holding only the built-in tools. Call Refresh to
// populate it from disk.
func New(cfg Config) (*Registry, error) {
	for _, b := range cfg.Builtins {
		if b.Descriptor == nil || b.Handler == nil {
			return nil, errors.New("register builtin: incomplete definition")
		}

		if !loader.ValidName(b.Descriptor.Name) {
			return nil, fmt.Errorf("register builtin %q: %w", b.Descriptor.Name, toolerrors.ErrInvalidToolName)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := &Registry{
		cfg: cfg,
		log: log.With("component", "registry"),
	}

	snap, err := r.build(nil)
	if err != nil {
		return nil, err
	}

	r.current.Store(snap)

	return r, nil
}

// Dir returns the tools directory.
func (r *Registry) Dir() string {
	return r.cfg.Dir
}

// Extensions returns the configured tool file extensions.
func (r *Registry) Extensions() []string {
	if len(r.cfg.Extensions) == 0 {
		return slices.Clone(loader.DefaultExtensions)
	}

	return slices.Clone(r.cfg.Extensions)
}

// Snapshot returns the current snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Lookup resolves name against the current snapshot.
func (r *Registry) Lookup(name string) (*tool.Descriptor, bool) {
	return r.Snapshot().Lookup(name)
}

// Catalog returns the current descriptors in catalog order.
func (r *Registry) Catalog() []*tool.Descriptor {
	return r.Snapshot().Descriptors()
}

// Failures returns the diagnostics of the last successful scan.
func (r *Registry) Failures() []toolerrors.ValidationFailure {
	return r.Snapshot().Failures()
}

// Refresh re-scans the tools directory and publishes the result. Concurrent
// callers share a single scan and receive the same diff, but a caller never
// settles for a scan that listed the directory before the caller arrived:
// when Refresh returns, every change made before it was called is visible.
//
// When the directory itself cannot be read the current snapshot is kept and
// the error is returned.
func (r *Registry) Refresh(ctx context.Context) (Diff, error) {
	ticket := r.requests.Add(1)

	for {
		v, err, shared := r.flight.Do("refresh", func() (any, error) {
			covers := r.requests.Load()
			diff, err := r.refresh(ctx)

			return refreshResult{diff: diff, covers: covers}, err
		})
		if err != nil {
			return Diff{}, err
		}

		res, _ := v.(refreshResult)
		if res.covers >= ticket {
			if shared {
				r.log.Debug("Coalesced refresh request", "revision", res.diff.Revision)
			}

			return res.diff, nil
		}

		r.log.Debug("Joined scan started before the request; scanning again")
	}
}

func (r *Registry) refresh(ctx context.Context) (Diff, error) {
	start := time.Now()

	files, err := r.listFiles()
	if err != nil {
		r.observe(ctx, ScanStats{Dir: r.cfg.Dir, Duration: time.Since(start), Err: err})
		r.log.Error("Failed to scan tools directory", "dir", r.cfg.Dir, "error", err)

		return Diff{}, err
	}

	if err := ctx.Err(); err != nil {
		return Diff{}, err
	}

	next, err := r.build(files)
	if err != nil {
		return Diff{}, err
	}

	prev := r.current.Swap(next)

	diff := Compare(prev, next)
	diff.Revision = next.revision

	stats := ScanStats{
		Dir:        r.cfg.Dir,
		Candidates: next.total,
		Valid:      next.Len() - len(r.cfg.Builtins),
		Failed:     len(next.failures),
		Duration:   time.Since(start),
	}
	r.observe(ctx, stats)

	r.log.Debug("Scanned tools directory",
		"dir", r.cfg.Dir,
		"valid", stats.Valid,
		"total", stats.Candidates,
		"revision", next.revision,
	)

	if !diff.Empty() {
		r.log.Info("Tool catalog changed",
			"added", diff.Added,
			"removed", diff.Removed,
			"changed", diff.Changed,
		)
	}

	return diff, nil
}

// Scan validates every tool file in dir without touching any registry. It
// returns the snapshot the files would produce and the failures collected.
func Scan(ctx context.Context, cfg Config) (*Snapshot, []toolerrors.ValidationFailure, error) {
	r, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}

	if _, err := r.Refresh(ctx); err != nil {
		return nil, nil, err
	}

	snap := r.Snapshot()

	return snap, snap.Failures(), nil
}

// listFiles returns candidate tool files in lexical order.
func (r *Registry) listFiles() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", toolerrors.ErrToolsDirNotFound, r.cfg.Dir)
		}

		return nil, fmt.Errorf("read tools directory: %w", err)
	}

	files := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()

		if entry.IsDir() || loader.IsPrivate(name) || !loader.HasExtension(name, r.cfg.Extensions) {
			continue
		}

		files = append(files, filepath.Join(r.cfg.Dir, name))
	}

	// os.ReadDir already sorts by name; keep the order explicit.
	slices.Sort(files)

	return files, nil
}

// build validates files and assembles a snapshot. Built-ins are registered
// first; within the files the first one to claim a name keeps it.
func (r *Registry) build(files []string) (*Snapshot, error) {
	snap := &Snapshot{
		revision:    ulid.Make().String(),
		descriptors: make(map[string]*tool.Descriptor, len(r.cfg.Builtins)+len(files)),
		handlers:    make(map[string]tool.Handler, len(r.cfg.Builtins)),
		order:       make([]string, 0, len(r.cfg.Builtins)+len(files)),
		total:       len(files),
	}

	for _, b := range r.cfg.Builtins {
		name := b.Descriptor.Name
		if _, dup := snap.descriptors[name]; dup {
			return nil, fmt.Errorf("register builtin %q: %w", name, toolerrors.ErrToolExists)
		}

		desc := *b.Descriptor
		desc.Builtin = true

		snap.descriptors[name] = &desc
		snap.handlers[name] = b.Handler
		snap.order = append(snap.order, name)
	}

	discovered := make([]string, 0, len(files))

	for _, path := range files {
		desc, failure := loader.Load(path)
		if failure != nil {
			r.log.Warn("Skipping invalid tool file", "path", path, "kind", failure.Kind, "error", failure.Message)
			snap.failures = append(snap.failures, *failure)

			continue
		}

		if winner, taken := snap.descriptors[desc.Name]; taken {
			owner := winner.SourcePath
			if winner.Builtin {
				owner = "built-in tool"
			}

			failure := toolerrors.ValidationFailure{
				Kind:    toolerrors.KindNameCollision,
				Tool:    desc.Name,
				Path:    path,
				Message: fmt.Sprintf("name %q already provided by %s", desc.Name, owner),
			}

			r.log.Warn("Skipping colliding tool file", "path", path, "tool", desc.Name, "owner", owner)
			snap.failures = append(snap.failures, failure)

			continue
		}

		snap.descriptors[desc.Name] = desc
		discovered = append(discovered, desc.Name)
	}

	slices.Sort(discovered)
	snap.order = append(snap.order, discovered...)

	return snap, nil
}

func (r *Registry) observe(ctx context.Context, stats ScanStats) {
	if r.cfg.Observer != nil {
		r.cfg.Observer.ObserveScan(ctx, stats)
	}
}
