// Package builtin holds tools implemented in Go and served alongside the
// script tools.
package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/loader"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// WriteToolName is the catalog name of the tool-authoring built-in.
const WriteToolName = "write_tool"

// Refresher re-scans the catalog after a tool file changes.
type Refresher interface {
	Refresh(ctx context.Context) (registry.Diff, error)
}

// WriterConfig configures the write_tool built-in.
type WriterConfig struct {
	// Dir is the tools directory new files are written to.
	Dir string

	// Extension is appended to tool names. Empty means the first default
	// extension.
	Extension string

	// Reserved names cannot be written, typically the built-in names.
	Reserved []string

	// Refresher is called after every successful write.
	Refresher Refresher

	// Logger is optional; nil discards.
	Logger *slog.Logger
}

// Writer implements write_tool: it validates Starlark source statically,
// writes it atomically into the tools directory and refreshes the catalog.
type Writer struct {
	cfg WriterConfig
	log *slog.Logger
}

// NewWriter creates a write_tool implementation.
func NewWriter(cfg WriterConfig) *Writer {
	if cfg.Extension == "" {
		cfg.Extension = loader.DefaultExtensions[0]
	}

	if !slices.Contains(cfg.Reserved, WriteToolName) {
		cfg.Reserved = append(slices.Clone(cfg.Reserved), WriteToolName)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Writer{
		cfg: cfg,
		log: log.With("component", "write_tool"),
	}
}

// Builtin returns the catalog entry for write_tool.
func (w *Writer) Builtin() tool.Builtin {
	return tool.Builtin{
		Descriptor: &tool.Descriptor{
			Name:    WriteToolName,
			Summary: "Create or replace a dynamic tool by writing Starlark source to the tools directory",
			Parameters: []tool.Parameter{
				{
					Name:        "name",
					Description: "Name of the tool, without the " + w.cfg.Extension + " extension",
					Required:    true,
				},
				{
					Name:        "content",
					Description: "Starlark source defining invoke(arguments) with a docstring",
					Required:    true,
				},
			},
		},
		Handler: w.Handle,
	}
}

// Handle is the tool handler.
func (w *Writer) Handle(ctx context.Context, arguments map[string]any) (any, error) {
	name, err := stringArgument(arguments, "name")
	if err != nil {
		return nil, err
	}

	content, err := stringArgument(arguments, "content")
	if err != nil {
		return nil, err
	}

	name = strings.TrimSuffix(name, w.cfg.Extension)

	if loader.IsPrivate(name) {
		return nil, fmt.Errorf("%w: %q is a private name", toolerrors.ErrInvalidToolName, name)
	}

	if slices.Contains(w.cfg.Reserved, name) {
		return nil, fmt.Errorf("%w: %q", toolerrors.ErrToolExists, name)
	}

	path := filepath.Join(w.cfg.Dir, name+w.cfg.Extension)

	if _, failure := loader.Parse(name, path, []byte(content)); failure != nil {
		return nil, fmt.Errorf("invalid tool source: %w", failure)
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil

	if err := writeAtomic(w.cfg.Dir, path, []byte(content)); err != nil {
		return nil, fmt.Errorf("write tool file: %w", err)
	}

	w.log.Info("Wrote tool file", "tool", name, "path", path, "replaced", existed)

	if w.cfg.Refresher != nil {
		if _, err := w.cfg.Refresher.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh catalog: %w", err)
		}
	}

	verb := "created"
	if existed {
		verb = "updated"
	}

	return fmt.Sprintf("Successfully %s tool '%s' at %s", verb, name, path), nil
}

func stringArgument(arguments map[string]any, key string) (string, error) {
	raw, ok := arguments[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("'%s' parameter is required", key)
	}

	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("'%s' parameter must be a string", key)
	}

	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("'%s' parameter is required", key)
	}

	return s, nil
}

// writeAtomic writes data next to path under a private name and renames it
// into place, so scanners never see a partial file.
func writeAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".write-*.tmp")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
