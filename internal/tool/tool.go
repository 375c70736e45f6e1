// Package tool defines the descriptor shared by the loader, registry and
// executor.
package tool

import (
	"context"
	"time"
)

// Parameter is one entry of a tool's "Parameters:" docstring block.
type Parameter struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Default     *string `json:"default,omitempty"`
	Required    bool    `json:"required"`
}

// Descriptor is the registry's metadata record for one tool.
//
// Descriptors are immutable once published in a registry snapshot: a re-scan
// replaces them rather than mutating them.
type Descriptor struct {
	Name       string      `json:"name"`
	Summary    string      `json:"summary"`
	Parameters []Parameter `json:"parameters"`

	// SourcePath is the backing file. Never serialized to clients.
	SourcePath string `json:"-"`

	ModTime time.Time `json:"-"`
	Size    int64     `json:"-"`
	Digest  string    `json:"-"`

	// Builtin marks descriptors served by Go code rather than a file.
	Builtin bool `json:"-"`
}

// SameSource reports whether d and other were built from identical file
// contents at the same location.
func (d *Descriptor) SameSource(other *Descriptor) bool {
	return d.SourcePath == other.SourcePath && d.Digest == other.Digest
}

// Handler runs a built-in tool. The returned value goes through the same
// normalization as script results.
type Handler func(ctx context.Context, arguments map[string]any) (any, error)

// Builtin pairs a descriptor with its Go implementation.
type Builtin struct {
	Descriptor *Descriptor
	Handler    Handler
}
