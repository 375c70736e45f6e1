package registry

import (
	"slices"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// Snapshot is an immutable view of the catalog produced by one scan.
type Snapshot struct {
	revision    string
	descriptors map[string]*tool.Descriptor
	handlers    map[string]tool.Handler
	order       []string
	failures    []toolerrors.ValidationFailure
	total       int
}

// Revision identifies the scan that produced the snapshot.
func (s *Snapshot) Revision() string {
	return s.revision
}

// Lookup returns the descriptor registered under name.
func (s *Snapshot) Lookup(name string) (*tool.Descriptor, bool) {
	desc, ok := s.descriptors[name]

	return desc, ok
}

// Handler returns the Go handler of a built-in tool.
func (s *Snapshot) Handler(name string) (tool.Handler, bool) {
	h, ok := s.handlers[name]

	return h, ok
}

// Names returns tool names in catalog order: built-ins first in registration
// order, then discovered tools alphabetically.
func (s *Snapshot) Names() []string {
	return slices.Clone(s.order)
}

// Descriptors returns the catalog in catalog order.
func (s *Snapshot) Descriptors() []*tool.Descriptor {
	out := make([]*tool.Descriptor, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.descriptors[name])
	}

	return out
}

// Failures returns the diagnostics collected by the scan, in file order.
func (s *Snapshot) Failures() []toolerrors.ValidationFailure {
	return slices.Clone(s.failures)
}

// Len is the number of registered tools, built-ins included.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Candidates is the number of tool files the scan considered.
func (s *Snapshot) Candidates() int {
	return s.total
}

// Diff lists the tool names that differ between two snapshots.
type Diff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`

	// Revision is the snapshot a refresh published. Compare leaves it empty.
	Revision string `json:"revision,omitempty"`
}

// Empty reports whether the catalog is unchanged.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare computes the diff from old to next. A nil old snapshot counts as
// empty.
func Compare(old, next *Snapshot) Diff {
	var diff Diff

	for _, name := range next.order {
		prev, ok := old.lookup(name)
		if !ok {
			diff.Added = append(diff.Added, name)

			continue
		}

		if !prev.SameSource(next.descriptors[name]) {
			diff.Changed = append(diff.Changed, name)
		}
	}

	if old != nil {
		for _, name := range old.order {
			if _, ok := next.descriptors[name]; !ok {
				diff.Removed = append(diff.Removed, name)
			}
		}
	}

	return diff
}

func (s *Snapshot) lookup(name string) (*tool.Descriptor, bool) {
	if s == nil {
		return nil, false
	}

	return s.Lookup(name)
}
