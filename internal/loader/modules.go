package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"
)

// LoadFunc resolves load() statements for a thread.
type LoadFunc func(thread *starlark.Thread, module string) (starlark.StringDict, error)

type moduleEntry struct {
	globals starlark.StringDict
	err     error
}

// ModuleLoader returns a load function resolving module paths relative to
// dir. Private helper files ("_util.star") are the intended targets: they are
// hidden from the catalog but shareable between tools.
//
// The returned function caches modules and is not safe for concurrent use;
// create one per thread.
func ModuleLoader(dir string, predeclared starlark.StringDict) LoadFunc {
	cache := make(map[string]*moduleEntry)

	return func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
		if !filepath.IsLocal(module) {
			return nil, fmt.Errorf("load %q: module path must be relative to the tools directory", module)
		}

		path := filepath.Join(dir, module)

		if entry, ok := cache[path]; ok {
			if entry == nil {
				return nil, fmt.Errorf("load %q: import cycle", module)
			}

			return entry.globals, entry.err
		}

		// Mark in progress so a cycle is detected instead of recursing.
		cache[path] = nil

		src, err := os.ReadFile(path)
		if err != nil {
			err = fmt.Errorf("load %q: %w", module, err)
			cache[path] = &moduleEntry{err: err}

			return nil, err
		}

		globals, err := starlark.ExecFileOptions(FileOptions(), thread, path, src, predeclared)
		cache[path] = &moduleEntry{globals: globals, err: err}

		return globals, err
	}
}
