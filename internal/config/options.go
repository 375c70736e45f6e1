// Package config holds the server options and the settings file that feeds
// them.
package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// Observer receives invocation and scan observations.
type Observer interface {
	executor.Observer
	registry.ScanObserver
}

// Options configures a dynamic tools server.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ToolsDir is the directory scanned for tool files.
	ToolsDir string

	// Extensions selects tool files. Empty means ".star".
	Extensions []string

	// ServerName and ServerVersion are reported in the initialize response.
	ServerName    string
	ServerVersion string

	// Instructions are passed to clients during initialize.
	Instructions string

	// RefreshOnList re-scans the tools directory before every tools/list.
	RefreshOnList bool

	// WriteTool registers the write_tool built-in.
	WriteTool bool

	// Watch refreshes the catalog on filesystem changes and notifies
	// connected sessions.
	Watch bool

	// WatchDebounce is the quiet period before a watch-triggered refresh.
	// Zero uses the watcher default.
	WatchDebounce time.Duration

	// MaxConcurrentCalls above 1 lets tools/call requests of one session run
	// concurrently.
	MaxConcurrentCalls int

	// CallTimeout bounds each invocation. Zero means no limit.
	CallTimeout time.Duration

	// MaxMessageSize bounds one protocol line. Zero uses the transport default.
	MaxMessageSize int

	// Observer receives telemetry. If nil, nothing is recorded.
	Observer Observer

	// Builtins are served ahead of every discovered tool.
	Builtins []tool.Builtin
}
