package dyntools

import (
	"log/slog"
	"time"

	"github.com/wagiedev/mcp-dynamic-tools/internal/loader"
)

// DefaultServerName is reported to clients unless WithServerInfo overrides it.
const DefaultServerName = "mcp-dynamic-tools"

// Option configures ServerOptions using the functional options pattern.
type Option func(*ServerOptions)

// applyOptions applies functional options on top of the defaults.
func applyOptions(opts []Option) *ServerOptions {
	options := &ServerOptions{
		Extensions:         loader.DefaultExtensions,
		ServerName:         DefaultServerName,
		ServerVersion:      Version,
		RefreshOnList:      true,
		MaxConcurrentCalls: 1,
	}

	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *ServerOptions) {
		o.Logger = logger
	}
}

// WithToolsDir sets the directory scanned for tool files. Required.
func WithToolsDir(dir string) Option {
	return func(o *ServerOptions) {
		o.ToolsDir = dir
	}
}

// WithExtensions selects which files are tools, e.g. ".star".
func WithExtensions(exts ...string) Option {
	return func(o *ServerOptions) {
		o.Extensions = exts
	}
}

// WithServerInfo sets the name and version reported during initialize.
func WithServerInfo(name, version string) Option {
	return func(o *ServerOptions) {
		o.ServerName = name
		o.ServerVersion = version
	}
}

// WithInstructions sets the instructions sent to clients during initialize.
func WithInstructions(instructions string) Option {
	return func(o *ServerOptions) {
		o.Instructions = instructions
	}
}

// ===== Catalog Behavior =====

// WithRefreshOnList controls whether every tools/list re-scans the tools
// directory. Enabled by default.
func WithRefreshOnList(enabled bool) Option {
	return func(o *ServerOptions) {
		o.RefreshOnList = enabled
	}
}

// WithWriteTool registers the write_tool built-in, letting clients create and
// replace script tools.
func WithWriteTool(enabled bool) Option {
	return func(o *ServerOptions) {
		o.WriteTool = enabled
	}
}

// WithWatch watches the tools directory while serving stdio and notifies the
// session when the catalog changes. A debounce of zero uses the default.
func WithWatch(enabled bool, debounce time.Duration) Option {
	return func(o *ServerOptions) {
		o.Watch = enabled
		o.WatchDebounce = debounce
	}
}

// WithBuiltins serves Go-implemented tools ahead of the discovered ones.
func WithBuiltins(builtins ...Builtin) Option {
	return func(o *ServerOptions) {
		o.Builtins = append(o.Builtins, builtins...)
	}
}

// ===== Execution =====

// WithMaxConcurrentCalls lets up to n tools/call requests of a session run at
// once. The default of 1 handles every request in arrival order.
func WithMaxConcurrentCalls(n int) Option {
	return func(o *ServerOptions) {
		o.MaxConcurrentCalls = n
	}
}

// WithCallTimeout bounds every invocation. Zero means no limit.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *ServerOptions) {
		o.CallTimeout = timeout
	}
}

// WithMaxMessageSize bounds one protocol line read by ServeStdio.
func WithMaxMessageSize(n int) Option {
	return func(o *ServerOptions) {
		o.MaxMessageSize = n
	}
}

// WithObserver receives invocation and scan observations.
func WithObserver(observer Observer) Option {
	return func(o *ServerOptions) {
		o.Observer = observer
	}
}

// WithOptions replaces the options wholesale, e.g. with ones built from a
// settings file. Later options still apply on top.
func WithOptions(options *ServerOptions) Option {
	return func(o *ServerOptions) {
		if options != nil {
			*o = *options
		}
	}
}
