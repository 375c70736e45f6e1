package dyntools

import (
	"github.com/wagiedev/mcp-dynamic-tools/internal/config"
	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// ===== Options and Configuration =====

// ServerOptions configures a Server.
type ServerOptions = config.Options

// Observer receives invocation and scan observations. The telemetry package
// of the CLI provides an OpenTelemetry implementation.
type Observer = config.Observer

// ===== Catalog =====

// Descriptor is the catalog record of one tool.
type Descriptor = tool.Descriptor

// Parameter is one documented tool parameter.
type Parameter = tool.Parameter

// Handler implements a built-in tool.
type Handler = tool.Handler

// Builtin pairs a descriptor with its Go implementation.
type Builtin = tool.Builtin

// Diff lists the tool names that changed between two scans.
type Diff = registry.Diff

// ScanStats summarizes one directory scan.
type ScanStats = registry.ScanStats

// ===== Invocation =====

// InvocationRequest names a tool and carries its arguments.
type InvocationRequest = executor.InvocationRequest

// Result is the outcome of one invocation.
type Result = executor.Result

// Observation describes one finished invocation.
type Observation = executor.Observation
