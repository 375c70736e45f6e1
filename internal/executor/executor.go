// Package executor runs one tool invocation and turns every outcome into a
// Result value.
//
// Execution is total: script errors, panics in Go code, unknown names and
// cancellation all come back as an InvocationFailure. Nothing a tool does can
// propagate out of Execute.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/loader"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// InvocationRequest names a tool and carries its arguments.
type InvocationRequest struct {
	ToolName  string
	Arguments map[string]any
}

// Result is the outcome of one invocation. Exactly one of Value and Failure
// is meaningful.
type Result struct {
	ID      string
	Tool    string
	Value   any
	Failure *toolerrors.InvocationFailure
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Observation describes one finished invocation.
type Observation struct {
	ID       string
	Tool     string
	Builtin  bool
	Duration time.Duration

	// Kind is empty on success.
	Kind toolerrors.Kind
}

// Observer receives one observation per invocation.
type Observer interface {
	ObserveInvocation(ctx context.Context, obs Observation)
}

// Catalog is the read side of the registry the executor resolves names
// against.
type Catalog interface {
	Snapshot() *registry.Snapshot
}

// Config holds executor configuration.
type Config struct {
	// CallTimeout bounds each invocation. Zero means no limit.
	CallTimeout time.Duration

	// Observer is optional.
	Observer Observer

	// Logger is optional; nil discards. Script print() output goes here.
	Logger *slog.Logger
}

// Executor dispatches invocations to scripts or built-in handlers.
type Executor struct {
	catalog     Catalog
	cfg         Config
	log         *slog.Logger
	predeclared starlark.StringDict
}

// New creates an executor resolving names through catalog.
func New(catalog Catalog, cfg Config) *Executor {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Executor{
		catalog:     catalog,
		cfg:         cfg,
		log:         log.With("component", "executor"),
		predeclared: Predeclared(),
	}
}

// Predeclared returns the global environment every tool module executes in.
func Predeclared() starlark.StringDict {
	env := starlark.StringDict{
		"json":   starlarkjson.Module,
		"math":   starlarkmath.Module,
		"time":   starlarktime.Module,
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	env.Freeze()

	return env
}

// Execute runs one invocation. It never panics and never returns a Go error;
// every failure is carried by the Result.
func (e *Executor) Execute(ctx context.Context, req InvocationRequest) Result {
	start := time.Now()
	res := Result{
		ID:   ulid.Make().String(),
		Tool: req.ToolName,
	}

	log := e.log.With("tool", req.ToolName, "invocation_id", res.ID)
	log.Debug("Executing tool")

	desc, found := e.catalog.Snapshot().Lookup(req.ToolName)

	if found {
		if e.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
			defer cancel()
		}

		if desc.Builtin {
			res.Value, res.Failure = e.runBuiltin(ctx, desc, req.Arguments)
		} else {
			res.Value, res.Failure = e.runScript(ctx, desc, req.Arguments, log)
		}
	} else {
		res.Failure = &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindUnknownTool,
			Tool:    req.ToolName,
			Message: fmt.Sprintf("unknown tool %q", req.ToolName),
		}
	}

	obs := Observation{
		ID:       res.ID,
		Tool:     req.ToolName,
		Builtin:  found && desc.Builtin,
		Duration: time.Since(start),
	}

	if res.Failure != nil {
		obs.Kind = res.Failure.Kind
		log.Warn("Tool invocation failed", "kind", res.Failure.Kind, "error", res.Failure.Message)
	} else {
		log.Debug("Tool invocation succeeded", "duration", obs.Duration)
	}

	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveInvocation(ctx, obs)
	}

	return res
}

func (e *Executor) runScript(
	ctx context.Context,
	desc *tool.Descriptor,
	arguments map[string]any,
	log *slog.Logger,
) (value any, failure *toolerrors.InvocationFailure) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			failure = panicFailure(desc.Name, r)
		}
	}()

	if ctx.Err() != nil {
		return nil, cancelFailure(ctx, desc.Name)
	}

	thread := &starlark.Thread{
		Name: desc.Name,
		Print: func(_ *starlark.Thread, msg string) {
			log.Info("Tool output", "message", msg)
		},
		Load: loader.ModuleLoader(filepath.Dir(desc.SourcePath), e.predeclared),
	}

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	fn, err := loader.Materialize(thread, desc, e.predeclared)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelFailure(ctx, desc.Name)
		}

		return nil, &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindLoadError,
			Tool:    desc.Name,
			Message: err.Error(),
			Detail:  backtrace(err),
			Err:     err,
		}
	}

	input, err := toStarlarkDict(arguments)
	if err != nil {
		return nil, &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindRuntimeError,
			Tool:    desc.Name,
			Message: err.Error(),
			Err:     err,
		}
	}

	out, err := starlark.Call(thread, fn, starlark.Tuple{input}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelFailure(ctx, desc.Name)
		}

		return nil, &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindRuntimeError,
			Tool:    desc.Name,
			Message: err.Error(),
			Detail:  backtrace(err),
			Err:     err,
		}
	}

	if out == starlark.None {
		return "", nil
	}

	value, err = fromStarlark(out)
	if err != nil {
		return nil, &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindRuntimeError,
			Tool:    desc.Name,
			Message: err.Error(),
			Err:     err,
		}
	}

	return value, nil
}

func (e *Executor) runBuiltin(
	ctx context.Context,
	desc *tool.Descriptor,
	arguments map[string]any,
) (value any, failure *toolerrors.InvocationFailure) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			failure = panicFailure(desc.Name, r)
		}
	}()

	handler, ok := e.catalog.Snapshot().Handler(desc.Name)
	if !ok {
		return nil, &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindLoadError,
			Tool:    desc.Name,
			Message: "built-in tool has no handler",
		}
	}

	if arguments == nil {
		arguments = map[string]any{}
	}

	out, err := handler(ctx, arguments)
	if err != nil {
		return nil, &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindRuntimeError,
			Tool:    desc.Name,
			Message: err.Error(),
			Err:     err,
		}
	}

	value, err = normalizeGo(out)
	if err != nil {
		return nil, &toolerrors.InvocationFailure{
			Kind:    toolerrors.KindRuntimeError,
			Tool:    desc.Name,
			Message: err.Error(),
			Err:     err,
		}
	}

	return value, nil
}

func panicFailure(name string, r any) *toolerrors.InvocationFailure {
	return &toolerrors.InvocationFailure{
		Kind:    toolerrors.KindRuntimeError,
		Tool:    name,
		Message: fmt.Sprintf("panic: %v", r),
		Detail:  string(debug.Stack()),
	}
}

func cancelFailure(ctx context.Context, name string) *toolerrors.InvocationFailure {
	cause := context.Cause(ctx)

	msg := "invocation cancelled"
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "invocation timed out"
	}

	return &toolerrors.InvocationFailure{
		Kind:    toolerrors.KindRuntimeError,
		Tool:    name,
		Message: msg,
		Err:     cause,
	}
}

// backtrace extracts the Starlark call stack from an evaluation error.
func backtrace(err error) string {
	if evalErr, ok := errors.AsType[*starlark.EvalError](err); ok {
		return evalErr.Backtrace()
	}

	return ""
}
