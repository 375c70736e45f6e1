package dyntools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/mcp-dynamic-tools/internal/builtin"
	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/loader"
	"github.com/wagiedev/mcp-dynamic-tools/internal/protocol"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
	"github.com/wagiedev/mcp-dynamic-tools/internal/transport"
	"github.com/wagiedev/mcp-dynamic-tools/internal/watch"
)

// WriteToolName is the catalog name of the write_tool built-in.
const WriteToolName = builtin.WriteToolName

// Server owns the tool registry and serves it to protocol sessions.
//
// A Server is safe for concurrent use. Each call to Serve runs one session;
// several sessions may share a server.
type Server struct {
	opts     *ServerOptions
	log      *slog.Logger
	registry *registry.Registry
	executor *executor.Executor

	sessionsMu   sync.Mutex
	sessions     map[*protocol.Session]struct{}
	lastNotified string
}

// New creates a server and performs the initial scan of the tools directory.
//
// Files that fail validation do not make New fail; they are logged and
// available from Diagnostics. New fails when the tools directory cannot be
// read.
func New(ctx context.Context, opts ...Option) (*Server, error) {
	options := applyOptions(opts)
	normalize(options)

	if options.ToolsDir == "" {
		return nil, errors.New("create server: tools directory is required")
	}

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	s := &Server{
		opts:     options,
		log:      log.With("component", "server"),
		sessions: make(map[*protocol.Session]struct{}),
	}

	builtins := slices.Clone(options.Builtins)

	if options.WriteTool {
		reserved := make([]string, 0, len(builtins))
		for _, b := range builtins {
			if b.Descriptor != nil {
				reserved = append(reserved, b.Descriptor.Name)
			}
		}

		writer := builtin.NewWriter(builtin.WriterConfig{
			Dir:       options.ToolsDir,
			Extension: options.Extensions[0],
			Reserved:  reserved,
			Refresher: s,
			Logger:    log,
		})

		builtins = append(builtins, writer.Builtin())
	}

	regCfg := registry.Config{
		Dir:        options.ToolsDir,
		Extensions: options.Extensions,
		Builtins:   builtins,
		Logger:     log,
	}

	execCfg := executor.Config{
		CallTimeout: options.CallTimeout,
		Logger:      log,
	}

	// A nil Observer must stay a nil interface in the component configs.
	if options.Observer != nil {
		regCfg.Observer = options.Observer
		execCfg.Observer = options.Observer
	}

	reg, err := registry.New(regCfg)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}

	s.registry = reg
	s.executor = executor.New(reg, execCfg)

	if _, err := reg.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("scan tools directory: %w", err)
	}

	s.logSummary()

	return s, nil
}

func normalize(o *ServerOptions) {
	if len(o.Extensions) == 0 {
		o.Extensions = loader.DefaultExtensions
	}

	if o.ServerName == "" {
		o.ServerName = DefaultServerName
	}

	if o.ServerVersion == "" {
		o.ServerVersion = Version
	}

	if o.MaxConcurrentCalls < 1 {
		o.MaxConcurrentCalls = 1
	}
}

// logSummary reports the outcome of the initial scan.
func (s *Server) logSummary() {
	snap := s.registry.Snapshot()

	for _, failure := range snap.Failures() {
		s.log.Warn("Tool file rejected",
			"path", failure.Path,
			"kind", failure.Kind,
			"line", failure.Line,
			"error", failure.Message,
		)
	}

	valid := 0

	for _, desc := range snap.Descriptors() {
		if !desc.Builtin {
			valid++
		}
	}

	s.log.Info("Loaded tools",
		"dir", s.opts.ToolsDir,
		"valid", valid,
		"total", snap.Candidates(),
		"builtins", snap.Len()-valid,
	)

	if valid == 0 {
		s.log.Warn("No valid tools found", "dir", s.opts.ToolsDir)
	}
}

// Options returns the effective options.
func (s *Server) Options() ServerOptions {
	return *s.opts
}

// Catalog returns the tools currently served, in catalog order: built-ins
// first, then discovered tools alphabetically.
func (s *Server) Catalog() []*Descriptor {
	return s.registry.Catalog()
}

// Lookup returns the descriptor of one tool.
func (s *Server) Lookup(name string) (*Descriptor, bool) {
	return s.registry.Lookup(name)
}

// Diagnostics returns the files rejected by the last successful scan.
func (s *Server) Diagnostics() []ValidationFailure {
	return s.registry.Failures()
}

// Revision identifies the scan behind the current catalog.
func (s *Server) Revision() string {
	return s.registry.Snapshot().Revision()
}

// Refresh re-scans the tools directory. When the catalog changed, every
// ready session is sent notifications/tools/list_changed.
func (s *Server) Refresh(ctx context.Context) (Diff, error) {
	diff, err := s.registry.Refresh(ctx)
	if err != nil {
		return Diff{}, err
	}

	if !diff.Empty() {
		s.notifyToolsChanged(ctx, diff.Revision)
	}

	return diff, nil
}

// Call invokes one tool outside of any session.
func (s *Server) Call(ctx context.Context, name string, arguments map[string]any) Result {
	return s.executor.Execute(ctx, InvocationRequest{
		ToolName:  name,
		Arguments: arguments,
	})
}

// Serve runs one protocol session over t until the client disconnects, sends
// shutdown, or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, t Transport) error {
	sess := protocol.NewSession(t, s.registry, s.executor, protocol.Config{
		ServerName:         s.opts.ServerName,
		ServerVersion:      s.opts.ServerVersion,
		Instructions:       s.opts.Instructions,
		RefreshOnList:      s.opts.RefreshOnList,
		MaxConcurrentCalls: s.opts.MaxConcurrentCalls,
		Logger:             s.opts.Logger,
	})

	s.sessionsMu.Lock()
	s.sessions[sess] = struct{}{}
	s.sessionsMu.Unlock()

	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, sess)
		s.sessionsMu.Unlock()
	}()

	return sess.Serve(ctx)
}

// ServeStdio serves one session over standard input and output. With
// WithWatch, the tools directory is watched for as long as the session runs.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.ServeStream(ctx, os.Stdin, os.Stdout)
}

// ServeStream serves one session over line-delimited JSON-RPC on in and out,
// closing both when the session ends if they implement io.Closer.
func (s *Server) ServeStream(ctx context.Context, in io.Reader, out io.Writer) error {
	var opts []transport.Option
	if s.opts.MaxMessageSize > 0 {
		opts = append(opts, transport.WithMaxMessageSize(s.opts.MaxMessageSize))
	}

	stream := transport.NewStream(s.log, in, out, opts...)
	defer func() {
		if err := stream.Close(); err != nil {
			s.log.Debug("Failed to close stream transport", "error", err)
		}
	}()

	if !s.opts.Watch {
		return s.Serve(ctx, stream)
	}

	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gctx)

	// Without a watcher the catalog still refreshes on tools/list.
	g.Go(func() error {
		if err := s.Watch(watchCtx); err != nil {
			s.log.Warn("Tools directory watcher stopped", "error", err)
		}

		return nil
	})

	g.Go(func() error {
		defer stopWatch()

		return s.Serve(gctx, stream)
	})

	return g.Wait()
}

// Watch refreshes the catalog whenever the tools directory changes and
// notifies ready sessions. It blocks until ctx is cancelled.
func (s *Server) Watch(ctx context.Context) error {
	w, err := watch.New(watch.Config{
		Dir:        s.opts.ToolsDir,
		Extensions: s.opts.Extensions,
		Debounce:   s.opts.WatchDebounce,
		Refresher:  s.registry,
		OnChange: func(ctx context.Context, diff registry.Diff) {
			s.notifyToolsChanged(ctx, diff.Revision)
		},
		Logger: s.opts.Logger,
	})
	if err != nil {
		return err
	}

	return w.Run(ctx)
}

// notifyToolsChanged sends notifications/tools/list_changed to every ready
// session, once per published revision: a write_tool call and a watcher
// sharing one scan report it a single time.
func (s *Server) notifyToolsChanged(ctx context.Context, revision string) {
	s.sessionsMu.Lock()
	if revision != "" && revision == s.lastNotified {
		s.sessionsMu.Unlock()

		return
	}

	s.lastNotified = revision
	sessions := make([]*protocol.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()

	for _, sess := range sessions {
		if err := sess.NotifyToolsChanged(ctx); err != nil {
			s.log.Debug("Failed to notify session", "session_id", sess.ID(), "error", err)
		}
	}
}
