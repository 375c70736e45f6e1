package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	"github.com/wagiedev/mcp-dynamic-tools/internal/registry"
	"github.com/wagiedev/mcp-dynamic-tools/internal/tool"
)

// Transport is the message stream a session runs on.
//
// This interface is satisfied by transport.Stream but allows for testing
// with mock transports.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// Catalog is the session's view of the tool registry.
type Catalog interface {
	Catalog() []*tool.Descriptor
	Refresh(ctx context.Context) (registry.Diff, error)
}

// Invoker runs tool calls.
type Invoker interface {
	Execute(ctx context.Context, req executor.InvocationRequest) executor.Result
}

// State is the lifecycle position of a session.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds the session settings.
type Config struct {
	ServerName    string
	ServerVersion string
	Instructions  string

	// RefreshOnList re-scans the tools directory before every tools/list.
	RefreshOnList bool

	// MaxConcurrentCalls above 1 lets tools/call requests run concurrently.
	// Every other request is still answered in arrival order.
	MaxConcurrentCalls int

	Logger *slog.Logger
}

type handlerFunc func(ctx context.Context, req *jsonrpc.Request) (any, error)

// Session serves one client over one transport.
type Session struct {
	id        string
	log       *slog.Logger
	cfg       Config
	transport Transport
	catalog   Catalog
	invoker   Invoker
	handlers  map[string]handlerFunc

	state atomic.Int32

	// nil when calls run on the read loop.
	calls *semaphore.Weighted

	// In-flight requests, keyed by request id, for notifications/cancelled.
	inFlightMu sync.Mutex
	inFlight   map[string]context.CancelFunc

	errMu    sync.RWMutex
	fatalErr error

	serving   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSession creates a session. Call Serve to start it.
func NewSession(transport Transport, catalog Catalog, invoker Invoker, cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	id := ulid.Make().String()

	s := &Session{
		id:        id,
		log:       log.With("component", "protocol", "session_id", id),
		cfg:       cfg,
		transport: transport,
		catalog:   catalog,
		invoker:   invoker,
		inFlight:  make(map[string]context.CancelFunc, 8),
		done:      make(chan struct{}),
	}

	if cfg.MaxConcurrentCalls > 1 {
		s.calls = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}

	s.handlers = map[string]handlerFunc{
		MethodInitialize: s.handleInitialize,
		MethodPing:       s.handlePing,
		MethodListTools:  s.handleListTools,
		MethodCallTool:   s.handleCallTool,
		MethodShutdown:   s.handleShutdown,
	}

	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done returns a channel that is closed when the session stops.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// FatalError returns the transport error that ended the session, if any.
func (s *Session) FatalError() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()

	return s.fatalErr
}

func (s *Session) setFatalError(err error) {
	s.errMu.Lock()

	if s.fatalErr == nil {
		s.fatalErr = err
	}

	s.errMu.Unlock()

	s.Close()
}

// Close moves the session to Closed and stops Serve. It is safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
	})
}

// Serve reads and answers messages until the input ends, the client sends
// shutdown, Close is called or ctx is cancelled. Those all return nil; a
// transport read failure is returned.
func (s *Session) Serve(ctx context.Context) error {
	if s.State() == StateClosed {
		return toolerrors.ErrSessionClosed
	}

	if !s.serving.CompareAndSwap(false, true) {
		return fmt.Errorf("serve session %s: already serving", s.id)
	}

	ctx, cancel := context.WithCancel(ctx)

	defer func() {
		s.Close()
		s.cancelAllInFlight()
		cancel()
		s.wg.Wait()
		s.log.Info("Session closed")
	}()

	s.log.Info("Session started")

	messages, errs := s.transport.ReadMessages(ctx)

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				s.log.Debug("Input ended")

				return s.drainReadError(errs)
			}

			s.handleMessage(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				s.log.Warn("Transport error", "error", err)
				s.setFatalError(err)

				return fmt.Errorf("read messages: %w", err)
			}

		case <-s.done:
			s.log.Debug("Session stop signal received")

			return nil

		case <-ctx.Done():
			s.log.Debug("Context cancelled in session read loop")

			return nil
		}
	}
}

// drainReadError picks up an error the transport reported just before it
// closed its message channel.
func (s *Session) drainReadError(errs <-chan error) error {
	if errs == nil {
		return nil
	}

	select {
	case err, ok := <-errs:
		if ok && err != nil {
			s.log.Warn("Transport error", "error", err)
			s.setFatalError(err)

			return fmt.Errorf("read messages: %w", err)
		}
	default:
	}

	return nil
}

// handleMessage decodes one line and routes it.
func (s *Session) handleMessage(ctx context.Context, data []byte) {
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		s.log.Debug("Unparseable message", "error", err)
		s.respondError(ctx, jsonrpc.ID{}, &toolerrors.ProtocolFailure{
			Kind:    toolerrors.KindMalformedRequest,
			Message: "parse error: " + err.Error(),
			Err:     err,
		})

		return
	}

	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		s.log.Debug("Invalid JSON-RPC message", "error", err)
		s.respondError(ctx, recoverID(data), &toolerrors.ProtocolFailure{
			Kind:    toolerrors.KindInvalidRequest,
			Message: "invalid request: " + err.Error(),
			Err:     err,
		})

		return
	}

	switch m := msg.(type) {
	case *jsonrpc.Request:
		if !m.IsCall() {
			s.handleNotification(m)

			return
		}

		s.handleRequest(ctx, m)

	case *jsonrpc.Response:
		// The server never issues requests, so responses have nothing to match.
		s.log.Debug("Ignoring response from client", "id", m.ID.Raw())
	}
}

func (s *Session) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	s.log.Debug("Received request", "method", req.Method, "id", req.ID.Raw())

	handler, exists := s.handlers[req.Method]
	if !exists {
		s.respondError(ctx, req.ID, &toolerrors.ProtocolFailure{
			Kind:    toolerrors.KindUnknownMethod,
			Method:  req.Method,
			Message: "method not found: " + req.Method,
		})

		return
	}

	if req.Method == MethodCallTool && s.calls != nil {
		// Acquire on the read loop so calls start in arrival order.
		if err := s.calls.Acquire(ctx, 1); err != nil {
			return
		}

		s.wg.Go(func() {
			defer s.calls.Release(1)

			s.run(ctx, req, handler)
		})

		return
	}

	s.run(ctx, req, handler)

	if req.Method == MethodShutdown {
		s.Close()
	}
}

// run invokes a handler with a cancellable context registered under the
// request id and sends its response.
func (s *Session) run(ctx context.Context, req *jsonrpc.Request, handler handlerFunc) {
	key := idKey(req.ID)
	opCtx, cancel := context.WithCancel(ctx)

	s.inFlightMu.Lock()
	s.inFlight[key] = cancel
	s.inFlightMu.Unlock()

	defer func() {
		s.inFlightMu.Lock()
		delete(s.inFlight, key)
		s.inFlightMu.Unlock()

		cancel()
	}()

	result, err := handler(opCtx, req)
	if err != nil {
		failure, ok := errors.AsType[*toolerrors.ProtocolFailure](err)
		if !ok {
			s.log.Error("Request handler failed", "method", req.Method, "error", err)

			failure = &toolerrors.ProtocolFailure{
				Kind:    toolerrors.KindInternal,
				Method:  req.Method,
				Message: err.Error(),
				Err:     err,
			}
		}

		s.respondError(ctx, req.ID, failure)

		return
	}

	s.respond(ctx, req.ID, result)
}

func (s *Session) handleNotification(req *jsonrpc.Request) {
	switch req.Method {
	case MethodInitialized:
		s.log.Debug("Client finished initialization")

	case MethodCancelled:
		s.handleCancelled(req)

	default:
		s.log.Debug("Ignoring notification", "method", req.Method)
	}
}

// cancelAllInFlight cancels every running request. Called when Serve exits.
func (s *Session) cancelAllInFlight() {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()

	for _, cancel := range s.inFlight {
		cancel()
	}
}

// NotifyToolsChanged tells the client the catalog changed. It does nothing
// unless the session is Ready.
func (s *Session) NotifyToolsChanged(ctx context.Context) error {
	if s.State() != StateReady {
		return nil
	}

	s.log.Debug("Sending tools/list_changed notification")

	return s.notify(ctx, MethodToolsChanged, nil)
}

// respond sends a successful response.
func (s *Session) respond(ctx context.Context, id jsonrpc.ID, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Error("Failed to marshal result", "error", err)
		s.respondError(ctx, id, &toolerrors.ProtocolFailure{
			Kind:    toolerrors.KindInternal,
			Message: "marshal result: " + err.Error(),
			Err:     err,
		})

		return
	}

	data, err := jsonrpc.EncodeMessage(&jsonrpc.Response{ID: id, Result: raw})
	if err != nil {
		s.log.Error("Failed to encode response", "error", err)

		return
	}

	s.send(ctx, data)
}

// nullIDResponse is an error response whose request id could not be read.
// jsonrpc.EncodeMessage omits an absent id; JSON-RPC wants an explicit null.
type nullIDResponse struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      *struct{}      `json:"id"`
	Error   *jsonrpc.Error `json:"error"`
}

// respondError sends an error response.
func (s *Session) respondError(ctx context.Context, id jsonrpc.ID, failure *toolerrors.ProtocolFailure) {
	s.log.Debug("Sending error response", "kind", failure.Kind, "code", failure.Code(), "message", failure.Message)

	var (
		data []byte
		err  error
	)

	if id.IsValid() {
		data, err = jsonrpc.EncodeMessage(&jsonrpc.Response{ID: id, Error: failure.WireError()})
	} else {
		data, err = json.Marshal(nullIDResponse{JSONRPC: "2.0", Error: failure.WireError()})
	}

	if err != nil {
		s.log.Error("Failed to encode error response", "error", err)

		return
	}

	s.send(ctx, data)
}

// notify sends a notification.
func (s *Session) notify(ctx context.Context, method string, params any) error {
	var raw json.RawMessage

	if params != nil {
		var err error

		raw, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
	}

	data, err := jsonrpc.EncodeMessage(&jsonrpc.Request{Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	if s.State() == StateClosed {
		return toolerrors.ErrSessionClosed
	}

	if err := s.transport.SendMessage(ctx, data); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	return nil
}

// send writes one message unless the session has closed.
func (s *Session) send(ctx context.Context, data []byte) {
	if s.State() == StateClosed {
		s.log.Debug("Dropping message for closed session")

		return
	}

	if err := s.transport.SendMessage(ctx, data); err != nil {
		// Don't log error if context was cancelled (expected during shutdown)
		if ctx.Err() != nil {
			s.log.Debug("Could not send message during shutdown", "error", err)

			return
		}

		s.log.Error("Failed to send message", "error", err)
	}
}

// idKey renders an id for the in-flight map. The type is part of the key so
// the string "1" and the number 1 stay distinct.
func idKey(id jsonrpc.ID) string {
	raw := id.Raw()

	return fmt.Sprintf("%T:%v", raw, raw)
}

// recoverID pulls a usable id out of a message that failed validation, so the
// error response can still be correlated.
func recoverID(data []byte) jsonrpc.ID {
	var envelope struct {
		ID any `json:"id"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return jsonrpc.ID{}
	}

	id, err := jsonrpc.MakeID(envelope.ID)
	if err != nil {
		return jsonrpc.ID{}
	}

	return id
}
