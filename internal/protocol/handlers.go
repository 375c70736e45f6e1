package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	toolerrors "github.com/wagiedev/mcp-dynamic-tools/internal/errors"
	"github.com/wagiedev/mcp-dynamic-tools/internal/executor"
	mcpadapter "github.com/wagiedev/mcp-dynamic-tools/internal/mcp"
)

// Method names.
const (
	MethodInitialize   = "initialize"
	MethodInitialized  = "notifications/initialized"
	MethodCancelled    = "notifications/cancelled"
	MethodPing         = "ping"
	MethodListTools    = "tools/list"
	MethodCallTool     = "tools/call"
	MethodShutdown     = "shutdown"
	MethodToolsChanged = "notifications/tools/list_changed"
)

// DefaultProtocolVersion is answered when the client asks for a version the
// server does not know.
const DefaultProtocolVersion = "2024-11-05"

// SupportedProtocolVersions lists the versions echoed back to clients.
var SupportedProtocolVersions = []string{
	"2024-11-05",
	"2025-03-26",
	"2025-06-18",
}

func negotiateVersion(requested string) string {
	if slices.Contains(SupportedProtocolVersions, requested) {
		return requested
	}

	return DefaultProtocolVersion
}

func (s *Session) handleInitialize(_ context.Context, req *jsonrpc.Request) (any, error) {
	var params mcp.InitializeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}

	version := negotiateVersion(params.ProtocolVersion)

	s.state.CompareAndSwap(int32(StateUninitialized), int32(StateReady))

	client := ""
	if params.ClientInfo != nil {
		client = params.ClientInfo.Name
	}

	s.log.Info("Session initialized",
		"client", client,
		"requested_version", params.ProtocolVersion,
		"protocol_version", version,
	)

	return &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: true},
		},
		ServerInfo: &mcp.Implementation{
			Name:    s.cfg.ServerName,
			Version: s.cfg.ServerVersion,
		},
		Instructions: s.cfg.Instructions,
	}, nil
}

func (s *Session) handlePing(context.Context, *jsonrpc.Request) (any, error) {
	return struct{}{}, nil
}

func (s *Session) handleListTools(ctx context.Context, req *jsonrpc.Request) (any, error) {
	if err := s.requireReady(req.Method); err != nil {
		return nil, err
	}

	if s.cfg.RefreshOnList {
		// A failed rescan keeps the previous catalog; listing still succeeds.
		if _, err := s.catalog.Refresh(ctx); err != nil {
			s.log.Warn("Refresh before listing failed", "error", err)
		}
	}

	return mcpadapter.ListTools(s.catalog.Catalog()), nil
}

func (s *Session) handleCallTool(ctx context.Context, req *jsonrpc.Request) (any, error) {
	if err := s.requireReady(req.Method); err != nil {
		return nil, err
	}

	var params mcp.CallToolParamsRaw
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}

	if params.Name == "" {
		return nil, invalidParams(req.Method, "missing tool name", nil)
	}

	args, err := mcpadapter.ParseArguments(params.Arguments)
	if err != nil {
		return nil, invalidParams(req.Method, err.Error(), err)
	}

	res := s.invoker.Execute(ctx, executor.InvocationRequest{
		ToolName:  params.Name,
		Arguments: args,
	})

	return mcpadapter.CallResult(res), nil
}

func (s *Session) handleShutdown(context.Context, *jsonrpc.Request) (any, error) {
	s.log.Info("Shutdown requested")

	return struct{}{}, nil
}

func (s *Session) handleCancelled(req *jsonrpc.Request) {
	var params mcp.CancelledParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.log.Debug("Ignoring malformed cancel notification", "error", err)

		return
	}

	id, err := jsonrpc.MakeID(params.RequestID)
	if err != nil || !id.IsValid() {
		s.log.Debug("Ignoring cancel notification without a usable request id")

		return
	}

	s.inFlightMu.Lock()
	cancel, exists := s.inFlight[idKey(id)]
	s.inFlightMu.Unlock()

	if !exists {
		s.log.Debug("Cancel notification for unknown request", "request_id", id.Raw())

		return
	}

	s.log.Debug("Cancelling request", "request_id", id.Raw(), "reason", params.Reason)

	cancel()
}

func (s *Session) requireReady(method string) error {
	if s.State() == StateReady {
		return nil
	}

	return &toolerrors.ProtocolFailure{
		Kind:    toolerrors.KindNotInitialized,
		Method:  method,
		Message: "session not initialized",
	}
}

// decodeParams unmarshals request params into v. Absent params leave v at
// its zero value.
func decodeParams(req *jsonrpc.Request, v any) error {
	trimmed := bytes.TrimSpace(req.Params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return invalidParams(req.Method, "invalid params: "+err.Error(), err)
	}

	return nil
}

func invalidParams(method, message string, err error) *toolerrors.ProtocolFailure {
	return &toolerrors.ProtocolFailure{
		Kind:    toolerrors.KindInvalidParams,
		Method:  method,
		Message: message,
		Err:     err,
	}
}
