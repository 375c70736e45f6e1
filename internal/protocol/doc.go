// Package protocol implements the server side of an MCP session.
//
// A Session reads JSON-RPC 2.0 messages from a Transport, answers the
// handshake, lists the tool catalog and routes tool calls to an Invoker.
// Malformed input is answered with a JSON-RPC error and never ends the
// session; only end of input, a transport failure, shutdown or context
// cancellation close it.
//
// Example usage:
//
//	sess := protocol.NewSession(stream, reg, exec, protocol.Config{
//		ServerName:    "mcp-dynamic-tools",
//		ServerVersion: "0.1.0",
//		RefreshOnList: true,
//	})
//
//	if err := sess.Serve(ctx); err != nil {
//		log.Error("Session failed", "error", err)
//	}
package protocol
