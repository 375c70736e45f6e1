package dyntools

import (
	"io"
	"log/slog"

	"github.com/wagiedev/mcp-dynamic-tools/internal/protocol"
	"github.com/wagiedev/mcp-dynamic-tools/internal/transport"
)

// Transport carries line-delimited JSON-RPC messages between a client and a
// session. Implement this to serve sessions over something other than a
// byte stream; NewStreamTransport covers pipes, sockets and stdio.
type Transport = protocol.Transport

// DefaultMaxMessageSize is the longest protocol line accepted by default.
const DefaultMaxMessageSize = transport.DefaultMaxMessageSize

// StreamTransport is a Transport over an io.Reader and io.Writer.
type StreamTransport = transport.Stream

// NewStreamTransport frames messages as lines on in and out. A
// maxMessageSize of zero uses DefaultMaxMessageSize.
func NewStreamTransport(log *slog.Logger, in io.Reader, out io.Writer, maxMessageSize int) *StreamTransport {
	if log == nil {
		log = NopLogger()
	}

	var opts []transport.Option
	if maxMessageSize > 0 {
		opts = append(opts, transport.WithMaxMessageSize(maxMessageSize))
	}

	return transport.NewStream(log, in, out, opts...)
}
