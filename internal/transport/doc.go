// Package transport moves line-delimited JSON messages over a byte stream.
//
// One message is one line. Any io.Reader and io.Writer pair works: the CLI
// passes the process's stdin and stdout, and tests drive a session in memory
// over pipes.
package transport
