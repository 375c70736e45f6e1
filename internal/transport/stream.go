package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/wagiedev/mcp-dynamic-tools/internal/errors"
)

const (
	// DefaultMaxMessageSize is the largest line ReadMessages accepts.
	DefaultMaxMessageSize = 1024 * 1024 // 1MB

	// writeAbandonTimeout is how long SendMessage waits for a blocked write to
	// unwind after its context is cancelled.
	writeAbandonTimeout = time.Second
)

// Transport is the message stream a protocol session runs over.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
	Close() error
}

// Stream implements Transport over an io.Reader and io.Writer.
type Stream struct {
	log            *slog.Logger
	in             io.Reader
	out            io.Writer
	maxMessageSize int

	mu     sync.Mutex // Protects writes and closed
	closed bool
}

// Compile-time verification that Stream implements Transport.
var _ Transport = (*Stream)(nil)

// Option configures a Stream.
type Option func(*Stream)

// WithMaxMessageSize overrides DefaultMaxMessageSize.
func WithMaxMessageSize(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.maxMessageSize = n
		}
	}
}

// NewStream creates a transport reading from in and writing to out.
func NewStream(log *slog.Logger, in io.Reader, out io.Writer, opts ...Option) *Stream {
	s := &Stream{
		log:            log.With("component", "transport"),
		in:             in,
		out:            out,
		maxMessageSize: DefaultMaxMessageSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ReadMessages reads one message per line until the input ends.
//
// Blank lines are skipped. Each delivered slice is owned by the receiver.
// The goroutine closes both channels when it exits; reaching end of input is
// not an error. A read failure, including a line longer than the maximum
// message size, is sent on the error channel and ends the stream.
func (s *Stream) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	messages := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)
		defer s.log.Debug("ReadMessages goroutine stopped")

		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, min(64*1024, s.maxMessageSize)), s.maxMessageSize)

		messageCount := 0

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			// The scanner reuses its buffer.
			msg := bytes.Clone(line)
			messageCount++

			s.log.Debug("Received message", "message_count", messageCount, "size", len(msg))

			select {
			case messages <- msg:
			case <-ctx.Done():
				s.log.Debug("Context cancelled during message send", "error", ctx.Err())

				return
			}
		}

		if err := scanner.Err(); err != nil {
			s.log.Error("Scanner error while reading input", "error", err)

			errs <- fmt.Errorf("read input: %w", err)

			return
		}

		s.log.Debug("Input stream ended", "message_count", messageCount)
	}()

	return messages, errs
}

// SendMessage writes data as one line.
//
// Writes are serialized. If ctx is cancelled while a write is blocked the
// transport is marked closed and later sends fail with ErrTransportClosed.
func (s *Stream) SendMessage(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrTransportClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy so the caller's backing array is never mutated.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		line := make([]byte, len(data)+1)
		copy(line, data)
		line[len(data)] = '\n'
		data = line
	}

	done := make(chan error, 1)

	go func() {
		_, err := s.out.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Error("Failed to write message", "error", err)

			return fmt.Errorf("write message: %w", err)
		}

		s.log.Debug("Sent message", "size", len(data))

		return nil

	case <-ctx.Done():
		s.log.Debug("Context cancelled during write, closing transport")

		s.closed = true
		if c, ok := s.out.(io.Closer); ok {
			_ = c.Close()
		}

		select {
		case <-done:
		case <-time.After(writeAbandonTimeout):
			s.log.Warn("Write goroutine did not exit after close, potential leak")
		}

		return ctx.Err()
	}
}

// Close marks the transport closed and closes the underlying streams that
// support it. It is safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var firstErr error

	streams := []any{s.in}
	if any(s.out) != any(s.in) {
		streams = append(streams, s.out)
	}

	for _, stream := range streams {
		if stream == os.Stdin || stream == os.Stdout {
			continue
		}

		if c, ok := stream.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
