package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"mcp-remote/pkg/logging"
)

// maxLineSize bounds a single inbound stdio message.
const maxLineSize = 16 * 1024 * 1024

// Stdio exchanges newline-delimited JSON-RPC messages over a reader and a
// writer, normally the process's stdin and stdout.
type Stdio struct {
	in  io.Reader
	out io.Writer

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   Handlers

	closeOnce sync.Once
	done      chan struct{}
}

// NewStdio creates a Stdio transport reading from in and writing to out.
func NewStdio(in io.Reader, out io.Writer) *Stdio {
	return &Stdio{
		in:   in,
		out:  out,
		done: make(chan struct{}),
	}
}

// SetHandlers implements Transport.
func (s *Stdio) SetHandlers(h Handlers) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = h
}

func (s *Stdio) getHandlers() Handlers {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers
}

// Start implements Transport. Reading stops at EOF, on a read error, or
// when ctx is cancelled; each of these closes the transport.
func (s *Stdio) Start(ctx context.Context) error {
	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return nil
}

func (s *Stdio) readLoop() {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			s.getHandlers().error(fmt.Errorf("dropping invalid JSON on stdin: %.80q", line))
			continue
		}
		s.getHandlers().message(json.RawMessage(bytes.Clone(line)))
	}

	if err := scanner.Err(); err != nil {
		s.getHandlers().error(fmt.Errorf("stdin read failed: %w", err))
	} else {
		logging.Debug("Transport", "stdin reached EOF")
	}
	_ = s.Close()
}

// Send implements Transport. The message is compacted to a single line.
func (s *Stdio) Send(_ context.Context, msg json.RawMessage) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, msg); err != nil {
		return fmt.Errorf("refusing to write invalid JSON: %w", err)
	}
	buf.WriteByte('\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("stdout write failed: %w", err)
	}
	return nil
}

// Close implements Transport. The reader is closed when it implements
// io.Closer so a pending read returns.
func (s *Stdio) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.in.(io.Closer); ok {
			err = c.Close()
		}
		s.getHandlers().closed()
	})
	return err
}

// Done is closed once the transport has closed.
func (s *Stdio) Done() <-chan struct{} {
	return s.done
}
