// Package proxy joins two transports so that every message received on one
// side is sent verbatim to the other.
package proxy

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/jpillora/sizestr"

	"mcp-remote/internal/transport"
	"mcp-remote/pkg/logging"
)

type side int

const (
	local side = iota
	remote
)

func (s side) String() string {
	if s == local {
		return "Local"
	}
	return "Remote"
}

type counter struct {
	messages atomic.Int64
	bytes    atomic.Int64
}

func (c *counter) add(msg json.RawMessage) {
	c.messages.Add(1)
	c.bytes.Add(int64(len(msg)))
}

// Stats holds message and byte counts for one direction.
type Stats struct {
	Messages int64
	Bytes    int64
}

// Session is a running proxy between a local client and a remote server.
type Session struct {
	ctx        context.Context
	transports [2]transport.Transport

	// sent[s] counts messages sent to side s.
	sent [2]counter

	mu       sync.Mutex
	closed   [2]bool
	reacting bool

	done     chan struct{}
	doneOnce sync.Once
}

// Proxy registers forwarding handlers on client and server and returns
// immediately. Both transports must be started by the caller afterwards.
//
// Messages are forwarded from within the source transport's OnMessage, so
// each direction keeps its receipt order. A failed send is logged and the
// session stays up. When one side closes, the other is closed once in
// reaction; its own close event does not propagate back.
func Proxy(ctx context.Context, client, server transport.Transport) *Session {
	s := &Session{
		ctx:        ctx,
		transports: [2]transport.Transport{client, server},
		done:       make(chan struct{}),
	}
	client.SetHandlers(s.handlers(local))
	server.SetHandlers(s.handlers(remote))
	return s
}

func (s *Session) handlers(from side) transport.Handlers {
	return transport.Handlers{
		OnMessage: func(msg json.RawMessage) { s.forward(from, msg) },
		OnClose:   func() { s.handleClose(from) },
		OnError: func(err error) {
			logging.Error("Proxy", err, "Error from %s transport", from)
		},
	}
}

func (s *Session) forward(from side, msg json.RawMessage) {
	to := 1 - from

	if logging.Enabled(logging.LevelDebug) {
		logging.Debug("Proxy", "[%s→%s] %s", from, to, describe(msg))
	}

	if err := s.transports[to].Send(s.ctx, msg); err != nil {
		logging.Error("Proxy", err, "Failed to forward message from %s to %s: %s", from, to, describe(msg))
		return
	}
	s.sent[to].add(msg)
}

func (s *Session) handleClose(from side) {
	s.mu.Lock()
	s.closed[from] = true
	react := !s.reacting
	s.reacting = true
	s.mu.Unlock()

	if react {
		to := 1 - from
		logging.Info("Proxy", "%s side closed, closing %s side", from, to)
		if err := s.transports[to].Close(); err != nil {
			logging.Error("Proxy", err, "Failed to close %s transport", to)
		}
	}

	s.mu.Lock()
	finished := s.closed[local] && s.closed[remote]
	s.mu.Unlock()
	if finished {
		s.finish()
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() {
		up, down := s.Stats()
		logging.Info("Proxy", "Proxy closed (sent %d messages / %s to remote, %d messages / %s to local)",
			up.Messages, sizestr.ToString(up.Bytes), down.Messages, sizestr.ToString(down.Bytes))
		close(s.done)
	})
}

// Done is closed once both sides have closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close closes the local side, which closes the remote side in turn.
func (s *Session) Close() error {
	return s.transports[local].Close()
}

// Stats returns the counts of messages sent to the remote and to the local
// side.
func (s *Session) Stats() (toRemote, toLocal Stats) {
	return Stats{Messages: s.sent[remote].messages.Load(), Bytes: s.sent[remote].bytes.Load()},
		Stats{Messages: s.sent[local].messages.Load(), Bytes: s.sent[local].bytes.Load()}
}

func describe(msg json.RawMessage) string {
	if transport.IsBatch(msg) {
		return "batch"
	}
	env, err := transport.Parse(msg)
	if err != nil {
		return "<unparsed>"
	}
	return env.Describe()
}
