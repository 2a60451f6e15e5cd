package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by Send after the transport was closed.
var ErrClosed = errors.New("transport closed")

// Handlers receives the events of a Transport. Nil handlers are ignored.
type Handlers struct {
	// OnMessage receives every inbound message. The slice is owned by the
	// handler.
	OnMessage func(msg json.RawMessage)
	// OnClose is called once, when the transport closes for any reason.
	OnClose func()
	// OnError reports a problem that did not close the transport.
	OnError func(err error)
}

func (h Handlers) message(msg json.RawMessage) {
	if h.OnMessage != nil {
		h.OnMessage(msg)
	}
}

func (h Handlers) closed() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

func (h Handlers) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Transport is a bidirectional JSON-RPC message channel.
type Transport interface {
	// Start begins receiving messages.
	Start(ctx context.Context) error
	// Send delivers one message to the other end.
	Send(ctx context.Context, msg json.RawMessage) error
	// SetHandlers registers the event handlers. Stdio needs them before
	// Start; Remote, which is started while connecting, holds inbound
	// messages until the first call.
	SetHandlers(h Handlers)
	// Close closes the transport and fires OnClose if it has not fired yet.
	Close() error
}
