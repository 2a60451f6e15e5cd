package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-remote/internal/transport"
)

// eventLog records observable events of both fake transports in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeTransport struct {
	name string
	log  *eventLog

	mu         sync.Mutex
	handlers   transport.Handlers
	sent       []string
	closeCalls int
	closed     bool
	sendErr    error
}

func newFake(name string, log *eventLog) *fakeTransport {
	return &fakeTransport{name: name, log: log}
}

func (f *fakeTransport) Start(context.Context) error { return nil }

func (f *fakeTransport) SetHandlers(h transport.Handlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = h
}

func (f *fakeTransport) Send(_ context.Context, msg json.RawMessage) error {
	f.mu.Lock()
	if f.sendErr != nil {
		f.mu.Unlock()
		return f.sendErr
	}
	f.sent = append(f.sent, string(msg))
	f.mu.Unlock()
	f.log.add(f.name + " recv " + string(msg))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closeCalls++
	already := f.closed
	f.closed = true
	h := f.handlers
	f.mu.Unlock()

	if already {
		return nil
	}
	f.log.add(f.name + " closed")
	if h.OnClose != nil {
		h.OnClose()
	}
	return nil
}

func (f *fakeTransport) emit(msg string) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	h.OnMessage(json.RawMessage(msg))
}

func (f *fakeTransport) emitError(err error) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	h.OnError(err)
}

func (f *fakeTransport) state() (sent []string, closeCalls int, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...), f.closeCalls, f.closed
}

func TestProxy_ForwardsBothDirections(t *testing.T) {
	log := &eventLog{}
	client, server := newFake("client", log), newFake("server", log)
	s := Proxy(context.Background(), client, server)

	client.emit(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	server.emit(`{"jsonrpc":"2.0","id":1,"result":{}}`)

	sent, _, _ := server.state()
	assert.Equal(t, []string{`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`}, sent)
	sent, _, _ = client.state()
	assert.Equal(t, []string{`{"jsonrpc":"2.0","id":1,"result":{}}`}, sent)

	up, down := s.Stats()
	assert.Equal(t, int64(1), up.Messages)
	assert.Equal(t, int64(1), down.Messages)
	assert.Equal(t, int64(len(`{"jsonrpc":"2.0","id":1,"result":{}}`)), down.Bytes)
}

func TestProxy_PreservesOrder(t *testing.T) {
	log := &eventLog{}
	client, server := newFake("client", log), newFake("server", log)
	Proxy(context.Background(), client, server)

	var want []string
	for i := 0; i < 100; i++ {
		msg := fmt.Sprintf(`{"jsonrpc":"2.0","method":"notifications/progress","params":{"n":%d}}`, i)
		want = append(want, msg)
		client.emit(msg)
	}

	sent, _, _ := server.state()
	assert.Equal(t, want, sent)
}

func TestProxy_ClosePropagatesOnce(t *testing.T) {
	log := &eventLog{}
	a, b := newFake("A", log), newFake("B", log)
	s := Proxy(context.Background(), a, b)

	a.emit(`{"id":1}`)
	require.NoError(t, a.Close())

	assert.Equal(t, []string{`B recv {"id":1}`, "A closed", "B closed"}, log.all())

	_, aCalls, _ := a.state()
	_, bCalls, bClosed := b.state()
	assert.Equal(t, 1, aCalls, "B's induced close must not close A again")
	assert.Equal(t, 1, bCalls)
	assert.True(t, bClosed)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session not done after both sides closed")
	}
}

func TestProxy_RemoteCloseClosesLocal(t *testing.T) {
	log := &eventLog{}
	client, server := newFake("client", log), newFake("server", log)
	s := Proxy(context.Background(), client, server)

	require.NoError(t, server.Close())

	_, clientCalls, clientClosed := client.state()
	_, serverCalls, _ := server.state()
	assert.True(t, clientClosed)
	assert.Equal(t, 1, clientCalls)
	assert.Equal(t, 1, serverCalls)
	<-s.Done()
}

func TestProxy_SendFailureKeepsSession(t *testing.T) {
	log := &eventLog{}
	client, server := newFake("client", log), newFake("server", log)
	server.sendErr = errors.New("network down")
	s := Proxy(context.Background(), client, server)

	client.emit(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)

	_, _, serverClosed := server.state()
	_, _, clientClosed := client.state()
	assert.False(t, serverClosed)
	assert.False(t, clientClosed)

	up, _ := s.Stats()
	assert.Zero(t, up.Messages)

	// Later messages still flow the other way.
	server.emit(`{"jsonrpc":"2.0","method":"notifications/message"}`)
	sent, _, _ := client.state()
	assert.Len(t, sent, 1)
}

func TestProxy_ErrorsDoNotClose(t *testing.T) {
	log := &eventLog{}
	client, server := newFake("client", log), newFake("server", log)
	s := Proxy(context.Background(), client, server)

	client.emitError(errors.New("bad line"))
	server.emitError(errors.New("stream hiccup"))

	_, _, clientClosed := client.state()
	_, _, serverClosed := server.state()
	assert.False(t, clientClosed)
	assert.False(t, serverClosed)

	select {
	case <-s.Done():
		t.Fatal("errors must not end the session")
	default:
	}
}

func TestSession_Close(t *testing.T) {
	log := &eventLog{}
	client, server := newFake("client", log), newFake("server", log)
	s := Proxy(context.Background(), client, server)

	require.NoError(t, s.Close())
	<-s.Done()
	_, _, serverClosed := server.state()
	assert.True(t, serverClosed)
}
