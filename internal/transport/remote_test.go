package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initializeMsg = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`

type collector struct {
	mu       sync.Mutex
	messages []json.RawMessage
	notify   chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 100)}
}

func (c *collector) handlers() Handlers {
	return Handlers{
		OnMessage: func(msg json.RawMessage) {
			c.mu.Lock()
			c.messages = append(c.messages, msg)
			c.mu.Unlock()
			c.notify <- struct{}{}
		},
	}
}

func (c *collector) waitFor(t *testing.T, n int) []json.RawMessage {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		if len(c.messages) >= n {
			out := append([]json.RawMessage(nil), c.messages...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages", n)
		}
	}
}

func newMCPServer() *server.MCPServer {
	s := server.NewMCPServer("remote-test", "1.0.0", server.WithToolCapabilities(false))
	s.AddTool(mcp.NewTool("echo", mcp.WithDescription("Echoes its input")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("echo"), nil
		})
	return s
}

func TestRemote_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		serve func(*server.MCPServer) *httptest.Server
		path  string
	}{
		{"sse", TypeSSE, func(s *server.MCPServer) *httptest.Server { return server.NewTestServer(s) }, "/sse"},
		{"streamable-http", TypeStreamableHTTP, func(s *server.MCPServer) *httptest.Server { return server.NewTestStreamableHTTPServer(s) }, "/mcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := tt.serve(newMCPServer())
			defer ts.Close()

			r, err := NewRemote(RemoteOptions{URL: ts.URL + tt.path, Type: tt.typ})
			require.NoError(t, err)
			defer r.Close()

			c := newCollector()
			r.SetHandlers(c.handlers())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			require.NoError(t, r.Start(ctx))

			require.NoError(t, r.Send(ctx, json.RawMessage(initializeMsg)))
			msgs := c.waitFor(t, 1)

			env, err := Parse(msgs[0])
			require.NoError(t, err)
			assert.Equal(t, KindResponse, env.Kind())
			assert.JSONEq(t, "1", string(env.ID))
			assert.Contains(t, string(env.Result), "remote-test")

			require.NoError(t, r.Send(ctx, json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
			require.NoError(t, r.Send(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":"list","method":"tools/list"}`)))

			msgs = c.waitFor(t, 2)
			env, err = Parse(msgs[1])
			require.NoError(t, err)
			assert.JSONEq(t, `"list"`, string(env.ID))
			assert.Contains(t, string(env.Result), "echo")
		})
	}
}

func TestRemote_RequestFailureBecomesErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	r, err := NewRemote(RemoteOptions{URL: ts.URL, Type: TypeStreamableHTTP})
	require.NoError(t, err)
	defer r.Close()

	c := newCollector()
	r.SetHandlers(c.handlers())
	require.NoError(t, r.Start(context.Background()))

	require.NoError(t, r.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`)))
	msgs := c.waitFor(t, 1)

	var resp struct {
		ID    int `json:"id"`
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(msgs[0], &resp))
	assert.Equal(t, 7, resp.ID)
	assert.Equal(t, mcp.INTERNAL_ERROR, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "500")
}

func TestRemote_SendKeepsOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		seq     atomic.Int64
		arrived = map[int64]string{}
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		n := seq.Add(1)
		var msg struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&msg)
		mu.Lock()
		arrived[n] = msg.Method
		mu.Unlock()

		if len(msg.ID) == 0 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":{}}`, msg.ID)
	}))
	defer ts.Close()

	for run := 0; run < 10; run++ {
		seq.Store(0)
		mu.Lock()
		clear(arrived)
		mu.Unlock()

		r, err := NewRemote(RemoteOptions{URL: ts.URL, Type: TypeStreamableHTTP})
		require.NoError(t, err)
		c := newCollector()
		r.SetHandlers(c.handlers())
		require.NoError(t, r.Start(context.Background()))

		require.NoError(t, r.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"slow"}}`)))
		require.NoError(t, r.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":7}}`)))
		c.waitFor(t, 1)

		mu.Lock()
		order := []string{arrived[1], arrived[2]}
		mu.Unlock()
		assert.Equal(t, []string{"tools/call", "notifications/cancelled"}, order, "run %d", run)
		require.NoError(t, r.Close())
	}
}

func TestRemote_HoldsMessagesUntilHandlersSet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: endpoint\ndata: /message\n\n")
		flusher.Flush()
		time.Sleep(10 * time.Millisecond)
		fmt.Fprint(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/tools/list_changed\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer ts.Close()

	r, err := NewRemote(RemoteOptions{URL: ts.URL, Type: TypeSSE})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)

	c := newCollector()
	r.SetHandlers(c.handlers())
	msgs := c.waitFor(t, 1)

	env, err := Parse(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "notifications/tools/list_changed", env.Method)
}

func TestRemote_SendBeforeStart(t *testing.T) {
	r, err := NewRemote(RemoteOptions{URL: "https://example.com/mcp", Type: TypeStreamableHTTP})
	require.NoError(t, err)
	assert.Error(t, r.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))
}

type fakeAuthorizer struct {
	mu         sync.Mutex
	redirected int
	finished   []string
	store      mcptransport.TokenStore
}

func (f *fakeAuthorizer) OAuthConfig() mcptransport.OAuthConfig {
	return mcptransport.OAuthConfig{
		ClientID:    "client",
		RedirectURI: "http://localhost:3334/oauth/callback",
		TokenStore:  f.store,
		PKCEEnabled: true,
	}
}

func (f *fakeAuthorizer) RedirectToAuthorization(ctx context.Context, handler *mcptransport.OAuthHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirected++
	return nil
}

func (f *fakeAuthorizer) FinishAuth(ctx context.Context, handler *mcptransport.OAuthHandler, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, code)
	return nil
}

func TestRemote_StartWithoutTokenIsUnauthorized(t *testing.T) {
	for _, typ := range []Type{TypeSSE, TypeStreamableHTTP} {
		t.Run(string(typ), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer ts.Close()

			auth := &fakeAuthorizer{store: mcptransport.NewMemoryTokenStore()}
			r, err := NewRemote(RemoteOptions{URL: ts.URL, Type: typ, Authorizer: auth})
			require.NoError(t, err)
			require.NotNil(t, r.OAuthHandler())

			err = r.Start(context.Background())
			var unauthorized *UnauthorizedError
			require.True(t, errors.As(err, &unauthorized), "got %v", err)
			assert.True(t, IsUnauthorized(err))
			assert.Equal(t, 1, auth.redirected)

			require.NoError(t, r.FinishAuth(context.Background(), "code-123"))
			assert.Equal(t, []string{"code-123"}, auth.finished)
			require.NoError(t, r.Close())
		})
	}
}

func TestRemote_FinishAuthWithoutAuthorizer(t *testing.T) {
	r, err := NewRemote(RemoteOptions{URL: "https://example.com/sse"})
	require.NoError(t, err)
	assert.Error(t, r.FinishAuth(context.Background(), "x"))
}

func TestRemote_CloseOnce(t *testing.T) {
	r, err := NewRemote(RemoteOptions{URL: "https://example.com/mcp", Type: TypeStreamableHTTP})
	require.NoError(t, err)

	closes := 0
	r.SetHandlers(Handlers{OnClose: func() { closes++ }})
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, closes)

	assert.ErrorIs(t, r.Send(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"x"}`)), ErrClosed)
}

func TestNewRemote_UnknownType(t *testing.T) {
	_, err := NewRemote(RemoteOptions{URL: "https://example.com", Type: "websocket"})
	assert.Error(t, err)
	assert.False(t, Type("websocket").Valid())
	assert.True(t, TypeSSE.Valid())
}
