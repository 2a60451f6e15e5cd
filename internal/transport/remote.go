package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"

	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"mcp-remote/pkg/logging"
)

// Type selects the HTTP transport used for the remote server.
type Type string

const (
	TypeSSE            Type = "sse"
	TypeStreamableHTTP Type = "streamable-http"
)

// Valid reports whether t names a supported transport.
func (t Type) Valid() bool {
	return t == TypeSSE || t == TypeStreamableHTTP
}

// Authorizer drives the OAuth flow for a remote transport.
type Authorizer interface {
	// OAuthConfig returns the configuration for a new transport.
	OAuthConfig() mcptransport.OAuthConfig
	// RedirectToAuthorization starts the browser flow for handler.
	RedirectToAuthorization(ctx context.Context, handler *mcptransport.OAuthHandler) error
	// FinishAuth exchanges the authorization code and stores the token.
	FinishAuth(ctx context.Context, handler *mcptransport.OAuthHandler, code string) error
}

// RemoteOptions configures a Remote transport.
type RemoteOptions struct {
	URL        string
	Type       Type
	Headers    map[string]string
	Authorizer Authorizer
	HTTPClient *http.Client
}

type oauthCapable interface {
	GetOAuthHandler() *mcptransport.OAuthHandler
}

// requestWritten is carried in the context of an outbound request and
// closed once the request has been written to the connection, or has failed.
type requestWritten struct {
	once sync.Once
	ch   chan struct{}
}

func newRequestWritten() *requestWritten {
	return &requestWritten{ch: make(chan struct{})}
}

func (w *requestWritten) signal() {
	w.once.Do(func() { close(w.ch) })
}

type requestWrittenKey struct{}

// writeTracker reports when a JSON-RPC POST carrying a requestWritten has
// been written. Other requests, such as token refreshes made on the same
// context, pass through untouched.
type writeTracker struct {
	base http.RoundTripper
}

func (t *writeTracker) RoundTrip(req *http.Request) (*http.Response, error) {
	w, ok := req.Context().Value(requestWrittenKey{}).(*requestWritten)
	if !ok || req.Method != http.MethodPost || !strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		return t.base.RoundTrip(req)
	}
	trace := &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { w.signal() },
	}
	resp, err := t.base.RoundTrip(req.WithContext(httptrace.WithClientTrace(req.Context(), trace)))
	w.signal()
	return resp, err
}

// trackingClient returns a copy of c whose transport reports written requests.
func trackingClient(c *http.Client) *http.Client {
	out := &http.Client{}
	if c != nil {
		*out = *c
	}
	base := out.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	out.Transport = &writeTracker{base: base}
	return out
}

// Remote adapts an mcp-go client transport to Transport.
//
// Outbound requests are awaited concurrently, but Send returns only once the
// request has been written, so messages reach the server in the order they
// were sent. Responses, or a synthesized JSON-RPC error when a request
// fails, are delivered through OnMessage. Server-initiated requests
// (streamable HTTP only) are forwarded as messages and answered when the
// matching response is sent back.
//
// Messages received before SetHandlers is first called are held until then.
type Remote struct {
	opts   RemoteOptions
	client mcptransport.Interface

	handlersMu   sync.RWMutex
	handlers     Handlers
	handlersSet  chan struct{}
	handlersOnce sync.Once

	inbound chan json.RawMessage

	pendingMu sync.Mutex
	pending   map[string]chan *mcptransport.JSONRPCResponse

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// NewRemote creates the underlying mcp-go transport without connecting.
func NewRemote(opts RemoteOptions) (*Remote, error) {
	if opts.Type == "" {
		opts.Type = TypeSSE
	}
	logger := logging.MCPLogger("Transport")
	httpClient := trackingClient(opts.HTTPClient)

	var (
		client mcptransport.Interface
		err    error
	)
	switch opts.Type {
	case TypeSSE:
		sseOpts := []mcptransport.ClientOption{
			mcptransport.WithHeaders(opts.Headers),
			mcptransport.WithSSELogger(logger),
			mcptransport.WithHTTPClient(httpClient),
		}
		if opts.Authorizer != nil {
			sseOpts = append(sseOpts, mcptransport.WithOAuth(opts.Authorizer.OAuthConfig()))
		}
		client, err = mcptransport.NewSSE(opts.URL, sseOpts...)
	case TypeStreamableHTTP:
		httpOpts := []mcptransport.StreamableHTTPCOption{
			mcptransport.WithHTTPHeaders(opts.Headers),
			mcptransport.WithHTTPLogger(logger),
			mcptransport.WithContinuousListening(),
			mcptransport.WithHTTPBasicClient(httpClient),
		}
		if opts.Authorizer != nil {
			httpOpts = append(httpOpts, mcptransport.WithHTTPOAuth(opts.Authorizer.OAuthConfig()))
		}
		client, err = mcptransport.NewStreamableHTTP(opts.URL, httpOpts...)
	default:
		return nil, fmt.Errorf("unsupported transport type %q", opts.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", opts.Type, err)
	}

	return &Remote{
		opts:        opts,
		client:      client,
		handlersSet: make(chan struct{}),
		inbound:     make(chan json.RawMessage, 64),
		pending:     make(map[string]chan *mcptransport.JSONRPCResponse),
		done:        make(chan struct{}),
	}, nil
}

// SetHandlers implements Transport. It may be called after Start; messages
// that arrived earlier are delivered once handlers are set.
func (r *Remote) SetHandlers(h Handlers) {
	r.handlersMu.Lock()
	r.handlers = h
	r.handlersMu.Unlock()
	r.handlersOnce.Do(func() { close(r.handlersSet) })
}

func (r *Remote) getHandlers() Handlers {
	r.handlersMu.RLock()
	defer r.handlersMu.RUnlock()
	return r.handlers
}

// Client returns the underlying mcp-go transport.
func (r *Remote) Client() mcptransport.Interface {
	return r.client
}

// Type returns the transport type.
func (r *Remote) Type() Type {
	return r.opts.Type
}

// OAuthHandler returns the OAuth handler of the underlying transport, or
// nil when OAuth is not configured.
func (r *Remote) OAuthHandler() *mcptransport.OAuthHandler {
	if oc, ok := r.client.(oauthCapable); ok {
		return oc.GetOAuthHandler()
	}
	return nil
}

// Start connects to the remote server. A missing or rejected token yields
// an *UnauthorizedError after the Authorizer has been asked to start the
// browser flow.
func (r *Remote) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.client.SetNotificationHandler(r.handleNotification)
	if bidi, ok := r.client.(mcptransport.BidirectionalInterface); ok {
		bidi.SetRequestHandler(r.handleServerRequest)
	}
	if sse, ok := r.client.(*mcptransport.SSE); ok {
		sse.SetConnectionLostHandler(func(err error) {
			r.getHandlers().error(fmt.Errorf("connection lost: %w", err))
			_ = r.Close()
		})
	}

	if err := r.client.Start(r.ctx); err != nil {
		r.cancel()
		return r.startError(ctx, err)
	}

	// Streamable HTTP connects lazily; check the token up front so missing
	// authorization surfaces at connect time rather than on the first request.
	if r.opts.Type == TypeStreamableHTTP {
		if handler := r.OAuthHandler(); handler != nil {
			if _, err := handler.GetAuthorizationHeader(ctx); err != nil {
				r.cancel()
				if errors.Is(err, mcptransport.ErrOAuthAuthorizationRequired) {
					return r.startError(ctx, &mcptransport.OAuthAuthorizationRequiredError{Handler: handler})
				}
				return fmt.Errorf("failed to get authorization header: %w", err)
			}
		}
	}

	go r.deliverLoop()
	logging.Debug("Transport", "Connected to %s using %s transport", r.opts.URL, r.opts.Type)
	return nil
}

func (r *Remote) startError(ctx context.Context, err error) error {
	var required *mcptransport.OAuthAuthorizationRequiredError
	if !errors.As(err, &required) {
		return err
	}
	if r.opts.Authorizer != nil {
		handler := required.Handler
		if handler == nil {
			handler = r.OAuthHandler()
		}
		if rerr := r.opts.Authorizer.RedirectToAuthorization(ctx, handler); rerr != nil {
			return fmt.Errorf("failed to start authorization: %w", rerr)
		}
	}
	return &UnauthorizedError{Err: err}
}

// FinishAuth completes the authorization started by a failed Start using
// the code received on the redirect.
func (r *Remote) FinishAuth(ctx context.Context, code string) error {
	if r.opts.Authorizer == nil {
		return errors.New("no authorizer configured")
	}
	handler := r.OAuthHandler()
	if handler == nil {
		return errors.New("transport has no OAuth handler")
	}
	return r.opts.Authorizer.FinishAuth(ctx, handler, code)
}

// Send implements Transport.
func (r *Remote) Send(ctx context.Context, msg json.RawMessage) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	if IsBatch(msg) {
		items, err := SplitBatch(msg)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := r.Send(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}

	env, err := Parse(msg)
	if err != nil {
		return err
	}

	switch env.Kind() {
	case KindRequest:
		return r.sendRequest(ctx, env)
	case KindNotification:
		var n mcp.JSONRPCNotification
		if err := json.Unmarshal(msg, &n); err != nil {
			return fmt.Errorf("invalid notification: %w", err)
		}
		return r.client.SendNotification(ctx, n)
	case KindResponse:
		return r.answerServerRequest(msg)
	default:
		return fmt.Errorf("cannot send %s message", env.Kind())
	}
}

func (r *Remote) sendRequest(ctx context.Context, env *Envelope) error {
	var id mcp.RequestId
	if err := json.Unmarshal(env.ID, &id); err != nil {
		return fmt.Errorf("invalid request id: %w", err)
	}

	req := mcptransport.JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Method:  env.Method,
	}
	if len(env.Params) > 0 {
		req.Params = env.Params
	}

	if r.ctx == nil {
		return errors.New("transport not started")
	}
	written := newRequestWritten()
	reqCtx := context.WithValue(r.ctx, requestWrittenKey{}, written)

	go func() {
		resp, err := r.client.SendRequest(reqCtx, req)
		written.signal()
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if IsUnauthorized(err) {
				logging.Warn("Transport", "Request %s was rejected as unauthorized; restart the proxy to re-authorize", req.Method)
			}
			resp = mcptransport.NewJSONRPCErrorResponse(id, mcp.INTERNAL_ERROR, err.Error(), nil)
		} else if req.Method == string(mcp.MethodInitialize) && resp.Error == nil {
			r.negotiated(resp.Result)
		}

		b, err := json.Marshal(resp)
		if err != nil {
			r.getHandlers().error(fmt.Errorf("failed to encode response to %s: %w", req.Method, err))
			return
		}
		r.deliver(b)
	}()

	select {
	case <-written.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrClosed
	}
}

// negotiated applies the protocol version of an initialize result.
func (r *Remote) negotiated(result json.RawMessage) {
	var init struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if err := json.Unmarshal(result, &init); err != nil || init.ProtocolVersion == "" {
		return
	}
	if hc, ok := r.client.(mcptransport.HTTPConnection); ok {
		hc.SetProtocolVersion(init.ProtocolVersion)
		logging.Debug("Transport", "Negotiated protocol version %s", init.ProtocolVersion)
	}
}

func (r *Remote) answerServerRequest(msg json.RawMessage) error {
	var resp mcptransport.JSONRPCResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	key := resp.ID.String()
	r.pendingMu.Lock()
	ch, ok := r.pending[key]
	delete(r.pending, key)
	r.pendingMu.Unlock()

	if !ok {
		return fmt.Errorf("no pending server request with id %s", key)
	}
	ch <- &resp
	return nil
}

func (r *Remote) handleServerRequest(ctx context.Context, req mcptransport.JSONRPCRequest) (*mcptransport.JSONRPCResponse, error) {
	key := req.ID.String()
	ch := make(chan *mcptransport.JSONRPCResponse, 1)

	r.pendingMu.Lock()
	r.pending[key] = ch
	r.pendingMu.Unlock()
	defer func() {
		r.pendingMu.Lock()
		delete(r.pending, key)
		r.pendingMu.Unlock()
	}()

	req.JSONRPC = mcp.JSONRPC_VERSION
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode server request: %w", err)
	}
	r.deliver(b)

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrClosed
	}
}

func (r *Remote) handleNotification(n mcp.JSONRPCNotification) {
	b, err := json.Marshal(n)
	if err != nil {
		r.getHandlers().error(fmt.Errorf("failed to encode notification %s: %w", n.Method, err))
		return
	}
	r.deliver(b)
}

func (r *Remote) deliver(msg json.RawMessage) {
	select {
	case r.inbound <- msg:
	case <-r.done:
	}
}

func (r *Remote) deliverLoop() {
	select {
	case <-r.handlersSet:
	case <-r.done:
		return
	}
	for {
		select {
		case msg := <-r.inbound:
			r.getHandlers().message(msg)
		case <-r.done:
			return
		}
	}
}

// Close implements Transport.
func (r *Remote) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		if r.cancel != nil {
			r.cancel()
		}
		err = r.client.Close()
		r.getHandlers().closed()
	})
	return err
}

// Done is closed once the transport has closed.
func (r *Remote) Done() <-chan struct{} {
	return r.done
}
