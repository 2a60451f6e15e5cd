package callback

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/jpillora/requestlog"

	"mcp-remote/internal/netutil"
	"mcp-remote/pkg/logging"
)

const (
	// DefaultPath is the OAuth redirect path.
	DefaultPath = "/oauth/callback"

	// WaitPath is the long-poll endpoint used by other instances.
	WaitPath = "/wait-for-auth"

	// DefaultLongPollTimeout is how long a /wait-for-auth request is held open.
	DefaultLongPollTimeout = 30 * time.Second

	// ResponseCompleted and ResponseInProgress are the long-poll bodies.
	ResponseCompleted  = "Authentication completed"
	ResponseInProgress = "Authentication in progress"
)

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Funcs(sprig.HtmlFuncMap()).Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Funcs(sprig.HtmlFuncMap()).Parse(callbackErrorHTML))
)

// Config configures a callback Server.
type Config struct {
	// Port to listen on. 0 picks a free port.
	Port int
	// Path of the OAuth redirect endpoint. Defaults to DefaultPath.
	Path string
	// LongPollTimeout bounds /wait-for-auth requests. Defaults to
	// DefaultLongPollTimeout.
	LongPollTimeout time.Duration
	// ServerURL is the remote server being authorized, shown on the
	// success page.
	ServerURL string
	// RequestLog enables per-request access logging to stderr.
	RequestLog bool
}

// Server receives the OAuth redirect and answers long-poll requests from
// other instances waiting on the same authorization.
//
// The authorization code is written at most once. The done channel is
// closed at that moment and wakes every waiter, both WaitForAuthCode
// callers and pending long-poll requests.
type Server struct {
	cfg Config

	mu   sync.RWMutex
	code string
	done chan struct{}
	once sync.Once

	httpServer *http.Server
	listener   net.Listener
	closed     chan struct{}
	closeOnce  sync.Once
}

// New creates a Server. Call Start to begin listening, or mount Handler
// on an existing server.
func New(cfg Config) *Server {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.LongPollTimeout <= 0 {
		cfg.LongPollTimeout = DefaultLongPollTimeout
	}
	return &Server{
		cfg:    cfg,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// Start binds 127.0.0.1:<port> and serves in the background until Close is
// called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(netutil.LoopbackHost, strconv.Itoa(s.cfg.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}
	s.listener = listener
	s.cfg.Port = listener.Addr().(*net.TCPAddr).Port

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Callback", err, "Callback server stopped unexpectedly")
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.closed:
		}
	}()

	logging.Info("Callback", "OAuth callback server listening on http://localhost:%d%s", s.cfg.Port, s.cfg.Path)
	return nil
}

// Handler returns the HTTP handler serving both endpoints.
func (s *Server) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.route)
	if s.cfg.RequestLog {
		// requestlog defaults to stdout, which carries the MCP stream.
		h = requestlog.WrapWith(h, requestlog.Options{Writer: os.Stderr})
	}
	return h
}

// route matches request paths exactly. The callback path comes from user
// configuration and is never parsed as a ServeMux pattern.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	var handle http.HandlerFunc
	switch r.URL.Path {
	case WaitPath:
		handle = s.handleWaitForAuth
	case s.cfg.Path:
		handle = s.handleCallback
	default:
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	handle(w, r)
}

// Port returns the port the server listens on. Valid after Start.
func (s *Server) Port() int {
	return s.cfg.Port
}

// RedirectURI returns the URI to register with the authorization server.
func (s *Server) RedirectURI() string {
	return RedirectURI(s.cfg.Port, s.cfg.Path)
}

// RedirectURI builds the redirect URI for a port and callback path.
func RedirectURI(port int, path string) string {
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("http://localhost:%d%s", port, path)
}

// Done is closed once an authorization code has been received.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Code returns the received authorization code, if any.
func (s *Server) Code() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code, s.code != ""
}

// WaitForAuthCode returns the authorization code as soon as it is known.
// Calls after the code arrived return it immediately.
func (s *Server) WaitForAuthCode(ctx context.Context) (string, error) {
	if code, ok := s.Code(); ok {
		return code, nil
	}
	logging.Debug("Callback", "Waiting for authorization code")
	select {
	case <-s.done:
		code, _ := s.Code()
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the listener. It is safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.httpServer == nil {
			return
		}
		// Drops pending long-polls immediately.
		err = s.httpServer.Close()
		logging.Debug("Callback", "Callback server on port %d closed", s.cfg.Port)
	})
	return err
}

// setCode stores code unless one is already known. It reports whether this
// call stored it.
func (s *Server) setCode(code string) bool {
	stored := false
	s.once.Do(func() {
		s.mu.Lock()
		s.code = code
		s.mu.Unlock()
		close(s.done)
		stored = true
	})
	return stored
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	query := r.URL.Query()
	code := query.Get("code")
	if code == "" {
		missing := &MissingCodeError{
			OAuthError:       query.Get("error"),
			ErrorDescription: query.Get("error_description"),
		}
		logging.Warn("Callback", "Redirect received without an authorization code: %v", missing)
		render(w, http.StatusBadRequest, errorTemplate, map[string]string{
			"Error":       missing.Error(),
			"Description": missing.ErrorDescription,
		})
		return
	}

	if s.setCode(code) {
		logging.Info("Callback", "Authorization code received")
	} else {
		logging.Debug("Callback", "Ignoring repeated authorization redirect")
	}

	render(w, http.StatusOK, successTemplate, map[string]any{
		"ServerURL": s.cfg.ServerURL,
		"Time":      time.Now(),
	})
}

func (s *Server) handleWaitForAuth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	if _, ok := s.Code(); ok {
		logging.Debug("Callback", "Long-poll: authorization already completed")
		writeText(w, http.StatusOK, ResponseCompleted)
		return
	}

	if r.URL.Query().Get("poll") == "false" {
		writeText(w, http.StatusAccepted, ResponseInProgress)
		return
	}

	timer := time.NewTimer(s.cfg.LongPollTimeout)
	defer timer.Stop()

	select {
	case <-s.done:
		logging.Debug("Callback", "Long-poll: authorization completed")
		writeText(w, http.StatusOK, ResponseCompleted)
	case <-timer.C:
		writeText(w, http.StatusAccepted, ResponseInProgress)
	case <-r.Context().Done():
		// Client went away; nothing to send.
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
}

func render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logging.Error("Callback", err, "Failed to render %s page", tmpl.Name())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
