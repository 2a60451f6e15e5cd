package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client/transport"

	"mcp-remote/pkg/logging"
)

// DefaultClientName is sent during dynamic client registration.
const DefaultClientName = "MCP CLI Proxy"

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	ServerURL   string
	ConfigDir   string
	RedirectURI string
	ClientName  string
	Scopes      []string
	SkipBrowser bool
	HTTPClient  *http.Client

	// OpenBrowser overrides the browser launcher. Defaults to OpenBrowser.
	OpenBrowser func(url string) error
}

// Provider supplies OAuth configuration and drives the authorization-code
// flow for one remote server.
type Provider struct {
	cfg    ProviderConfig
	files  Files
	tokens *FileTokenStore

	mu          sync.Mutex
	skipBrowser bool
	state       string
	verifier    string
}

// NewProvider creates a provider storing credentials under cfg.ConfigDir.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}
	if cfg.ConfigDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.ConfigDir = dir
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.OpenBrowser == nil {
		cfg.OpenBrowser = OpenBrowser
	}

	files := NewFiles(cfg.ConfigDir, cfg.ServerURL)
	return &Provider{
		cfg:         cfg,
		files:       files,
		tokens:      NewFileTokenStore(files.Tokens(), cfg.ServerURL),
		skipBrowser: cfg.SkipBrowser,
	}, nil
}

// Files returns the credential file set of this server.
func (p *Provider) Files() Files {
	return p.files
}

// TokenStore returns the file-backed token store.
func (p *Provider) TokenStore() *FileTokenStore {
	return p.tokens
}

// SetRedirectURI sets the callback URI once the callback port is known.
func (p *Provider) SetRedirectURI(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.RedirectURI = uri
}

// SetSkipBrowser disables opening the browser. Used after another
// instance has completed authorization.
func (p *Provider) SetSkipBrowser(skip bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipBrowser = skip
}

// OAuthConfig returns a fresh configuration for a new transport. Stored
// client registration is reloaded every time so reconnects pick up a
// client registered by a previous attempt.
func (p *Provider) OAuthConfig() transport.OAuthConfig {
	p.mu.Lock()
	redirectURI := p.cfg.RedirectURI
	p.mu.Unlock()

	cfg := transport.OAuthConfig{
		RedirectURI: redirectURI,
		Scopes:      p.cfg.Scopes,
		TokenStore:  p.tokens,
		PKCEEnabled: true,
		HTTPClient:  p.cfg.HTTPClient,
	}

	info, err := LoadClientInfo(p.files.ClientInfo())
	if err != nil {
		logging.Warn("OAuth", "Ignoring unreadable client registration: %v", err)
		return cfg
	}
	if info == nil {
		return cfg
	}
	if info.RedirectURI != "" && info.RedirectURI != redirectURI {
		logging.Info("OAuth", "Redirect URI changed from %s to %s, client will be registered again", info.RedirectURI, redirectURI)
		return cfg
	}
	cfg.ClientID = info.ClientID
	cfg.ClientSecret = info.ClientSecret
	return cfg
}

// RedirectToAuthorization registers the client when needed, builds the
// authorization URL and opens it in the browser unless skipped. The URL is
// always logged so it can be opened manually.
func (p *Provider) RedirectToAuthorization(ctx context.Context, handler *transport.OAuthHandler) error {
	if handler == nil {
		return errors.New("transport has no OAuth handler")
	}

	if handler.GetClientID() == "" {
		logging.Info("OAuth", "Registering client %q with %s", p.cfg.ClientName, p.cfg.ServerURL)
		if err := handler.RegisterClient(ctx, p.cfg.ClientName); err != nil {
			return fmt.Errorf("dynamic client registration failed: %w", err)
		}
		p.mu.Lock()
		redirectURI := p.cfg.RedirectURI
		p.mu.Unlock()
		info := &ClientInfo{
			ClientID:     handler.GetClientID(),
			ClientSecret: handler.GetClientSecret(),
			RedirectURI:  redirectURI,
			RegisteredAt: time.Now(),
		}
		if err := SaveClientInfo(p.files.ClientInfo(), info); err != nil {
			return fmt.Errorf("failed to save client registration: %w", err)
		}
	}

	pkce, err := GeneratePKCE()
	if err != nil {
		return err
	}
	state, err := GenerateState()
	if err != nil {
		return err
	}

	authURL, err := handler.GetAuthorizationURL(ctx, state, pkce.CodeChallenge)
	if err != nil {
		return fmt.Errorf("failed to build authorization URL: %w", err)
	}

	p.mu.Lock()
	p.state = state
	p.verifier = pkce.CodeVerifier
	skip := p.skipBrowser
	p.mu.Unlock()

	logging.Info("OAuth", "Please authorize this client by visiting:\n%s", authURL)

	if skip {
		logging.Info("OAuth", "Skipping browser launch, waiting for authorization")
		return nil
	}
	if err := p.cfg.OpenBrowser(authURL); err != nil {
		logging.Warn("OAuth", "Could not open browser automatically: %v", err)
	} else {
		logging.Info("OAuth", "Browser opened automatically")
	}
	return nil
}

// FinishAuth exchanges code for tokens with the PKCE verifier and state of
// the last RedirectToAuthorization call.
func (p *Provider) FinishAuth(ctx context.Context, handler *transport.OAuthHandler, code string) error {
	if handler == nil {
		return errors.New("transport has no OAuth handler")
	}

	p.mu.Lock()
	state, verifier := p.state, p.verifier
	p.mu.Unlock()

	// An instance that skipped the redirect has no pending flow; another
	// instance has already stored the token.
	if state == "" {
		if _, err := p.tokens.GetToken(ctx); err == nil {
			logging.Debug("OAuth", "No pending authorization, using stored token")
			return nil
		}
		return errors.New("no authorization in progress")
	}

	if err := handler.ProcessAuthorizationResponse(ctx, code, state, verifier); err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	p.mu.Lock()
	p.state, p.verifier = "", ""
	p.mu.Unlock()

	logging.Info("OAuth", "Authorization completed for %s", p.cfg.ServerURL)
	return nil
}

// Clean removes stored tokens, client registration and lockfile.
func (p *Provider) Clean() error {
	p.tokens.Invalidate()
	return p.files.Clean()
}
