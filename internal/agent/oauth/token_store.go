package oauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mark3labs/mcp-go/client/transport"
	"golang.org/x/oauth2"

	"mcp-remote/pkg/logging"
)

// StoredToken is the on-disk form of an OAuth token.
type StoredToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ServerURL    string    `json:"server_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToOAuth2Token converts a StoredToken to an oauth2.Token.
func (t *StoredToken) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// FileTokenStore implements mcp-go's transport.TokenStore on a single JSON
// file. It returns tokens even when expired so that mcp-go can refresh
// them, and persists whatever mcp-go saves back.
//
// SECURITY: token values are never logged.
type FileTokenStore struct {
	path      string
	serverURL string

	mu     sync.RWMutex
	cached *StoredToken
}

var _ transport.TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a token store persisting to path.
func NewFileTokenStore(path, serverURL string) *FileTokenStore {
	return &FileTokenStore{path: path, serverURL: serverURL}
}

// Path returns the token file path.
func (s *FileTokenStore) Path() string {
	return s.path
}

// GetToken implements transport.TokenStore.
func (s *FileTokenStore) GetToken(ctx context.Context) (*transport.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, err := s.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, transport.ErrNoToken
		}
		return nil, err
	}
	if stored.AccessToken == "" {
		return nil, transport.ErrNoToken
	}

	return &transport.Token{
		AccessToken:  stored.AccessToken,
		TokenType:    stored.TokenType,
		RefreshToken: stored.RefreshToken,
		Scope:        stored.Scope,
		ExpiresAt:    stored.Expiry,
	}, nil
}

// SaveToken implements transport.TokenStore.
func (s *FileTokenStore) SaveToken(ctx context.Context, token *transport.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if token == nil {
		return errors.New("cannot save nil token")
	}

	oauth2Token := &oauth2.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.ExpiresAt,
	}
	if oauth2Token.Expiry.IsZero() && token.ExpiresIn > 0 {
		oauth2Token.Expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	stored := &StoredToken{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		TokenType:    oauth2Token.Type(),
		Expiry:       oauth2Token.Expiry,
		Scope:        token.Scope,
		ServerURL:    s.serverURL,
		CreatedAt:    time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := WriteJSON(s.path, stored); err != nil {
		logging.Warn("OAuth", "Failed to persist token for %s: %v", s.serverURL, err)
		return fmt.Errorf("failed to persist token: %w", err)
	}
	s.cached = stored

	logging.Info("OAuth", "Stored token for %s (expires %s, refresh token: %t)",
		s.serverURL, formatExpiry(stored.Expiry), stored.RefreshToken != "")
	return nil
}

// HasValidToken reports whether a non-expired access token is stored.
func (s *FileTokenStore) HasValidToken() bool {
	stored, err := s.load()
	if err != nil {
		return false
	}
	return stored.ToOAuth2Token().Valid()
}

// Stored returns the stored token, or nil when there is none.
func (s *FileTokenStore) Stored() *StoredToken {
	stored, err := s.load()
	if err != nil {
		return nil
	}
	return stored
}

// Invalidate drops the cached token so the next read goes to disk.
func (s *FileTokenStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

// load returns the cached token while it is usable. An expired or empty
// token is read again from disk, where another instance may have replaced it.
func (s *FileTokenStore) load() (*StoredToken, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != nil && cached.ToOAuth2Token().Valid() {
		return cached, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cached != cached && s.cached.ToOAuth2Token().Valid() {
		return s.cached, nil
	}

	var stored StoredToken
	if err := ReadJSON(s.path, &stored); err != nil {
		s.cached = nil
		return nil, err
	}
	s.cached = &stored
	return s.cached, nil
}

// Watch invalidates the cache whenever another process rewrites or removes
// the token file. It returns when ctx is cancelled.
func (s *FileTokenStore) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The directory is watched because writes replace the file by rename.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		name := filepath.Base(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				logging.Debug("OAuth", "Token file changed (%s), dropping cache", event.Op)
				s.Invalidate()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Error("OAuth", err, "Token file watcher error")
			}
		}
	}()
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
