package oauth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileTokenStore {
	t.Helper()
	return NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"), "https://example.com/sse")
}

func TestFileTokenStore_NoToken(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetToken(context.Background())
	assert.ErrorIs(t, err, transport.ErrNoToken)
	assert.False(t, s.HasValidToken())
	assert.Nil(t, s.Stored())
}

func TestFileTokenStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveToken(ctx, &transport.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}))

	tok, err := s.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.False(t, tok.ExpiresAt.IsZero(), "ExpiresIn must be turned into an absolute expiry")
	assert.True(t, s.HasValidToken())

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second store reads the same file.
	other := NewFileTokenStore(s.Path(), "https://example.com/sse")
	tok, err = other.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", tok.AccessToken)
}

func TestFileTokenStore_ExpiredTokenReturned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveToken(ctx, &transport.Token{
		AccessToken:  "old",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	tok, err := s.GetToken(ctx)
	require.NoError(t, err, "expired tokens are handed to mcp-go for refresh")
	assert.True(t, tok.IsExpired())
	assert.False(t, s.HasValidToken())
}

func TestFileTokenStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetToken(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.SaveToken(ctx, &transport.Token{AccessToken: "x"}), context.Canceled)
}

func TestFileTokenStore_SaveNil(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveToken(context.Background(), nil))
}

func TestFileTokenStore_Invalidate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveToken(ctx, &transport.Token{AccessToken: "first"}))

	other := NewFileTokenStore(s.Path(), "https://example.com/sse")
	require.NoError(t, other.SaveToken(ctx, &transport.Token{AccessToken: "second"}))

	tok, err := s.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken, "cached until invalidated")

	s.Invalidate()
	tok, err = s.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", tok.AccessToken)
}

func TestFileTokenStore_Watch(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.SaveToken(ctx, &transport.Token{AccessToken: "first"}))
	require.NoError(t, s.Watch(ctx))

	other := NewFileTokenStore(s.Path(), "https://example.com/sse")
	require.NoError(t, other.SaveToken(ctx, &transport.Token{AccessToken: "second"}))

	assert.Eventually(t, func() bool {
		tok, err := s.GetToken(ctx)
		return err == nil && tok.AccessToken == "second"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileTokenStore_ExpiredCacheRereadsDisk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, WriteJSON(s.Path(), StoredToken{
		AccessToken: "stale",
		Expiry:      time.Now().Add(-time.Hour),
	}))
	assert.False(t, s.HasValidToken())

	// Another instance finishes authorization without a running watcher.
	require.NoError(t, WriteJSON(s.Path(), StoredToken{
		AccessToken: "fresh",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))
	assert.True(t, s.HasValidToken())

	tok, err := s.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
}
