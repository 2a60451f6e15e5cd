package oauth

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mcp-remote/pkg/logging"
)

// DefaultConfigDirName is the directory under the user's home holding
// stored credentials.
const DefaultConfigDirName = ".mcp-auth"

// ServerURLHash returns the hex MD5 digest of serverURL. It is a stable
// per-server file name key, not a security measure.
func ServerURLHash(serverURL string) string {
	sum := md5.Sum([]byte(serverURL))
	return hex.EncodeToString(sum[:])
}

// DefaultConfigDir returns ~/.mcp-auth.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDirName), nil
}

// Files locates the credential files of one remote server.
type Files struct {
	Dir  string
	Hash string
}

// NewFiles returns the file set for serverURL inside dir.
func NewFiles(dir, serverURL string) Files {
	return Files{Dir: dir, Hash: ServerURLHash(serverURL)}
}

// Tokens is the token file path.
func (f Files) Tokens() string { return f.path("tokens") }

// ClientInfo is the registered client file path.
func (f Files) ClientInfo() string { return f.path("client_info") }

// Lock is the coordination lockfile path.
func (f Files) Lock() string { return f.path("lock") }

func (f Files) path(kind string) string {
	return filepath.Join(f.Dir, fmt.Sprintf("%s_%s.json", f.Hash, kind))
}

// Clean removes every stored file of this server. Missing files are fine.
func (f Files) Clean() error {
	var errs []error
	for _, p := range []string{f.Tokens(), f.ClientInfo(), f.Lock()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clean stored credentials: %w", err)
	}
	logging.Info("OAuth", "Removed stored credentials in %s for server hash %s", f.Dir, f.Hash)
	return nil
}

// WriteJSON writes v to path atomically with owner-only permissions.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadJSON decodes path into v. A missing file yields os.ErrNotExist.
func ReadJSON(path string, v any) error {
	// #nosec G304 -- path is built from the config dir and a hash
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
