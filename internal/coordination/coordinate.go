package coordination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"mcp-remote/internal/agent/oauth"
	"mcp-remote/internal/callback"
	"mcp-remote/internal/netutil"
	"mcp-remote/pkg/logging"
)

// ErrSharedAuthUnavailable is returned by a secondary instance's
// WaitForAuthCode. The code was consumed by the primary instance; the
// secondary uses the tokens it stored.
var ErrSharedAuthUnavailable = errors.New("authorization code is held by another instance; using shared tokens")

const (
	// DefaultLockMaxAge is how long a lock is trusted without a live owner check.
	DefaultLockMaxAge = 30 * time.Minute

	defaultMaxAttempts = 10
	defaultTokenWait   = 10 * time.Second
)

// Config configures Coordinate.
type Config struct {
	ServerURL string
	ConfigDir string

	// CallbackPort is the preferred port; a free one is chosen when taken
	// unless PortExplicit is set.
	CallbackPort int
	PortExplicit bool
	CallbackPath string

	LongPollTimeout time.Duration
	RequestLog      bool

	// TokensReady reports whether the primary has stored tokens. A
	// secondary waits for it after the primary's authorization completes.
	TokensReady func() bool

	// HTTPClient is used to reach another instance. Defaults to a client
	// without timeout so long-polls are bounded by the server side.
	HTTPClient *http.Client

	// MaxAttempts bounds consecutive failed long-poll requests.
	MaxAttempts int
	Backoff     *backoff.Backoff
	LockMaxAge  time.Duration
}

// Result is the outcome of Coordinate.
type Result struct {
	// WaitForAuthCode blocks until the authorization code is known.
	WaitForAuthCode func(ctx context.Context) (string, error)
	// SkipBrowserAuth is set when another instance owns the browser flow.
	SkipBrowserAuth bool
	// Server is the callback server of a primary instance, nil otherwise.
	Server *callback.Server
	// Port is the callback port; the primary's port for a secondary.
	Port int
	// InstanceID identifies this process in the lockfile.
	InstanceID string

	cleanup func() error
}

// Cleanup closes the callback server and removes the lockfile if this
// process still owns it. Safe to call more than once.
func (r *Result) Cleanup() error {
	if r == nil || r.cleanup == nil {
		return nil
	}
	err := r.cleanup()
	r.cleanup = nil
	return err
}

// Coordinate decides whether this process is the primary or a secondary
// instance for cfg.ServerURL and sets up the authorization wait
// accordingly.
func Coordinate(ctx context.Context, cfg Config) (*Result, error) {
	cfg = withDefaults(cfg)
	files := oauth.NewFiles(cfg.ConfigDir, cfg.ServerURL)

	lock, err := ReadLock(files.Lock())
	if err != nil {
		logging.Warn("Coordination", "Ignoring unreadable lockfile: %v", err)
	}

	if lock != nil && lock.PID != os.Getpid() {
		if lock.Age(time.Now()) > cfg.LockMaxAge {
			logging.Debug("Coordination", "Lockfile from pid %d is stale (%s old)", lock.PID, lock.Age(time.Now()).Round(time.Second))
		} else if isInstanceActive(ctx, cfg.HTTPClient, lock.Port) {
			logging.Info("Coordination", "Another instance (pid %d) is handling authorization on port %d", lock.PID, lock.Port)
			if err := waitForOtherInstance(ctx, cfg, lock.Port); err != nil {
				return nil, err
			}
			return &Result{
				WaitForAuthCode: func(context.Context) (string, error) {
					return "", ErrSharedAuthUnavailable
				},
				SkipBrowserAuth: true,
				Port:            lock.Port,
			}, nil
		} else {
			logging.Debug("Coordination", "Lockfile owner on port %d is not responding", lock.Port)
		}
	}

	return becomePrimary(ctx, cfg, files)
}

func withDefaults(cfg Config) Config {
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = callback.DefaultPath
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = &backoff.Backoff{
			Min:    500 * time.Millisecond,
			Max:    10 * time.Second,
			Factor: 2,
			Jitter: true,
		}
	}
	if cfg.LockMaxAge <= 0 {
		cfg.LockMaxAge = DefaultLockMaxAge
	}
	return cfg
}

func becomePrimary(ctx context.Context, cfg Config, files oauth.Files) (*Result, error) {
	port := cfg.CallbackPort
	if !cfg.PortExplicit {
		var err error
		if port, err = netutil.FindAvailablePort(cfg.CallbackPort); err != nil {
			return nil, err
		}
	}
	if cfg.CallbackPort != 0 && port != cfg.CallbackPort {
		logging.Warn("Coordination", "Callback port %d is in use, using %d instead", cfg.CallbackPort, port)
	}

	server := callback.New(callback.Config{
		Port:            port,
		Path:            cfg.CallbackPath,
		LongPollTimeout: cfg.LongPollTimeout,
		ServerURL:       cfg.ServerURL,
		RequestLog:      cfg.RequestLog,
	})
	if err := server.Start(ctx); err != nil {
		return nil, &netutil.PortBindError{Port: port, Err: err}
	}

	instanceID := uuid.NewString()
	lock := &LockData{
		PID:        os.Getpid(),
		Port:       server.Port(),
		Timestamp:  time.Now(),
		InstanceID: instanceID,
	}
	if err := WriteLock(files.Lock(), lock); err != nil {
		// Coordination is best effort; this instance still works alone.
		logging.Warn("Coordination", "Could not write lockfile: %v", err)
	}
	logging.Debug("Coordination", "Primary instance %s listening on port %d", instanceID, server.Port())

	return &Result{
		WaitForAuthCode: server.WaitForAuthCode,
		Server:          server,
		Port:            server.Port(),
		InstanceID:      instanceID,
		cleanup: func() error {
			return errors.Join(server.Close(), RemoveLock(files.Lock(), instanceID))
		},
	}, nil
}

func waitURL(port int, poll bool) string {
	return fmt.Sprintf("http://%s%s?poll=%t",
		net.JoinHostPort(netutil.LoopbackHost, strconv.Itoa(port)), callback.WaitPath, poll)
}

// isInstanceActive checks the other instance's wait endpoint without
// holding the request open.
func isInstanceActive(ctx context.Context, client *http.Client, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status, err := getStatus(ctx, client, waitURL(port, false))
	if err != nil {
		logging.Debug("Coordination", "Instance check on port %d failed: %v", port, err)
		return false
	}
	return status == http.StatusOK || status == http.StatusAccepted
}

// waitForOtherInstance long-polls until the other instance reports a
// completed authorization, then waits for its tokens to reach disk.
func waitForOtherInstance(ctx context.Context, cfg Config, port int) error {
	b := cfg.Backoff
	b.Reset()
	url := waitURL(port, true)

	for {
		status, err := getStatus(ctx, cfg.HTTPClient, url)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if int(b.Attempt())+1 >= cfg.MaxAttempts {
				return fmt.Errorf("lost contact with the instance on port %d: %w", port, err)
			}
			d := b.Duration()
			logging.Debug("Coordination", "Long-poll failed (%v), retrying in %s", err, d)
			if err := sleep(ctx, d); err != nil {
				return err
			}
			continue
		case status == http.StatusOK:
			logging.Info("Coordination", "Authorization completed by the other instance")
			return waitForTokens(ctx, cfg)
		case status == http.StatusAccepted:
			b.Reset()
			logging.Debug("Coordination", "Authorization still in progress, polling again")
			continue
		default:
			return fmt.Errorf("unexpected status %d from the instance on port %d", status, port)
		}
	}
}

func waitForTokens(ctx context.Context, cfg Config) error {
	if cfg.TokensReady == nil {
		return nil
	}
	deadline := time.Now().Add(defaultTokenWait)
	for !cfg.TokensReady() {
		if time.Now().After(deadline) {
			logging.Warn("Coordination", "Tokens from the other instance did not appear in time")
			return nil
		}
		if err := sleep(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func getStatus(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
