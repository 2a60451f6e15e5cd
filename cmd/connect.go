package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"mcp-remote/internal/agent/oauth"
	"mcp-remote/internal/callback"
	"mcp-remote/internal/config"
	"mcp-remote/internal/coordination"
	"mcp-remote/internal/headers"
	"mcp-remote/internal/remote"
	"mcp-remote/internal/transport"
	"mcp-remote/pkg/logging"
)

// connectOptions are the flags shared by every command that connects to a
// remote server.
type connectOptions struct {
	headers   string
	clean     bool
	transport string
	configDir string
	debug     bool
}

func (o *connectOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.headers, "header", "", `Extra request headers as "key:value,key2:value2"`)
	f.BoolVar(&o.clean, "clean", false, "Remove stored credentials for the server before connecting")
	f.StringVar(&o.transport, "transport", config.TransportSSE, "Remote transport: sse or streamable-http")
	f.StringVar(&o.configDir, "config-dir", "", "Directory for credentials and config.yaml (default $"+config.ConfigDirEnv+" or ~/.mcp-auth)")
	f.BoolVar(&o.debug, "debug", false, "Enable debug logging")
}

// resolve layers the command line over config.yaml and the defaults.
func (o *connectOptions) resolve(cmd *cobra.Command, args []string) (config.Config, error) {
	dir := o.configDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultConfigDir(); err != nil {
			return config.Config{}, fmt.Errorf("failed to determine config directory: %w", err)
		}
	}

	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return config.Config{}, err
	}

	cfg.ServerURL = args[0]
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return config.Config{}, config.ValidationErrors{{Field: "callbackPort", Value: args[1], Message: "must be a number"}}
		}
		cfg.CallbackPort = port
		cfg.PortExplicit = true
	}
	if cmd.Flags().Changed("transport") || cfg.Transport == "" {
		cfg.Transport = o.transport
	}
	if o.headers != "" {
		cfg.Headers = o.headers
	}
	cfg.Clean = o.clean
	cfg.Debug = cfg.Debug || o.debug

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func initLogging(cfg config.Config) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	// stdout carries MCP messages.
	logging.InitForCLI(level, os.Stderr)
}

// remoteSession is an authorized connection to the remote server together
// with the resources that must be released with it.
type remoteSession struct {
	cfg      config.Config
	provider *oauth.Provider
	coord    *coordination.Result
	conn     remote.Connection
}

// openRemote coordinates with other instances, then connects to the
// remote server, running the OAuth flow if the server asks for it.
func openRemote(ctx context.Context, cfg config.Config) (*remoteSession, error) {
	provider, err := oauth.NewProvider(oauth.ProviderConfig{
		ServerURL:  cfg.ServerURL,
		ConfigDir:  cfg.ConfigDir,
		ClientName: cfg.ClientName,
		Scopes:     cfg.Scopes,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Clean {
		logging.Info("Config", "Clean mode enabled: removing stored credentials before connecting")
		if err := provider.Clean(); err != nil {
			return nil, err
		}
	}

	// Watch before coordinating: a secondary instance polls the store while
	// the primary writes its tokens.
	if err := provider.TokenStore().Watch(ctx); err != nil {
		logging.Warn("OAuth", "Token file watching disabled: %v", err)
	}

	coord, err := coordination.Coordinate(ctx, coordination.Config{
		ServerURL:       cfg.ServerURL,
		ConfigDir:       cfg.ConfigDir,
		CallbackPort:    cfg.CallbackPort,
		PortExplicit:    cfg.PortExplicit,
		CallbackPath:    cfg.CallbackPath,
		LongPollTimeout: cfg.LongPollTimeout,
		RequestLog:      cfg.Debug,
		TokensReady:     provider.TokenStore().HasValidToken,
	})
	if err != nil {
		return nil, err
	}
	s := &remoteSession{cfg: cfg, provider: provider, coord: coord}

	if coord.Server != nil {
		logging.Info("Callback", "OAuth callback server running at %s", coord.Server.RedirectURI())
	}
	provider.SetRedirectURI(callback.RedirectURI(coord.Port, cfg.CallbackPath))
	provider.SetSkipBrowser(coord.SkipBrowserAuth)

	cipher, err := headers.NewCipher()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	conn, err := remote.Connect(ctx, remote.Config{
		ServerURL:       cfg.ServerURL,
		TransportType:   transport.Type(cfg.Transport),
		Authorizer:      provider,
		WaitForAuthCode: coord.WaitForAuthCode,
		SkipBrowserAuth: coord.SkipBrowserAuth,
		Headers:         cfg.Headers,
		Cipher:          cipher,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// Close closes the connection, the callback server and our lockfile.
func (s *remoteSession) Close() error {
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	if s.coord != nil {
		errs = append(errs, s.coord.Cleanup())
	}
	return errors.Join(errs...)
}

// interrupted reports whether err was caused by a shutdown signal.
func interrupted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}
