package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mcp-remote/internal/proxy"
	"mcp-remote/internal/transport"
	"mcp-remote/pkg/logging"
)

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := proxyOpts.resolve(cmd, args)
	if err != nil {
		return err
	}
	initLogging(cfg)

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("Proxy", "Connecting to %s using %s transport", cfg.ServerURL, cfg.Transport)
	session, err := openRemote(sigCtx, cfg)
	if err != nil {
		if interrupted(sigCtx, err) {
			logging.Info("Proxy", "Shutting down...")
			return nil
		}
		logging.Error("Proxy", err, "Fatal error")
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logging.Debug("Proxy", "Cleanup: %v", err)
		}
	}()

	local := transport.NewStdio(os.Stdin, os.Stdout)
	p := proxy.Proxy(sigCtx, local, session.conn)

	if err := local.Start(sigCtx); err != nil {
		_ = p.Close()
		return err
	}
	logging.Info("Proxy", "Local STDIO server running")
	logging.Info("Proxy", "Proxy established successfully between local STDIO and remote %s", cfg.Transport)
	logging.Info("Proxy", "Press Ctrl+C to exit")

	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-p.Done()
		cancel()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if sigCtx.Err() != nil {
			logging.Info("Proxy", "Shutting down...")
		}
		return p.Close()
	})
	return g.Wait()
}
