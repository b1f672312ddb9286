package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpggio/fastwatch/internal/config"
	"github.com/rpggio/fastwatch/internal/mcp"
	"github.com/rpggio/fastwatch/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio or streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, mode)
		},
	}
	cmd.Flags().StringVar(&mode, "transport", "", "Override transport mode: stdio or http")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions, mode string) error {
	a, err := openApp(opts, func(cfg *config.Config) io.Writer {
		if mode != "" {
			cfg.Transport.Mode = mode
		}
		// Stdout carries JSON-RPC in stdio mode, so logs go to stderr there.
		if cfg.Transport.Mode == config.TransportHTTP {
			return cmd.OutOrStdout()
		}
		return cmd.ErrOrStderr()
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.watchProtocols(ctx)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Fasts:     a.fasts,
			Tracker:   a.tracker,
			Stats:     a.stats,
			Activity:  a.activity,
			Protocols: a.protocols,
		},
		Resolver:      a.keys,
		AuthEnabled:   a.cfg.Auth.Enabled,
		TransportMode: a.cfg.Transport.Mode,
		DefaultUser:   a.userID,
		Clock:         a.clock,
		Logger:        a.logger,
	})

	switch a.cfg.Transport.Mode {
	case config.TransportStdio:
		return runStdioMode(ctx, a.logger, mcpServer)
	case config.TransportHTTP:
		return runHTTPMode(ctx, a.logger, mcpServer, a.cfg.Server.Host, a.cfg.Server.Port)
	default:
		return fmt.Errorf("unknown transport %q", a.cfg.Transport.Mode)
	}
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           transport.NewHandler(mcpServer, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
