package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/registry/api"
	"github.com/zjrosen/registrar/internal/tracing"
	"github.com/zjrosen/registrar/internal/watcher"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry HTTP server",
	Long: `Run the registry as a long-lived process that exposes an HTTP API for
entry management and an SSE stream of registry events.

The server listens on the configured address (default: localhost:8480).

Example:
  registrar serve                  # Start on the configured address
  registrar serve --addr :8080     # Start on port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.API.Addr
	}

	server, err := api.NewServer(api.ServerConfig{
		Addr:           addr,
		Service:        svc,
		TracerProvider: provider,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Watch the database file so writes from another process invalidate the
	// metadata cache.
	dbWatcher, err := watcher.New(watcher.DefaultConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("creating database watcher: %w", err)
	}
	changes, err := dbWatcher.Start()
	if err != nil {
		return fmt.Errorf("starting database watcher: %w", err)
	}
	defer func() { _ = dbWatcher.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.SafeGo("cache-invalidator", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if err := svc.FlushCache(ctx); err != nil {
					log.Warn(log.CatWatcher, "failed to flush metadata cache", "error", err)
				} else {
					log.Debug(log.CatWatcher, "database changed, metadata cache flushed")
				}
			}
		}
	})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("registrar listening on port %d\n", server.Port())
	fmt.Println("Press Ctrl+C to stop")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error(log.CatAPI, "error stopping API server", "error", err)
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Error(log.CatAPI, "error shutting down tracing", "error", err)
	}

	fmt.Println("Server stopped")
	return nil
}
