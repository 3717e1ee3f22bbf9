package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/cratedocs/internal/config"
	"github.com/standardbeagle/cratedocs/internal/cratecache"
	"github.com/standardbeagle/cratedocs/internal/cratesvc"
	"github.com/standardbeagle/cratedocs/internal/debug"
	"github.com/standardbeagle/cratedocs/internal/download"
	"github.com/standardbeagle/cratedocs/internal/githubclient"
	"github.com/standardbeagle/cratedocs/internal/httpapi"
	"github.com/standardbeagle/cratedocs/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "cratedocs",
		Usage:   "read-only source browsing and search service for published crates",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "address to listen on (overrides CRATEDOCS_ADDR)",
			},
			&cli.IntFlag{
				Name:  "cache-capacity",
				Usage: "LRU package cache capacity (overrides CRATE_CACHE_CAPACITY)",
			},
		},
		Action: serveCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "cratedocs: %v\n", err)
		os.Exit(1)
	}
}

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	if capacity := c.Int("cache-capacity"); capacity > 0 {
		cfg.CacheCapacity = capacity
	}

	cache, err := cratecache.New(cfg.CacheCapacity)
	if err != nil {
		return fmt.Errorf("configuration error: cache capacity: %w", err)
	}

	svc := cratesvc.New(cache, download.New())

	var gh *githubclient.Client
	if cfg.GitHubEnabled() {
		gh = githubclient.New(context.Background(), cfg.GitHubToken)
		debug.Logf("external code-hosting collaborator enabled")
	}

	server := httpapi.New(cfg, svc, gh)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		debug.Logf("listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		debug.Logf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return <-errChan
	}
}
