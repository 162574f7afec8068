package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/tgin/internal/config"
	"github.com/dgnsrekt/tgin/internal/ingest"
	"github.com/dgnsrekt/tgin/internal/manage"
	"github.com/dgnsrekt/tgin/internal/relay"
	"github.com/dgnsrekt/tgin/internal/route"
	"github.com/dgnsrekt/tgin/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the update router",
		Long: `Run the update router: ingest updates from the configured sources,
distribute them over the configured route tree and serve long-poll,
WebSocket and management endpoints.

Examples:
  # Use ./configs/default.yaml or ./tgin.yaml
  tgin serve

  # Explicit config file with debug logging
  tgin serve -c /etc/tgin.yaml -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func relayConfig(c config.RelayConfig) relay.Config {
	return relay.Config{
		Timeout:       c.Timeout,
		RetryCount:    c.RetryCount,
		RetryDelay:    c.RetryDelay,
		RatePerSecond: c.RatePerSecond,
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	registry := route.NewRegistry()
	relayCfg := relayConfig(cfg.Relay)
	if err := relayCfg.Validate(); err != nil {
		return fmt.Errorf("relay config: %w", err)
	}

	root, err := route.Build(cfg.Route, route.Deps{
		Registry: registry,
		Relay:    relayCfg,
		Logger:   logger.Named("route"),
	})
	if err != nil {
		return fmt.Errorf("building routes: %w", err)
	}

	sources, err := ingest.Build(cfg.Updates, root, logger.Named("ingest"))
	if err != nil {
		return fmt.Errorf("building update sources: %w", err)
	}

	mgr := manage.New(root, logger.Named("manage"))

	srv, err := server.New(server.Options{
		Registry:       registry,
		Manager:        mgr,
		Relay:          relayCfg,
		MaxPollTimeout: cfg.Server.MaxPollTimeout,
		CommandTimeout: cfg.Server.CommandTimeout,
		Ingested:       sources.Count,
		Logger:         logger.Named("server"),
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := root.Bind(srv); err != nil {
		return fmt.Errorf("binding routes: %w", err)
	}
	if err := sources.Bind(srv); err != nil {
		return fmt.Errorf("binding update sources: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		// Pending long polls end when the router stops.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		mgr.Run(gctx)
		return nil
	})

	for _, loop := range srv.Loops() {
		g.Go(func() error {
			logger.Debug("starting loop", zap.String("name", loop.Name))
			loop.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", httpServer.Addr),
			zap.Strings("longpoll", registry.Paths()),
			zap.Int("sources", len(sources)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		// Graceful HTTP server shutdown
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("router stopped with error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
