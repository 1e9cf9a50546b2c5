package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexjbarnes/dashboard-bff/internal/auth"
	"github.com/alexjbarnes/dashboard-bff/internal/config"
	"github.com/alexjbarnes/dashboard-bff/internal/logging"
	"github.com/alexjbarnes/dashboard-bff/internal/refresh"
	"github.com/alexjbarnes/dashboard-bff/internal/server"
	"github.com/alexjbarnes/dashboard-bff/internal/spotify"
	"github.com/alexjbarnes/dashboard-bff/internal/tokenstore"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.LogLevel)

	store, err := tokenstore.Select(tokenstore.SelectorConfig{
		Backend:        cfg.TokenBackend,
		FilePath:       cfg.TokenFile,
		DBPath:         cfg.TokenDB,
		EnvKey:         cfg.TokenEnvKey,
		KeyringService: cfg.KeyringService,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("selecting token store: %w", err)
	}
	defer store.Close()

	logger.Info("dashboard-bff starting",
		slog.String("version", Version),
		slog.String("runtime", store.Runtime().String()),
		slog.String("token_backend", store.Backend()),
	)

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = spotify.DefaultScopes
	}

	authClient := spotify.NewAuthClient(spotify.AuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		AuthURL:      cfg.AuthURL(),
		TokenURL:     cfg.TokenURL(),
	})

	renewer := refresh.NewRenewer(store, authClient, logger.With(slog.String("component", "renewer")))
	coordinator := refresh.NewCoordinator(store, renewer, refresh.Config{
		Interval:  cfg.RefreshInterval,
		Threshold: cfg.RefreshThreshold,
		Ceiling:   cfg.RefreshCeiling,
	}, logger.With(slog.String("component", "coordinator")))

	apiLogger := logger.With(slog.String("component", "spotify-api"))
	exec := spotify.NewExecutor(spotify.ExecutorConfig{
		Store:   store,
		Renewer: renewer,
		BaseURL: cfg.APIURL,
		Logger:  apiLogger,
	})

	resources := spotify.NewAPI(exec, apiLogger)

	mux := server.NewMux(server.MuxConfig{
		Store:       store,
		Authorizer:  authClient,
		Installer:   renewer,
		Clearer:     renewer,
		Refresher:   coordinator,
		Resources:   resources,
		Activity:    spotify.NewAnalytics(resources, cfg.Location()),
		Scopes:      scopes,
		FrontendURL: cfg.FrontendURL,
		Cookie:      auth.StateCookie{Secure: cfg.IsProduction()},
		Logger:      logger,
		Version:     Version,
		Runtime:     store.Runtime().String(),
		Backend:     store.Backend(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coordinator.Run(gctx)
	})

	g.Go(func() error {
		return serve(gctx, cfg.ListenAddr, mux, logger)
	})

	return g.Wait()
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting HTTP server", slog.String("listen", addr))

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}
