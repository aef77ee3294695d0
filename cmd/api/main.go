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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomkillen/koans-api/internal/api"
	"github.com/tomkillen/koans-api/internal/auth"
	"github.com/tomkillen/koans-api/internal/catalog"
	"github.com/tomkillen/koans-api/internal/completion"
	"github.com/tomkillen/koans-api/internal/config"
	"github.com/tomkillen/koans-api/internal/identity"
	"github.com/tomkillen/koans-api/internal/seed"
	"github.com/tomkillen/koans-api/internal/storage/memory"
	"github.com/tomkillen/koans-api/internal/storage/postgres"
	httptransport "github.com/tomkillen/koans-api/internal/transport/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		catalogRepo    catalog.Repository
		userRepo       identity.Repository
		completionRepo completion.Repository
	)
	switch {
	case cfg.PostgresURL != "":
		if err := postgres.Migrate(ctx, cfg.PostgresURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		catalogRepo = postgres.NewActivityRepository(pool)
		userRepo = postgres.NewUserRepository(pool)
		completionRepo = postgres.NewCompletionRepository(pool)
		logger.Info("using postgres store")
	case cfg.DevelopmentMode:
		store := memory.NewStore()
		catalogRepo = store.Activities()
		userRepo = store.Users()
		completionRepo = store.Completions()
		logger.Info("using in-memory store")
	default:
		return errors.New("KOANS_POSTGRES_URL is required outside development mode")
	}

	catalogSvc := catalog.NewService(catalogRepo)
	identitySvc := identity.NewService(userRepo)
	completionSvc := completion.NewService(completionRepo, userRepo, catalogRepo)

	authCfg := auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}
	tokenSvc := auth.NewService(authCfg, identitySvc)

	if cfg.DevelopmentMode {
		if err := seed.Populate(ctx, identitySvc, catalogSvc, seed.DefaultActivityCount); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("seeded development data")
	}

	handler := api.NewHandler(catalogSvc, completionSvc, identitySvc, tokenSvc, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(authCfg, func(r *http.Request) bool {
		switch r.URL.Path {
		case "/healthz", "/metrics", "/v1/auth":
			return true
		case "/v1/user":
			// Registration happens before credentials exist.
			return r.Method == http.MethodPost
		}
		return false
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.Address(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(httptransport.AccessLog(logger, mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-shutdownCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
