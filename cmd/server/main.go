package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ManishG04/Convex/internal/config"
	"github.com/ManishG04/Convex/internal/httpapi"
	"github.com/ManishG04/Convex/internal/session"
	"github.com/ManishG04/Convex/internal/sessionlog"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := session.Options{
		Logger:          logger.Named("session"),
		RejectionEvents: cfg.RejectionEvents,
	}
	if cfg.DatabaseURL != "" {
		store, err := sessionlog.Open(cfg.DatabaseURL, logger.Named("sessionlog"))
		if err != nil {
			logger.Fatal("session log unavailable", zap.Error(err))
		}
		defer store.Close()
		opts.Sink = store
		logger.Info("session log enabled")
	}

	// Coordinator loop owns all room state; the router gets it injected.
	coord := session.New(ctx, opts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.SetupRoutes(coord, cfg, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Strings("allowed_origins", cfg.AllowedOrigins),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
