package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/catalogops/internal/app"
	"github.com/dukerupert/catalogops/internal/config"
	"github.com/dukerupert/catalogops/internal/logging"
	"github.com/dukerupert/catalogops/internal/middleware"
	"github.com/dukerupert/catalogops/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, closeLog := logging.Setup(cfg.LogLevel, cfg.LogFile)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.Config.AdminToken == "" {
		logger.Warn("CATALOGD_ADMIN_TOKEN is not set, restore endpoint will reject every request")
	}
	if a.Tokens == nil {
		logger.Warn("CATALOGD_JWT_SECRET is not set, admin endpoints will reject every request")
	}

	srv := server.New(server.Deps{
		Backups:    a.Backups,
		Restorer:   a.Restorer,
		Migrator:   a.Migrator,
		Catalog:    a.Catalog,
		AdminToken: cfg.AdminToken,
		Tokens:     tokenVerifier(a),
	}, logger)

	a.Backups.Start(ctx)
	defer a.Backups.Stop()

	// Rate limiter cleanup
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv.Router(),
		ReadTimeout: 5 * time.Second,
		// Manual backups hold the request open until the export finishes.
		WriteTimeout: cfg.PollTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("catalogd listening", "addr", httpServer.Addr, "backend", cfg.Backend, "bucket", a.Objects.Location().String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// tokenVerifier avoids handing the server a typed nil.
func tokenVerifier(a *app.App) middleware.TokenVerifier {
	if a.Tokens == nil {
		return nil
	}
	return a.Tokens
}
