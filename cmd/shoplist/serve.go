package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/server"
)

const rateLimiterTTL = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	backups := e.backupManager()
	if !backups.Enabled() {
		e.logger.Info("backups disabled: S3 bucket or credentials not set")
		backups = nil
	}

	srv := server.New(e.db, server.Options{RateLimit: e.cfg.RateLimit}, backups, e.logger)
	defer srv.Close()

	// No WriteTimeout: websocket sessions are long-lived.
	httpServer := &http.Server{
		Addr:        ":" + e.cfg.Port,
		Handler:     srv.Router(),
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(rateLimiterTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup(rateLimiterTTL)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("shoplist listening", "addr", httpServer.Addr, "db", e.cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()

	srv.Hub().CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("shutdown", "error", err)
		return err
	}
	return nil
}
