package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/backup"
	"github.com/dukerupert/shoplist/internal/config"
	"github.com/dukerupert/shoplist/internal/database"
	"github.com/dukerupert/shoplist/internal/logging"
	"github.com/dukerupert/shoplist/internal/store"
)

const lockTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:          "shoplist",
	Short:        "Shared shopping list server",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, backupCmd, restoreCmd)
}

// env is what every subcommand starts from.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	lock   *database.Lock
}

// setup loads config, configures logging, takes the database lock and
// opens (and migrates) the database.
func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, nil)

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	lock, err := database.AcquireLock(lockCtx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		lock.Release()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, db: db, lock: lock}, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.logger.Warn("close database", "error", err)
	}
	if err := e.lock.Release(); err != nil {
		e.logger.Warn("release lock", "error", err)
	}
}

func (e *env) backupManager() *backup.Manager {
	s3 := e.cfg.S3
	return backup.NewManager(backup.S3Config{
		Endpoint:  s3.Endpoint,
		Bucket:    s3.Bucket,
		Region:    s3.Region,
		AccessKey: s3.AccessKey,
		SecretKey: s3.SecretKey,
		Prefix:    s3.Prefix,
	}, e.db, store.NewBackupStore(e.db), e.logger)
}
