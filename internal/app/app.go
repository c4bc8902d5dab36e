// Package app builds the backup, restore and migration components from
// configuration. Both the daemon and the CLI start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/catalogops/internal/auth"
	"github.com/dukerupert/catalogops/internal/backup"
	"github.com/dukerupert/catalogops/internal/catalog"
	"github.com/dukerupert/catalogops/internal/config"
	"github.com/dukerupert/catalogops/internal/database"
	"github.com/dukerupert/catalogops/internal/localops"
	"github.com/dukerupert/catalogops/internal/migrate"
	"github.com/dukerupert/catalogops/internal/optracker"
	"github.com/dukerupert/catalogops/internal/remote"
	"github.com/dukerupert/catalogops/internal/remote/firestoredb"
	"github.com/dukerupert/catalogops/internal/remote/gcs"
	"github.com/dukerupert/catalogops/internal/remote/s3store"
	"github.com/dukerupert/catalogops/internal/store"
)

type App struct {
	Config    config.Config
	Objects   remote.ObjectStore
	Documents remote.DocumentStore
	Tracker   *optracker.Tracker
	Backups   *backup.Manager
	Restorer  *backup.Restorer
	Migrator  *migrate.Migrator
	Catalog   *catalog.Cache
	// Tokens is nil when no JWT secret is configured.
	Tokens *auth.Tokens

	local   *localops.Runner
	closers []func() error
}

// New validates cfg and connects to the configured backends.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg}

	objects, err := a.openObjects(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(ctx, objects, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openObjects(ctx context.Context) (remote.ObjectStore, error) {
	switch a.Config.ObjectStore {
	case config.ObjectStoreS3:
		s, err := s3store.New(s3store.Config{
			Endpoint:  a.Config.S3Endpoint,
			Region:    a.Config.S3Region,
			Bucket:    a.Config.Bucket,
			AccessKey: a.Config.S3AccessKey,
			SecretKey: a.Config.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 store: %w", err)
		}
		return s, nil
	default:
		s, err := gcs.New(ctx, a.Config.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open gcs store: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
}

// NewWithObjects is New with an already opened backup object store.
func NewWithObjects(ctx context.Context, cfg config.Config, objects remote.ObjectStore, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg}
	if err := a.wire(ctx, objects, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire connects the document database and builds the orchestrators around
// objects.
func (a *App) wire(ctx context.Context, objects remote.ObjectStore, logger *slog.Logger) error {
	cfg := a.Config
	a.Objects = objects

	var ops remote.OperationClient
	switch cfg.Backend {
	case config.BackendLocal:
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		docs := store.NewDocumentStore(db)
		a.local = localops.New(docs, objects, cfg.LocalPassphrase, logger.With("component", "localops"))
		a.Documents, ops = docs, a.local
	default:
		docs, err := firestoredb.NewDocuments(ctx, cfg.ProjectID, cfg.DatabaseID)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, docs.Close)
		admin, err := firestoredb.NewOperations(ctx, cfg.ProjectID, cfg.DatabaseID)
		if err != nil {
			return err
		}
		a.Documents, ops = docs, admin
	}

	a.Tracker = optracker.New(ops, logger.With("component", "optracker"))

	backupLogger := logger.With("component", "backup")
	mgr, err := backup.NewManager(backup.Config{
		Prefix:        cfg.BackupPrefix,
		Schedule:      cfg.BackupSchedule,
		RetentionDays: cfg.RetentionDays,
		PollInterval:  cfg.PollInterval,
		PollTimeout:   cfg.PollTimeout,
	}, a.Tracker, objects, a.Documents, backupLogger, func(s backup.Status) {
		backupLogger.Debug("backup status changed", "state", s.State, "error", s.Error)
	})
	if err != nil {
		return err
	}
	a.Backups = mgr
	a.Restorer = backup.NewRestorer(a.Tracker, objects, mgr.Layout(), logger.With("component", "restore"))

	a.Catalog = catalog.NewCache(a.Documents)
	a.Migrator = migrate.New(a.Documents, migrate.DefaultRetryPolicy(), logger.With("component", "migrate"), func(migrate.Result) {
		a.Catalog.Invalidate()
	})

	if cfg.JWTSecret != "" {
		tokens, err := auth.NewTokens(cfg.JWTSecret)
		if err != nil {
			return err
		}
		a.Tokens = tokens
	}
	return nil
}

// WaitLocal blocks until local-backend operations started by this process
// have finished. It returns immediately for the firestore backend.
func (a *App) WaitLocal() {
	if a.local != nil {
		a.local.Wait()
	}
}

// Close waits for local operations and releases every backend connection.
func (a *App) Close() error {
	a.WaitLocal()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
