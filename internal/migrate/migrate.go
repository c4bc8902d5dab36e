// Package migrate moves the legacy single-document catalog into the
// categories/items collections. A schema marker makes the migration a
// one-shot operation: once it has completed, later runs do nothing.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/catalogops/internal/ident"
	"github.com/dukerupert/catalogops/internal/legacy"
	"github.com/dukerupert/catalogops/internal/model"
	"github.com/dukerupert/catalogops/internal/remote"
)

const (
	TargetSchema = 2
	BatchSize    = 300

	VersionPath          = "meta/version"
	LegacyPath           = "app/state"
	ConfigPath           = "config/general"
	CategoriesCollection = "categories"
	ItemsCollection      = "items"
)

var ErrLegacyNotFound = errors.New("legacy document not found")

// Result is what a migration run reports back.
type Result struct {
	model.MigrationStats
	DryRun          bool `json:"dryRun"`
	AlreadyMigrated bool `json:"alreadyMigrated,omitempty"`
	Schema          int  `json:"schema,omitempty"`
}

type Migrator struct {
	docs       remote.DocumentStore
	policy     RetryPolicy
	batchSize  int
	logger     *slog.Logger
	onComplete func(Result)
	now        func() time.Time
}

// New creates a Migrator. onComplete, if set, is called after every
// successful non-dry run.
func New(docs remote.DocumentStore, policy RetryPolicy, logger *slog.Logger, onComplete func(Result)) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		docs:       docs,
		policy:     policy,
		batchSize:  BatchSize,
		logger:     logger,
		onComplete: onComplete,
		now:        time.Now,
	}
}

// CurrentSchema reads the schema marker. A missing marker is schema 0.
func (m *Migrator) CurrentSchema(ctx context.Context) (int, error) {
	doc, err := m.docs.Get(ctx, VersionPath)
	if errors.Is(err, remote.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", VersionPath, err)
	}
	return legacy.Int(doc["schema"], 0), nil
}

// Run migrates the legacy document. With dryRun set every record is
// normalized and counted but nothing is written.
func (m *Migrator) Run(ctx context.Context, dryRun bool) (Result, error) {
	schema, err := m.CurrentSchema(ctx)
	if err != nil {
		return Result{}, err
	}
	if schema >= TargetSchema {
		m.logger.Info("migration skipped: schema already up to date", "schema", schema)
		return Result{DryRun: dryRun, AlreadyMigrated: true, Schema: schema}, nil
	}

	doc, err := m.docs.Get(ctx, LegacyPath)
	if errors.Is(err, remote.ErrNotFound) {
		return Result{}, fmt.Errorf("%s: %w", LegacyPath, ErrLegacyNotFound)
	}
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", LegacyPath, err)
	}

	src := legacy.Extract(doc)
	now := m.now().UTC()
	res := Result{DryRun: dryRun}
	res.CategoriesProcessed = len(src.Categories)
	res.ItemsProcessed = len(src.Items)

	m.logger.Info("starting migration",
		"dry_run", dryRun,
		"has_config", len(src.Config) > 0,
		"categories", res.CategoriesProcessed,
		"items", res.ItemsProcessed,
	)

	if len(src.Config) > 0 {
		if !dryRun {
			data := remote.MergeFields(nil, src.Config)
			data["updatedAt"] = now
			if err := m.write(ctx, ConfigPath, data); err != nil {
				return res, fmt.Errorf("migrate config: %w", err)
			}
		}
		res.ConfigMigrated = true
	}

	if err := m.migrateCategories(ctx, src.Categories, now, dryRun, &res); err != nil {
		return res, err
	}
	m.migrateItems(ctx, src.Items, now, dryRun, &res)

	if !dryRun {
		if err := m.write(ctx, VersionPath, map[string]any{"schema": TargetSchema, "migratedAt": now}); err != nil {
			return res, fmt.Errorf("write schema marker: %w", err)
		}
		if err := m.write(ctx, LegacyPath, map[string]any{"migrated": true, "lastMigratedAt": now}); err != nil {
			return res, fmt.Errorf("flag legacy document: %w", err)
		}
	}

	m.logger.Info("migration completed",
		"dry_run", dryRun,
		"categories_migrated", res.CategoriesMigrated,
		"items_migrated", res.ItemsMigrated,
		"items_failed", res.ItemsFailed,
	)
	if !dryRun && m.onComplete != nil {
		m.onComplete(res)
	}
	return res, nil
}

// migrateCategories writes categories one at a time in legacy order.
func (m *Migrator) migrateCategories(ctx context.Context, records []legacy.Record, now time.Time, dryRun bool, res *Result) error {
	ids := ident.NewAllocator("category")
	for i, rec := range records {
		c := legacy.BuildCategory(rec, i, ids, now)
		m.logger.Debug("processing category", "id", c.ID, "dry_run", dryRun)
		if !dryRun {
			if err := m.write(ctx, CategoriesCollection+"/"+c.ID, c.Doc()); err != nil {
				return fmt.Errorf("migrate category %s: %w", c.ID, err)
			}
		}
		res.CategoriesMigrated++
	}
	return nil
}

// migrateItems commits items in fixed-size bulk writes. A record whose write
// fails is retried on its own; once its attempts are spent it is logged,
// counted as failed and skipped.
func (m *Migrator) migrateItems(ctx context.Context, records []legacy.Record, now time.Time, dryRun bool, res *Result) {
	if len(records) == 0 {
		return
	}
	ids := ident.NewAllocator("item")
	batches := (len(records) + m.batchSize - 1) / m.batchSize
	m.logger.Info("migrating items in batches", "batches", batches, "batch_size", m.batchSize)

	for b := 0; b < batches; b++ {
		start := b * m.batchSize
		end := min(start+m.batchSize, len(records))

		writes := make([]remote.Write, 0, end-start)
		for i := start; i < end; i++ {
			it := legacy.BuildItem(records[i], i, ids, now)
			m.logger.Debug("prepared item", "id", it.ID, "category_id", it.CategoryID, "dry_run", dryRun)
			// Items are written whole so every field of the item shape is present.
			writes = append(writes, remote.Write{Path: ItemsCollection + "/" + it.ID, Data: it.Doc()})
		}
		m.logger.Info("processing item batch", "batch", b+1, "size", len(writes))

		if dryRun {
			res.ItemsMigrated += len(writes)
			continue
		}

		errs := m.docs.BulkWrite(ctx, writes)
		for i, w := range writes {
			var err error
			if i < len(errs) {
				err = errs[i]
			}
			if err != nil {
				err = m.retryWrite(ctx, w, err)
			}
			if err != nil {
				res.ItemsFailed++
				m.logger.Error("item write failed", "document", w.Path, "attempts", m.policy.MaxAttempts, "error", err)
				continue
			}
			res.ItemsMigrated++
		}
	}
}

// retryWrite repeats a write that already failed once inside a bulk write.
func (m *Migrator) retryWrite(ctx context.Context, w remote.Write, first error) error {
	remaining := m.policy.MaxAttempts - 1
	if remaining < 1 || !m.policy.retryable(first) {
		return first
	}
	m.logger.Warn("retrying item write", "document", w.Path, "error", first)
	return m.policy.do(ctx, remaining, func(ctx context.Context) error {
		return m.docs.Set(ctx, w.Path, w.Data, w.Merge)
	})
}

func (m *Migrator) write(ctx context.Context, path string, data map[string]any) error {
	return m.policy.do(ctx, m.policy.MaxAttempts, func(ctx context.Context) error {
		return m.docs.Set(ctx, path, data, true)
	})
}
