// Package catalog serves the migrated configuration and categories through
// an explicit cache. Callers own the cache and invalidate it after writes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/catalogops/internal/legacy"
	"github.com/dukerupert/catalogops/internal/migrate"
	"github.com/dukerupert/catalogops/internal/model"
	"github.com/dukerupert/catalogops/internal/remote"
)

// DefaultSchema is reported when no schema marker exists yet.
const DefaultSchema = 1

type Cache struct {
	docs remote.DocumentStore

	mu         sync.RWMutex
	config     map[string]any
	categories []model.Category
	version    *model.SchemaVersion
}

func NewCache(docs remote.DocumentStore) *Cache {
	return &Cache{docs: docs}
}

// Invalidate drops everything cached so the next read goes to the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.config = nil
	c.categories = nil
	c.version = nil
	c.mu.Unlock()
}

// Config returns the general configuration document. A missing document is
// an empty config.
func (c *Cache) Config(ctx context.Context) (map[string]any, error) {
	c.mu.RLock()
	cfg := c.config
	c.mu.RUnlock()
	if cfg != nil {
		return cfg, nil
	}

	cfg, err := c.docs.Get(ctx, migrate.ConfigPath)
	if errors.Is(err, remote.ErrNotFound) {
		cfg = map[string]any{}
	} else if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
	return cfg, nil
}

// Categories returns all categories sorted by order, then id.
func (c *Cache) Categories(ctx context.Context) ([]model.Category, error) {
	c.mu.RLock()
	cats := c.categories
	c.mu.RUnlock()
	if cats != nil {
		return cats, nil
	}

	docs, err := c.docs.List(ctx, migrate.CategoriesCollection)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	cats = make([]model.Category, 0, len(docs))
	for _, d := range docs {
		cats = append(cats, categoryFromDoc(d))
	}
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Order != cats[j].Order {
			return cats[i].Order < cats[j].Order
		}
		return cats[i].ID < cats[j].ID
	})

	c.mu.Lock()
	c.categories = cats
	c.mu.Unlock()
	return cats, nil
}

// SchemaVersion returns the migration marker, or DefaultSchema when the
// catalog has never been migrated.
func (c *Cache) SchemaVersion(ctx context.Context) (model.SchemaVersion, error) {
	c.mu.RLock()
	v := c.version
	c.mu.RUnlock()
	if v != nil {
		return *v, nil
	}

	sv := model.SchemaVersion{Schema: DefaultSchema}
	doc, err := c.docs.Get(ctx, migrate.VersionPath)
	switch {
	case errors.Is(err, remote.ErrNotFound):
	case err != nil:
		return sv, fmt.Errorf("load schema version: %w", err)
	default:
		sv.Schema = legacy.Int(doc["schema"], DefaultSchema)
		sv.MigratedAt = timeField(doc["migratedAt"])
	}

	c.mu.Lock()
	c.version = &sv
	c.mu.Unlock()
	return sv, nil
}

func categoryFromDoc(d remote.Document) model.Category {
	f := d.Data
	str := func(key string) string {
		s, _ := legacy.String(f[key])
		return s
	}
	c := model.Category{
		ID:          str("id"),
		Name:        str("name"),
		Order:       legacy.Int(f["order"], 0),
		IsActive:    legacy.Bool(f["isActive"], true),
		UpdatedAt:   timeField(f["updatedAt"]),
		LegacyID:    str("legacyId"),
		Description: str("description"),
		Icon:        str("icon"),
		Color:       str("color"),
	}
	if c.ID == "" {
		c.ID = d.Path[len(migrate.CategoriesCollection)+1:]
	}
	return c
}

// timeField accepts stored timestamps either as time values or RFC 3339 text.
func timeField(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	}
	return time.Time{}
}
