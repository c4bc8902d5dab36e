package model

import "time"

// UncategorizedID is assigned to items whose legacy record names no category.
const UncategorizedID = "uncategorized"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Order       int       `json:"order"`
	IsActive    bool      `json:"isActive"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LegacyID    string    `json:"legacyId,omitempty"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
}

func (c Category) Doc() map[string]any {
	doc := map[string]any{
		"id":        c.ID,
		"name":      c.Name,
		"order":     int64(c.Order),
		"isActive":  c.IsActive,
		"updatedAt": c.UpdatedAt,
	}
	if c.LegacyID != "" {
		doc["legacyId"] = c.LegacyID
	}
	if c.Description != "" {
		doc["description"] = c.Description
	}
	if c.Icon != "" {
		doc["icon"] = c.Icon
	}
	if c.Color != "" {
		doc["color"] = c.Color
	}
	return doc
}

type Item struct {
	ID          string         `json:"id"`
	CategoryID  string         `json:"categoryId"`
	Operator    string         `json:"operator"`
	Name        string         `json:"name"`
	Price       float64        `json:"price"`
	Features    map[string]any `json:"features"`
	IsActive    bool           `json:"isActive"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Description string         `json:"description,omitempty"`
	Images      any            `json:"images,omitempty"`
	Tags        any            `json:"tags,omitempty"`
	Metadata    any            `json:"metadata,omitempty"`
}

func (i Item) Doc() map[string]any {
	features := i.Features
	if features == nil {
		features = map[string]any{}
	}
	doc := map[string]any{
		"id":         i.ID,
		"categoryId": i.CategoryID,
		"operator":   i.Operator,
		"name":       i.Name,
		"price":      i.Price,
		"features":   features,
		"isActive":   i.IsActive,
		"updatedAt":  i.UpdatedAt,
	}
	if i.Description != "" {
		doc["description"] = i.Description
	}
	if i.Images != nil {
		doc["images"] = i.Images
	}
	if i.Tags != nil {
		doc["tags"] = i.Tags
	}
	if i.Metadata != nil {
		doc["metadata"] = i.Metadata
	}
	return doc
}

// SchemaVersion is the process-wide migration marker. Schema only ever increases.
type SchemaVersion struct {
	Schema     int       `json:"schema"`
	MigratedAt time.Time `json:"migratedAt"`
}

// MigrationStats reports what a migration run processed and wrote.
type MigrationStats struct {
	ConfigMigrated      bool `json:"configMigrated"`
	CategoriesProcessed int  `json:"categoriesProcessed"`
	CategoriesMigrated  int  `json:"categoriesMigrated"`
	ItemsProcessed      int  `json:"itemsProcessed"`
	ItemsMigrated       int  `json:"itemsMigrated"`
	ItemsFailed         int  `json:"itemsFailed"`
}
