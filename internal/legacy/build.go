package legacy

import (
	"fmt"
	"time"

	"github.com/dukerupert/catalogops/internal/ident"
	"github.com/dukerupert/catalogops/internal/model"
)

var (
	idField       = Keys("id", "slug", "key", "uid", "code")
	activeField   = Keys("isActive", "active", "activa", "activo", "enabled", "visible")
	descField     = Keys("description", "descripcion", "details")
	orderField    = Keys("order", "orden", "position", "index")
	catNameField  = Keys("name", "nombre", "title", "label")
	iconField     = Keys("icon", "icono", "image")
	colorField    = Keys("color", "colour")
	itemNameField = Keys("name", "nombre", "title")
	categoryField = Keys("categoryId", "category", "categoriaId", "categoria", "cat").With(categoryRef)
	operatorField = Keys("operator", "operador", "provider", "proveedor")
	priceField    = Keys("price", "precio", "amount", "cost")
	featuresField = Keys("features", "caracteristicas", "attrs", "attributes", "benefits")
	imagesField   = Keys("images", "imagenes", "gallery")
	tagsField     = Keys("tags", "etiquetas")
	metadataField = Keys("metadata", "meta")
)

// preferredID picks the source the allocator slugifies: an explicit id, then
// the record's name, then the legacy map key.
func preferredID(rec Record, name Field) string {
	if id := idField.String(rec.Fields); id != "" {
		return id
	}
	if n := name.String(rec.Fields); n != "" {
		return n
	}
	return rec.Key
}

// BuildCategory converts the ordinal-th legacy category.
func BuildCategory(rec Record, ordinal int, ids *ident.Allocator, now time.Time) model.Category {
	name := catNameField.String(rec.Fields)
	if name == "" {
		name = fmt.Sprintf("Category %d", ordinal+1)
	}

	c := model.Category{
		ID:          ids.Allocate(preferredID(rec, catNameField), ordinal),
		Name:        name,
		Order:       ordinal,
		IsActive:    true,
		UpdatedAt:   now,
		LegacyID:    rec.Key,
		Description: descField.String(rec.Fields),
		Icon:        iconField.String(rec.Fields),
		Color:       colorField.String(rec.Fields),
	}
	if v, ok := orderField.Value(rec.Fields); ok {
		c.Order = Int(v, ordinal)
	}
	if v, ok := activeField.Value(rec.Fields); ok {
		c.IsActive = Bool(v, true)
	}
	return c
}

// BuildItem converts the ordinal-th legacy item. Ordinals run across batches.
func BuildItem(rec Record, ordinal int, ids *ident.Allocator, now time.Time) model.Item {
	name := itemNameField.String(rec.Fields)
	if name == "" {
		name = fmt.Sprintf("Item %d", ordinal+1)
	}

	it := model.Item{
		ID:          ids.Allocate(preferredID(rec, itemNameField), ordinal),
		CategoryID:  model.UncategorizedID,
		Operator:    "unknown",
		Name:        name,
		Features:    map[string]any{},
		IsActive:    true,
		UpdatedAt:   now,
		Description: descField.String(rec.Fields),
	}
	if v, ok := categoryField.Value(rec.Fields); ok {
		it.CategoryID = v.(string)
	}
	if op := operatorField.String(rec.Fields); op != "" {
		it.Operator = op
	}
	if v, ok := priceField.Value(rec.Fields); ok {
		if p := Number(v, 0); p > 0 {
			it.Price = p
		}
	}
	if v, ok := activeField.Value(rec.Fields); ok {
		it.IsActive = Bool(v, true)
	}
	if v, ok := featuresField.Value(rec.Fields); ok {
		it.Features = features(v)
	}
	if v, ok := imagesField.Value(rec.Fields); ok {
		it.Images = v
	}
	if v, ok := tagsField.Value(rec.Fields); ok {
		it.Tags = v
	}
	if v, ok := metadataField.Value(rec.Fields); ok {
		it.Metadata = v
	}
	return it
}

// categoryRef accepts a category id given directly or as an embedded
// object carrying one of its id keys.
func categoryRef(v any) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		id := idField[:4].String(m)
		return id, id != ""
	}
	return nonEmptyString(v)
}

func features(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		return map[string]any{"list": t}
	}
	return map[string]any{"value": v}
}
