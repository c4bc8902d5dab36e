package legacy

// Historical locations of the top-level sections of the legacy document.
var (
	ConfigField     = Keys("config", "general", "settings", "appConfig", "configuration")
	CategoriesField = Keys("categories", "categorias", "catalog.categories", "catalog.categorias", "catalog.categoryList")
	ItemsField      = Keys("items", "catalog.items", "tarifas", "plans", "catalog.tarifas", "catalog.plans")
)

// Source is the legacy document split into its sections.
type Source struct {
	Config     map[string]any
	Categories []Record
	Items      []Record
}

// Extract splits doc into config, categories and items. Sections that are
// missing or have an unexpected shape come back empty; Extract never fails.
func Extract(doc map[string]any) Source {
	var src Source

	if v, ok := ConfigField.Value(doc); ok {
		if m, ok := v.(map[string]any); ok {
			src.Config = m
		}
	}
	if src.Config == nil {
		src.Config = map[string]any{}
	}

	if v, ok := CategoriesField.Value(doc); ok {
		src.Categories = ToRecords(v)
	}
	if v, ok := ItemsField.Value(doc); ok {
		src.Items = ToRecords(v)
	}
	return src
}
