package legacy

import (
	"sort"
	"strconv"
)

// Record is one legacy category or item.
type Record struct {
	Fields map[string]any
	// Key is the map key the record was stored under when the legacy
	// container was a keyed map rather than a list.
	Key string
}

// ToRecords normalizes a legacy container into an ordered slice. Lists keep
// their order. Keyed maps are ordered by key: integer-like keys first in
// numeric order, then the rest lexically. Non-object entries are wrapped as
// {"value": entry}. Anything else yields no records.
func ToRecords(v any) []Record {
	switch t := v.(type) {
	case []any:
		out := make([]Record, 0, len(t))
		for _, entry := range t {
			out = append(out, Record{Fields: asFields(entry)})
		}
		return out
	case []map[string]any:
		out := make([]Record, 0, len(t))
		for _, entry := range t {
			out = append(out, Record{Fields: entry})
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortKeys(keys)
		out := make([]Record, 0, len(keys))
		for _, k := range keys {
			out = append(out, Record{Fields: asFields(t[k]), Key: k})
		}
		return out
	}
	return nil
}

func asFields(entry any) map[string]any {
	switch e := entry.(type) {
	case map[string]any:
		return e
	case nil:
		return map[string]any{}
	default:
		return map[string]any{"value": e}
	}
}

func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		ni, erri := strconv.Atoi(keys[i])
		nj, errj := strconv.Atoi(keys[j])
		switch {
		case erri == nil && errj == nil:
			return ni < nj
		case erri == nil:
			return true
		case errj == nil:
			return false
		}
		return keys[i] < keys[j]
	})
}
