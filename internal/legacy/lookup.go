// Package legacy turns the single free-form legacy state document into
// canonical catalog records. Every field is resolved through an ordered list
// of the key names it has historically been stored under.
package legacy

import "strings"

// Lookup resolves a key or dotted path against src. A nil value counts as
// absent.
func Lookup(src map[string]any, path string) (any, bool) {
	if src == nil {
		return nil, false
	}
	if !strings.Contains(path, ".") {
		v, ok := src[path]
		return v, ok && v != nil
	}

	var cur any = src
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// Coercer converts a raw legacy value. ok=false makes the accessor behave as
// if the key were absent.
type Coercer func(v any) (out any, ok bool)

// Accessor is one historical location of a field.
type Accessor struct {
	Path   string
	Coerce Coercer
}

// Field is an ordered list of accessors. The first accessor that yields a
// value wins.
type Field []Accessor

// Keys builds a Field of plain accessors.
func Keys(paths ...string) Field {
	f := make(Field, len(paths))
	for i, p := range paths {
		f[i] = Accessor{Path: p}
	}
	return f
}

// With returns a copy of f with c applied by every accessor.
func (f Field) With(c Coercer) Field {
	out := make(Field, len(f))
	for i, a := range f {
		out[i] = Accessor{Path: a.Path, Coerce: c}
	}
	return out
}

// Value returns the first present value of the field in src.
func (f Field) Value(src map[string]any) (any, bool) {
	for _, a := range f {
		v, ok := Lookup(src, a.Path)
		if !ok {
			continue
		}
		if a.Coerce != nil {
			if v, ok = a.Coerce(v); !ok {
				continue
			}
		}
		return v, true
	}
	return nil, false
}

// String returns the field as a non-empty string, or "".
func (f Field) String(src map[string]any) string {
	v, ok := f.With(nonEmptyString).Value(src)
	if !ok {
		return ""
	}
	return v.(string)
}

func nonEmptyString(v any) (any, bool) {
	s, ok := String(v)
	if !ok || s == "" {
		return nil, false
	}
	return s, true
}
