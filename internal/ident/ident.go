// Package ident derives slug identifiers for migrated records.
package ident

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLen is the maximum length of a slug in bytes.
const MaxSlugLen = 40

// Slugify decomposes s, strips combining marks, lowercases it and collapses
// every run of characters outside [a-z0-9] into a single hyphen. The result
// has no leading or trailing hyphen and is at most MaxSlugLen long; it may be
// empty.
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	hyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if hyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			hyphen = false
			b.WriteRune(r)
			continue
		}
		hyphen = true
	}

	out := b.String()
	if len(out) > MaxSlugLen {
		out = strings.TrimRight(out[:MaxSlugLen], "-")
	}
	return out
}

// Allocator hands out identifiers that are unique within one run. The first
// record to claim a slug keeps it; later collisions get -1, -2, ...
type Allocator struct {
	prefix string
	used   map[string]struct{}
}

func NewAllocator(prefix string) *Allocator {
	return &Allocator{prefix: prefix, used: make(map[string]struct{})}
}

// Allocate slugifies preferred and reserves a unique id for it. When
// preferred slugifies to nothing, "{prefix}-{ordinal+1}" is used instead.
func (a *Allocator) Allocate(preferred string, ordinal int) string {
	base := Slugify(preferred)
	if base == "" {
		base = Slugify(fmt.Sprintf("%s-%d", a.prefix, ordinal+1))
	}

	id := base
	for n := 1; a.taken(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	a.used[id] = struct{}{}
	return id
}

func (a *Allocator) taken(id string) bool {
	_, ok := a.used[id]
	return ok
}

// Len returns the number of ids handed out.
func (a *Allocator) Len() int { return len(a.used) }
