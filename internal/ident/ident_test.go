package ident

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fibra 600", "fibra-600"},
		{"Fibra", "fibra"},
		{"  Móvil + Fibra  ", "movil-fibra"},
		{"Ñandú", "nandu"},
		{"ÅNGSTRÖM--Plan", "angstrom-plan"},
		{"---", ""},
		{"", ""},
		{"C1", "c1"},
		{"日本", ""},
		{"ﬁbra", "fibra"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugifyTruncates(t *testing.T) {
	long := strings.Repeat("abcde ", 20)
	got := Slugify(long)
	if len(got) > MaxSlugLen {
		t.Errorf("len = %d, want <= %d", len(got), MaxSlugLen)
	}
	if strings.HasSuffix(got, "-") || strings.HasPrefix(got, "-") {
		t.Errorf("slug %q has a dangling hyphen", got)
	}
}

func TestAllocateCollisions(t *testing.T) {
	a := NewAllocator("item")
	var got []string
	for i, src := range []string{"a", "a", "b"} {
		got = append(got, a.Allocate(src, i))
	}
	want := []string{"a", "a-1", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("id[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAllocateFallback(t *testing.T) {
	a := NewAllocator("category")
	if got := a.Allocate("", 0); got != "category-1" {
		t.Errorf("Allocate(\"\", 0) = %q, want %q", got, "category-1")
	}
	if got := a.Allocate("!!!", 4); got != "category-5" {
		t.Errorf("Allocate(\"!!!\", 4) = %q, want %q", got, "category-5")
	}
	// A real slug that happens to equal a fallback still gets suffixed.
	if got := a.Allocate("Category 1", 7); got != "category-1-1" {
		t.Errorf("Allocate(\"Category 1\", 7) = %q, want %q", got, "category-1-1")
	}
	if a.Len() != 3 {
		t.Errorf("Len = %d, want 3", a.Len())
	}
}

func TestAllocateDistinct(t *testing.T) {
	a := NewAllocator("item")
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := a.Allocate("Same Name", i)
		if seen[id] {
			t.Fatalf("duplicate id %q at %d", id, i)
		}
		seen[id] = true
	}
}
