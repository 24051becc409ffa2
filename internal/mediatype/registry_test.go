package mediatype

import (
	"errors"
	"testing"

	"tierboard/searchservice/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := BuildDefaultRegistry()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return registry
}

// ---------------------------------------------------------------------------
// Register / Get
// ---------------------------------------------------------------------------

func TestGetUnknownTypeFailsLoudly(t *testing.T) {
	registry := newTestRegistry(t)
	_, err := registry.Get("unregistered-type")
	if err == nil {
		t.Fatal("expected error for unknown media type")
	}
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	registry := NewRegistry()
	def := Definition{ID: domain.MediaTypeAlbum, Category: domain.CategoryMusic}
	if err := registry.Register(def); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := registry.Register(def); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestByCategoryPreservesOrder(t *testing.T) {
	registry := newTestRegistry(t)
	defs, err := registry.ByCategory(domain.CategoryMusic)
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	want := []domain.MediaType{domain.MediaTypeAlbum, domain.MediaTypeArtist, domain.MediaTypeSong}
	if len(defs) != len(want) {
		t.Fatalf("expected %d definitions, got %d", len(want), len(defs))
	}
	for i, def := range defs {
		if def.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, def.ID, want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// DefaultFilters
// ---------------------------------------------------------------------------

func TestDefaultFiltersReturnsFreshCopy(t *testing.T) {
	registry := newTestRegistry(t)

	first, err := registry.DefaultFilters(domain.MediaTypeAlbum)
	if err != nil {
		t.Fatalf("DefaultFilters: %v", err)
	}
	first["albumSecondaryTypes"] = []string{"Live", "Demo"}
	first["q"] = "mutated"

	second, err := registry.DefaultFilters(domain.MediaTypeAlbum)
	if err != nil {
		t.Fatalf("DefaultFilters: %v", err)
	}
	if _, ok := second["q"]; ok {
		t.Fatal("mutation of returned defaults leaked into registry")
	}
	if toggles, ok := second["albumSecondaryTypes"].([]string); !ok || len(toggles) != 0 {
		t.Fatalf("expected pristine empty toggle set, got %v", second["albumSecondaryTypes"])
	}
}

// ---------------------------------------------------------------------------
// SerializeFilters
// ---------------------------------------------------------------------------

func TestSerializeFiltersSkipsEmptyValues(t *testing.T) {
	registry := newTestRegistry(t)
	params, err := registry.SerializeFilters(domain.MediaTypeAlbum, map[string]any{
		"q":                   "   ",
		"year":                Range{},
		"albumSecondaryTypes": []string{},
	})
	if err != nil {
		t.Fatalf("SerializeFilters: %v", err)
	}
	if len(params) != 0 {
		t.Fatalf("expected no emitted params, got %v", params)
	}
}

func TestSerializeFiltersRangeSplitsMinMax(t *testing.T) {
	registry := newTestRegistry(t)
	params, err := registry.SerializeFilters(domain.MediaTypeAlbum, map[string]any{
		"year": Range{Min: 1990, Max: 1999},
	})
	if err != nil {
		t.Fatalf("SerializeFilters: %v", err)
	}
	if got := params["yearMin"]; len(got) != 1 || got[0] != "1990" {
		t.Fatalf("yearMin = %v", got)
	}
	if got := params["yearMax"]; len(got) != 1 || got[0] != "1999" {
		t.Fatalf("yearMax = %v", got)
	}
}

func TestSerializeFiltersPickerExtractsID(t *testing.T) {
	registry := newTestRegistry(t)
	params, err := registry.SerializeFilters(domain.MediaTypeAlbum, map[string]any{
		"artist": domain.MediaItem{ID: "mbid-123", Type: domain.MediaTypeArtist, Title: "Adele"},
	})
	if err != nil {
		t.Fatalf("SerializeFilters: %v", err)
	}
	if got := params["arid"]; len(got) != 1 || got[0] != "mbid-123" {
		t.Fatalf("arid = %v", got)
	}
}

func TestSerializeFiltersToggleGroupEmitsNonEmpty(t *testing.T) {
	registry := newTestRegistry(t)
	params, err := registry.SerializeFilters(domain.MediaTypeAlbum, map[string]any{
		"albumSecondaryTypes": []string{"Live", "Demo"},
	})
	if err != nil {
		t.Fatalf("SerializeFilters: %v", err)
	}
	got := params["secondaryTypes"]
	if len(got) != 2 || got[0] != "Live" || got[1] != "Demo" {
		t.Fatalf("secondaryTypes = %v", got)
	}
}

func TestSerializeFiltersTextUsesParamName(t *testing.T) {
	registry := newTestRegistry(t)
	params, err := registry.SerializeFilters(domain.MediaTypeBook, map[string]any{
		"q":      "Dune",
		"author": "Herbert",
	})
	if err != nil {
		t.Fatalf("SerializeFilters: %v", err)
	}
	if got := params["q"]; len(got) != 1 || got[0] != "Dune" {
		t.Fatalf("q = %v", got)
	}
	if got := params["author"]; len(got) != 1 || got[0] != "Herbert" {
		t.Fatalf("author = %v", got)
	}
}

func TestSerializeFiltersUnknownTypeFails(t *testing.T) {
	registry := newTestRegistry(t)
	if _, err := registry.SerializeFilters("mixtape", nil); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}
