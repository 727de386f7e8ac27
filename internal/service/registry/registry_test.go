package registry

import (
	"errors"
	"reflect"
	"testing"

	"drreport/internal/domain/models"
)

func fixtureRegistry() *Registry {
	return NewStatic(
		[]models.Ticker{
			{CanonicalID: "DBS19", DisplayName: "DBS Group", Active: true},
			{CanonicalID: "OCBC39", DisplayName: "OCBC Bank", Active: true},
			{CanonicalID: "XYZ1", DisplayName: "No Provider Alias", Active: true},
			{CanonicalID: "OLD1", DisplayName: "Delisted", Active: false},
		},
		[]models.SymbolAlias{
			{CanonicalID: "DBS19", SymbolValue: "D05.SI", SymbolType: models.SymbolProvider},
			{CanonicalID: "DBS19", SymbolValue: "DBS", SymbolType: models.SymbolDisplay},
			{CanonicalID: "OCBC39", SymbolValue: "O39.SI", SymbolType: models.SymbolProvider},
			{CanonicalID: "XYZ1", SymbolValue: "XYZ", SymbolType: models.SymbolDisplay},
		},
	)
}

func TestResolve(t *testing.T) {
	r := fixtureRegistry()

	got, err := r.Resolve("DBS19", models.SymbolProvider)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "D05.SI" {
		t.Fatalf("expected D05.SI, got %s", got)
	}
}

func TestResolveNoFallback(t *testing.T) {
	r := fixtureRegistry()

	// A ticker without a provider alias must fail, never echo the canonical ID.
	got, err := r.Resolve("XYZ1", models.SymbolProvider)
	if !errors.Is(err, models.ErrUnresolvedSymbol) {
		t.Fatalf("expected ErrUnresolvedSymbol, got %v", err)
	}
	if got != "" {
		t.Fatalf("failed resolve must return empty value, got %q", got)
	}

	// Same for a wholly unknown ticker.
	if _, err := r.Resolve("NOPE", models.SymbolProvider); !errors.Is(err, models.ErrUnresolvedSymbol) {
		t.Fatalf("expected ErrUnresolvedSymbol for unknown ticker, got %v", err)
	}
}

func TestReverseResolve(t *testing.T) {
	r := fixtureRegistry()

	id, err := r.ReverseResolve("O39.SI", models.SymbolProvider)
	if err != nil {
		t.Fatalf("reverse resolve: %v", err)
	}
	if id != "OCBC39" {
		t.Fatalf("expected OCBC39, got %s", id)
	}

	// Value exists but under a different namespace.
	if _, err := r.ReverseResolve("O39.SI", models.SymbolDisplay); !errors.Is(err, models.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
}

func TestListActiveStableOrder(t *testing.T) {
	r := fixtureRegistry()

	want := []string{"DBS19", "OCBC39", "XYZ1"}
	first := r.ListActive()
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("expected %v, got %v", want, first)
	}

	// Re-callable with the same result, and mutating the copy has no effect.
	first[0] = "mutated"
	second := r.ListActive()
	if !reflect.DeepEqual(second, want) {
		t.Fatalf("second call diverged: %v", second)
	}
}

func TestAliasForUnknownTickerIgnored(t *testing.T) {
	r := NewStatic(
		[]models.Ticker{{CanonicalID: "DBS19", Active: true}},
		[]models.SymbolAlias{
			{CanonicalID: "GHOST", SymbolValue: "G05.SI", SymbolType: models.SymbolProvider},
		},
	)

	if _, err := r.ReverseResolve("G05.SI", models.SymbolProvider); !errors.Is(err, models.ErrUnknownSymbol) {
		t.Fatalf("orphan alias must not be indexed, got %v", err)
	}
}
