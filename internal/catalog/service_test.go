package catalog

import (
	"errors"
	"fmt"
	"testing"

	"vendazap/internal/fuzzy"
	"vendazap/pkg/models"
)

func sampleProducts() []models.Product {
	return []models.Product{
		{Code: 1, Name: "Coca Cola 2L", SalesCount: 90},
		{Code: 2, Name: "Coca Cola Lata 350ml", SalesCount: 80},
		{Code: 3, Name: "Detergente Ypê 500ml", SalesCount: 70},
		{Code: 4, Name: "Guaraná Antarctica 2L", SalesCount: 60},
		{Code: 5, Name: "Parafuso Sextavado 10mm", SalesCount: 5},
	}
}

func TestRankProductsByNameOrdersByScore(t *testing.T) {
	engine := fuzzy.NewEngine()

	ranked := rankProductsByName(engine, "coca cola", sampleProducts(), 10)
	if len(ranked) < 2 {
		t.Fatalf("rankProductsByName() = %v, want at least the two colas", ranked)
	}
	for _, p := range ranked {
		if p.Code == 5 {
			t.Fatalf("unrelated product leaked into fuzzy ranking: %+v", p)
		}
	}
	if ranked[0].Code != 1 && ranked[0].Code != 2 {
		t.Fatalf("ranked[0] = %+v, want a cola first", ranked[0])
	}
}

func TestRankProductsByNameHandlesTypo(t *testing.T) {
	engine := fuzzy.NewEngine()

	ranked := rankProductsByName(engine, "detergnte", sampleProducts(), 10)
	if len(ranked) == 0 || ranked[0].Code != 3 {
		t.Fatalf("rankProductsByName(typo) = %v, want detergente first", ranked)
	}
}

func TestRankProductsByNameRespectsMax(t *testing.T) {
	engine := fuzzy.NewEngine()

	ranked := rankProductsByName(engine, "cola", sampleProducts(), 1)
	if len(ranked) != 1 {
		t.Fatalf("len(ranked) = %d, want 1", len(ranked))
	}
}

func TestRankProductsByNameEmptyOnNonsense(t *testing.T) {
	engine := fuzzy.NewEngine()

	ranked := rankProductsByName(engine, "zzz qqq www", sampleProducts(), 10)
	if len(ranked) != 0 {
		t.Fatalf("rankProductsByName(nonsense) = %v, want empty", ranked)
	}
}

func TestAppendUnique(t *testing.T) {
	list := appendUnique(nil, "sabao")
	list = appendUnique(list, "limpeza")
	list = appendUnique(list, "sabao")
	if len(list) != 2 {
		t.Fatalf("appendUnique dedup failed: %v", list)
	}
}

func TestConnectionUnavailableIsSentinel(t *testing.T) {
	wrapped := fmt.Errorf("%w: %v", ErrConnectionUnavailable, errors.New("dial tcp: refused"))
	if !errors.Is(wrapped, ErrConnectionUnavailable) {
		t.Fatal("wrapped error should match ErrConnectionUnavailable")
	}
}
