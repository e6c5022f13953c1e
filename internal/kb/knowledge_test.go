package kb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vendazap/internal/fuzzy"
	"vendazap/pkg/models"
)

type fakeFetcher struct {
	products map[int]models.Product
}

func (f *fakeFetcher) ProductByCode(_ context.Context, code int) (*models.Product, error) {
	if p, ok := f.products[code]; ok {
		return &p, nil
	}
	return nil, errors.New("produto não encontrado")
}

func newTestKB(t *testing.T) (*KnowledgeBase, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.json")
	kb, err := Load(path, fuzzy.NewEngine(), nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return kb, path
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	kb, _ := newTestKB(t)
	if kb.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", kb.Size())
	}
	if stubs, quality := kb.Lookup("detergente"); len(stubs) != 0 || quality != QualityNone {
		t.Fatalf("Lookup() = (%v, %q), want empty/none", stubs, quality)
	}
}

func TestLearnAndExactLookup(t *testing.T) {
	kb, _ := newTestKB(t)
	product := models.Product{Code: 101, Name: "Detergente Ypê 500ml"}

	if err := kb.Learn("detergente ype", product); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}

	stubs, quality := kb.Lookup("detergente ype")
	if quality != QualityExcellent {
		t.Fatalf("Lookup quality = %q, want %q", quality, QualityExcellent)
	}
	if len(stubs) != 1 || stubs[0].Code != 101 {
		t.Fatalf("Lookup stubs = %v, want single stub code 101", stubs)
	}

	// canonical name is indexed too, accents folded
	stubs, quality = kb.Lookup("Detergente Ypê 500ml")
	if quality != QualityExcellent || len(stubs) != 1 {
		t.Fatalf("canonical lookup = (%v, %q)", stubs, quality)
	}
}

func TestLearnIsIdempotent(t *testing.T) {
	kb, path := newTestKB(t)
	product := models.Product{Code: 7, Name: "Coca Cola 2L"}

	for i := 0; i < 3; i++ {
		if err := kb.Learn("refri de cola", product); err != nil {
			t.Fatalf("Learn() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	rec, ok := records["Coca Cola 2L"]
	if !ok {
		t.Fatalf("record keyed by canonical name missing: %v", records)
	}
	if len(rec.RelatedWords) != 1 {
		t.Fatalf("RelatedWords = %v, want exactly one entry", rec.RelatedWords)
	}
}

func TestLearnSecondTermSameProduct(t *testing.T) {
	kb, _ := newTestKB(t)
	product := models.Product{Code: 7, Name: "Coca Cola 2L"}

	if err := kb.Learn("refri", product); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}
	if err := kb.Learn("cocacola grande", product); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}

	if kb.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 canonical record", kb.Size())
	}
	stubs, _ := kb.Lookup("cocacola grande")
	if len(stubs) != 1 || stubs[0].Code != 7 {
		t.Fatalf("second term lookup = %v", stubs)
	}
}

func TestLearnWithoutCodeIsNoOp(t *testing.T) {
	kb, path := newTestKB(t)

	if err := kb.Learn("misterio", models.Product{Name: "Produto Sem Código"}); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}
	if kb.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", kb.Size())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file should not be written for no-op learn, stat err = %v", err)
	}
}

func TestLookupFuzzyTier(t *testing.T) {
	kb, _ := newTestKB(t)
	if err := kb.Learn("detergente", models.Product{Code: 101, Name: "Detergente Ypê 500ml"}); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}

	// typo resolved by the correction layer lands on the exact term
	stubs, quality := kb.Lookup("detergnte")
	if quality != QualityExcellent || len(stubs) != 1 {
		t.Fatalf("corrected lookup = (%v, %q)", stubs, quality)
	}

	// containment scores 0.8 → top fuzzy tier
	stubs, quality = kb.Lookup("detergente ype")
	if quality != QualityExcellent || len(stubs) != 1 || stubs[0].Code != 101 {
		t.Fatalf("fuzzy lookup = (%v, %q)", stubs, quality)
	}
}

func TestLookupWeakTier(t *testing.T) {
	kb, _ := newTestKB(t)
	if err := kb.Learn("agua mineral", models.Product{Code: 55, Name: "Água Mineral Crystal 500ml"}); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}

	// shares one token and the prefix but little else: lands on the 0.4 tier
	stubs, quality := kb.Lookup("agua gelada")
	if quality != QualityFair {
		t.Fatalf("quality = %q, want %q", quality, QualityFair)
	}
	if len(stubs) != 1 || stubs[0].Code != 55 {
		t.Fatalf("stubs = %v", stubs)
	}
}

func TestPersistenceRoundtrip(t *testing.T) {
	kb, path := newTestKB(t)
	if err := kb.Learn("sabao liquido", models.Product{Code: 33, Name: "Sabão Líquido Omo 1L"}); err != nil {
		t.Fatalf("Learn() error = %v", err)
	}

	reloaded, err := Load(path, fuzzy.NewEngine(), nil)
	if err != nil {
		t.Fatalf("Load() reload error = %v", err)
	}
	stubs, quality := reloaded.Lookup("sabao liquido")
	if quality != QualityExcellent || len(stubs) != 1 || stubs[0].Code != 33 {
		t.Fatalf("reloaded lookup = (%v, %q)", stubs, quality)
	}
}

func TestEnrichRefetchesFromCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	fetcher := &fakeFetcher{products: map[int]models.Product{
		7: {Code: 7, Name: "Coca Cola 2L", UnitPrice: 9.5, WholesalePrice: 8.0, WholesaleMinQty: 6},
	}}
	kb, err := Load(path, fuzzy.NewEngine(), fetcher)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	product := kb.Enrich(context.Background(), Stub{Code: 7, Name: "nome velho"})
	if product.UnitPrice != 9.5 || product.Name != "Coca Cola 2L" {
		t.Fatalf("Enrich() = %+v, want catalog data", product)
	}
}

func TestEnrichDegradedWhenCatalogMisses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowledge.json")
	kb, err := Load(path, fuzzy.NewEngine(), &fakeFetcher{products: map[int]models.Product{}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	product := kb.Enrich(context.Background(), Stub{Code: 404, Name: "Produto Fantasma"})
	if product.Code != 404 || product.Name != "Produto Fantasma" {
		t.Fatalf("Enrich() degraded = %+v, want stub passthrough", product)
	}
	if product.UnitPrice != 0 {
		t.Fatalf("degraded product should carry no price, got %v", product.UnitPrice)
	}
}
