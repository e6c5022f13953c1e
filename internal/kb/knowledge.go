// Package kb implements the learned term→product knowledge base. The
// persisted file maps canonical product names to {code, canonical_name,
// related_words}; lookups go through a derived term index rebuilt from it.
package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"vendazap/internal/fuzzy"
	"vendazap/internal/nlp"
	"vendazap/pkg/models"

	"github.com/rs/zerolog/log"
)

// Record is one canonical entry of the persisted store.
type Record struct {
	Code          int      `json:"code"`
	CanonicalName string   `json:"canonical_name"`
	RelatedWords  []string `json:"related_words"`
}

// Stub is a lightweight product reference resolved from the term index.
// It must be enriched against the catalog before it can enter the cart.
type Stub struct {
	Code   int    `json:"code"`
	Name   string `json:"canonical_name"`
	Source string `json:"source"`
}

// Quality tiers of a lookup result.
type Quality string

const (
	QualityExcellent Quality = "excellent" // exact term hit or 0.8 fuzzy tier
	QualityGood      Quality = "good"      // 0.6 fuzzy tier
	QualityFair      Quality = "fair"      // 0.4 tier or substring scan
	QualityNone      Quality = "none"
)

// ProductFetcher is the slice of the catalog the knowledge base needs to
// enrich stubs with authoritative price data.
type ProductFetcher interface {
	ProductByCode(ctx context.Context, code int) (*models.Product, error)
}

// KnowledgeBase indexes learned search terms. The in-memory term index is
// lazily built on first read and rebuilt wholesale after every learn; learns
// are serialized by the mutex so concurrent webhooks can't lose updates.
type KnowledgeBase struct {
	path    string
	engine  *fuzzy.Engine
	catalog ProductFetcher

	mu      sync.RWMutex
	records map[string]Record // canonical name → record (file layout)
	index   map[string][]Stub // normalized term → stubs
}

// Load reads the knowledge-base file; a missing file yields an empty store.
func Load(path string, engine *fuzzy.Engine, catalog ProductFetcher) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		path:    path,
		engine:  engine,
		catalog: catalog,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("📚 Knowledge base file not found, starting empty")
		return kb, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	if err := json.Unmarshal(data, &kb.records); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}

	log.Info().Int("entries", len(kb.records)).Str("path", path).Msg("📚 Knowledge base loaded")
	return kb, nil
}

// rebuildIndex derives the term index from the canonical records.
// O(total synonyms); fine at catalog scale. Caller must hold mu.
func (kb *KnowledgeBase) rebuildIndex() {
	kb.index = make(map[string][]Stub)
	add := func(term string, rec Record) {
		norm := nlp.Normalize(term)
		if norm == "" {
			return
		}
		stub := Stub{Code: rec.Code, Name: rec.CanonicalName, Source: "kb"}
		for _, existing := range kb.index[norm] {
			if existing.Code == stub.Code {
				return
			}
		}
		kb.index[norm] = append(kb.index[norm], stub)
	}

	for _, rec := range kb.records {
		add(rec.CanonicalName, rec)
		for _, word := range rec.RelatedWords {
			add(word, rec)
		}
	}
}

func (kb *KnowledgeBase) ensureIndex() {
	kb.mu.RLock()
	ready := kb.index != nil
	kb.mu.RUnlock()
	if ready {
		return
	}

	kb.mu.Lock()
	if kb.index == nil {
		kb.rebuildIndex()
	}
	kb.mu.Unlock()
}

// Lookup resolves a search term to product stubs: exact normalized hit
// first, then the tiered fuzzy search (the top tier also covers substring
// containment). Returns the stubs plus the confidence tier they came from.
func (kb *KnowledgeBase) Lookup(term string) ([]Stub, Quality) {
	kb.ensureIndex()

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	norm := kb.engine.Correct(term)
	if stubs, ok := kb.index[norm]; ok {
		return append([]Stub{}, stubs...), QualityExcellent
	}

	matches, tier := kb.engine.TieredMatches(norm, kb.sortedTerms(), 5)
	if len(matches) == 0 {
		return nil, QualityNone
	}

	var stubs []Stub
	for _, m := range matches {
		stubs = appendStubs(stubs, kb.index[m.Candidate])
	}
	switch tier {
	case 0.8:
		return stubs, QualityExcellent
	case 0.6:
		return stubs, QualityGood
	default:
		return stubs, QualityFair
	}
}

// sortedTerms returns index terms in a stable order so fuzzy ties break
// deterministically. Caller must hold mu (read).
func (kb *KnowledgeBase) sortedTerms() []string {
	terms := make([]string, 0, len(kb.index))
	for t := range kb.index {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

func appendStubs(dst []Stub, src []Stub) []Stub {
	for _, s := range src {
		dup := false
		for _, existing := range dst {
			if existing.Code == s.Code {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}

// Learn associates a new search term with a confirmed product. The canonical
// record is matched by code, not name; the term joins its synonym list once.
// Products without a code are unusable stubs and are ignored with a warning.
func (kb *KnowledgeBase) Learn(term string, product models.Product) error {
	if product.Code == 0 {
		log.Warn().Str("term", term).Str("product", product.Name).
			Msg("⚠️ Ignoring knowledge-base learn for product without code")
		return nil
	}

	norm := nlp.Normalize(term)
	if norm == "" {
		return nil
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	var rec Record
	var key string
	for k, r := range kb.records {
		if r.Code == product.Code {
			rec, key = r, k
			break
		}
	}
	if key == "" {
		key = product.Name
		rec = Record{Code: product.Code, CanonicalName: product.Name, RelatedWords: []string{}}
	}

	for _, word := range rec.RelatedWords {
		if nlp.Normalize(word) == norm {
			return nil // já conhecido
		}
	}
	if nlp.Normalize(rec.CanonicalName) == norm {
		return nil
	}

	rec.RelatedWords = append(rec.RelatedWords, norm)
	kb.records[key] = rec
	kb.index = nil // rebuilt on next read

	if err := kb.persistLocked(); err != nil {
		return err
	}

	log.Info().Str("term", norm).Int("code", product.Code).
		Str("product", rec.CanonicalName).Msg("🧠 Knowledge base learned new term")
	return nil
}

// persistLocked rewrites the whole canonical-keyed store. Caller holds mu.
func (kb *KnowledgeBase) persistLocked() error {
	data, err := json.MarshalIndent(kb.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal knowledge base: %w", err)
	}
	if dir := filepath.Dir(kb.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create knowledge base dir: %w", err)
		}
	}
	if err := os.WriteFile(kb.path, data, 0o644); err != nil {
		return fmt.Errorf("write knowledge base: %w", err)
	}
	return nil
}

// Enrich re-fetches authoritative product fields from the catalog by code.
// If the catalog no longer knows the code, the raw stub data is returned as a
// degraded match instead of failing the turn.
func (kb *KnowledgeBase) Enrich(ctx context.Context, stub Stub) models.Product {
	if kb.catalog != nil && stub.Code != 0 {
		product, err := kb.catalog.ProductByCode(ctx, stub.Code)
		if err == nil && product != nil {
			return *product
		}
		log.Warn().Int("code", stub.Code).Str("name", stub.Name).Err(err).
			Msg("⚠️ Knowledge-base product missing from catalog, using degraded stub")
	}
	return models.Product{Code: stub.Code, Name: stub.Name}
}

// Size returns the number of canonical entries (used by tests and health info).
func (kb *KnowledgeBase) Size() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.records)
}
