// Package catalog expõe consultas de produtos e clientes sobre o banco,
// com fallback fuzzy no lado do cliente quando o SQL não encontra nada.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vendazap/internal/fuzzy"
	"vendazap/pkg/models"

	"gorm.io/gorm"
)

// MatchQuality describes how a search result set was produced.
type MatchQuality string

const (
	MatchExact MatchQuality = "exact" // SQL hit on the normalized name
	MatchFuzzy MatchQuality = "fuzzy" // client-side similarity fallback
	MatchNone  MatchQuality = "none"
)

// SearchResult carries the products found for a term plus alternative terms
// worth offering when the result set is thin.
type SearchResult struct {
	Products    []models.Product
	Suggestions []string
	Quality     MatchQuality
}

const (
	sqlSearchLimit   = 15
	fuzzySearchLimit = 10
	maxSuggestions   = 3
	fuzzyThreshold   = 0.4
)

// Service is the catalog query layer.
type Service struct {
	db     *gorm.DB
	engine *fuzzy.Engine
}

func NewService(db *gorm.DB, engine *fuzzy.Engine) *Service {
	return &Service{db: db, engine: engine}
}

// ProductByCode returns the product with the given code.
func (s *Service) ProductByCode(ctx context.Context, code int) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("produto %d não encontrado", code)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// FindCustomerByCNPJ looks a customer up by the already-sanitized CNPJ.
// Not found is not an error: (nil, nil).
func (s *Service) FindCustomerByCNPJ(ctx context.Context, cnpj string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).Where("cnpj = ?", cnpj).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return &customer, nil
}

// TopSelling returns a page of the best sellers plus the total count for
// pagination.
func (s *Service) TopSelling(ctx context.Context, limit, offset int) ([]models.Product, int64, error) {
	return s.topSellingQuery(ctx, "", limit, offset)
}

// TopSellingByName restricts the best-seller ranking to names containing the
// normalized term.
func (s *Service) TopSellingByName(ctx context.Context, name string, limit, offset int) ([]models.Product, int64, error) {
	return s.topSellingQuery(ctx, s.engine.Correct(name), limit, offset)
}

func (s *Service) topSellingQuery(ctx context.Context, normName string, limit, offset int) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if normName != "" {
		for _, token := range strings.Fields(normName) {
			query = query.Where("normalize_text(name) LIKE ?", "%"+token+"%")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	err := query.Order("sales_count DESC, name ASC").Limit(limit).Offset(offset).Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list top sellers: %w", err)
	}
	return products, total, nil
}

// RegisterSale bumps the sales counters of every cart line after a closed
// order, keeping the best-seller ranking warm.
func (s *Service) RegisterSale(ctx context.Context, items []models.CartItem) error {
	for _, item := range items {
		if item.Product.Code == 0 {
			continue
		}
		err := s.db.WithContext(ctx).Model(&models.Product{}).
			Where("code = ?", item.Product.Code).
			UpdateColumn("sales_count", gorm.Expr("sales_count + 1")).Error
		if err != nil {
			return fmt.Errorf("failed to register sale for product %d: %w", item.Product.Code, err)
		}
	}
	return nil
}

// SearchWithSuggestions resolves a free-text term: accent-insensitive SQL
// first, client-side fuzzy ranking as fallback, synonym suggestions when the
// term itself leads nowhere.
func (s *Service) SearchWithSuggestions(ctx context.Context, term string) (*SearchResult, error) {
	corrected := s.engine.Correct(term)
	if corrected == "" {
		return &SearchResult{Quality: MatchNone}, nil
	}

	products, err := s.sqlSearch(ctx, corrected, sqlSearchLimit)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		return &SearchResult{Products: products, Quality: MatchExact}, nil
	}

	// fallback: pontua todos os nomes do catálogo em memória
	all, err := s.allProducts(ctx)
	if err != nil {
		return nil, err
	}
	if ranked := rankProductsByName(s.engine, corrected, all, fuzzySearchLimit); len(ranked) > 0 {
		return &SearchResult{Products: ranked, Quality: MatchFuzzy}, nil
	}

	suggestions, err := s.synonymSuggestions(ctx, corrected)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Suggestions: suggestions, Quality: MatchNone}, nil
}

func (s *Service) sqlSearch(ctx context.Context, normTerm string, limit int) ([]models.Product, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	for _, token := range strings.Fields(normTerm) {
		query = query.Where("normalize_text(name) LIKE ?", "%"+token+"%")
	}

	var products []models.Product
	if err := query.Order("sales_count DESC, name ASC").Limit(limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

func (s *Service) allProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("sales_count DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return products, nil
}

func (s *Service) synonymSuggestions(ctx context.Context, normTerm string) ([]string, error) {
	var suggestions []string
	for _, related := range s.engine.ExpandWithSynonyms(normTerm) {
		if related == normTerm {
			continue
		}
		hits, err := s.sqlSearch(ctx, related, 1)
		if err != nil {
			return nil, err
		}
		if len(hits) > 0 {
			suggestions = appendUnique(suggestions, related)
		}
		if len(suggestions) >= maxSuggestions {
			break
		}
	}
	return suggestions, nil
}

// rankProductsByName scores every product name against the term and keeps
// the ones above the fuzzy threshold, best first.
func rankProductsByName(engine *fuzzy.Engine, term string, products []models.Product, max int) []models.Product {
	names := make([]string, len(products))
	byName := make(map[string][]models.Product, len(products))
	for i, p := range products {
		names[i] = p.Name
		byName[p.Name] = append(byName[p.Name], p)
	}

	matches := engine.FindBestMatches(term, names, fuzzyThreshold, max)

	ranked := make([]models.Product, 0, len(matches))
	seen := make(map[int]bool)
	for _, m := range matches {
		for _, p := range byName[m.Candidate] {
			if !seen[p.Code] {
				seen[p.Code] = true
				ranked = append(ranked, p)
			}
		}
	}
	return ranked
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
