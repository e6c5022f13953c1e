// Package fuzzy scores approximate matches between free-form product
// references and catalog/knowledge-base terms.
package fuzzy

import (
	"sort"
	"strings"
	"sync"

	"vendazap/internal/nlp"
)

// corrections maps known misspellings to the canonical term. Applied before
// scoring when the whole normalized query (or one of its tokens) hits a variant.
var corrections = map[string]string{
	"cocacola":   "coca cola",
	"coca cola":  "coca cola",
	"koka":       "coca cola",
	"coka":       "coca cola",
	"cocal":      "coca cola",
	"guarna":     "guarana",
	"garana":     "guarana",
	"guanara":    "guarana",
	"pepisi":     "pepsi",
	"pespi":      "pepsi",
	"refri":      "refrigerante",
	"refrig":     "refrigerante",
	"detergnte":  "detergente",
	"detegente":  "detergente",
	"detergemte": "detergente",
	"sabau":      "sabao",
	"sabao po":   "sabao em po",
	"amacinate":  "amaciante",
	"papel hig":  "papel higienico",
	"higienico":  "papel higienico",
	"biscoto":    "biscoito",
	"bolaxa":     "bolacha",
	"cerveija":   "cerveja",
}

// synonyms maps a category term to related terms, both directions curated by hand.
var synonyms = map[string][]string{
	"detergente":   {"sabao", "limpeza", "lava loucas"},
	"sabao":        {"detergente", "sabao em po", "limpeza"},
	"limpeza":      {"detergente", "sabao", "desinfetante", "agua sanitaria"},
	"refrigerante": {"coca cola", "guarana", "pepsi", "bebida"},
	"bebida":       {"refrigerante", "suco", "agua", "cerveja"},
	"cerveja":      {"bebida", "chopp"},
	"higiene":      {"sabonete", "shampoo", "papel higienico", "creme dental"},
	"biscoito":     {"bolacha", "salgadinho"},
	"bolacha":      {"biscoito"},
	"doce":         {"chocolate", "bala", "biscoito"},
}

// Engine computes similarity scores with a process-scoped memo table.
// One instance is shared by the knowledge base and the catalog search;
// it is safe for concurrent use.
type Engine struct {
	mu   sync.RWMutex
	memo map[string]float64
}

// NewEngine creates a similarity engine with an empty memo table.
func NewEngine() *Engine {
	return &Engine{memo: make(map[string]float64)}
}

// Correct replaces known misspellings by their canonical form. The whole
// normalized term is tried first, then individual tokens.
func (e *Engine) Correct(term string) string {
	norm := nlp.Normalize(term)
	if fixed, ok := corrections[norm]; ok {
		return fixed
	}

	tokens := strings.Fields(norm)
	changed := false
	for i, tok := range tokens {
		if fixed, ok := corrections[tok]; ok {
			tokens[i] = fixed
			changed = true
		}
	}
	if !changed {
		return norm
	}
	return strings.Join(tokens, " ")
}

// ExpandWithSynonyms returns the term plus up to 5 deduplicated related terms.
func (e *Engine) ExpandWithSynonyms(term string) []string {
	norm := nlp.Normalize(term)
	expanded := []string{norm}
	seen := map[string]bool{norm: true}

	appendAll := func(terms []string) {
		for _, t := range terms {
			if len(expanded) >= 5 {
				return
			}
			if !seen[t] {
				seen[t] = true
				expanded = append(expanded, t)
			}
		}
	}

	if related, ok := synonyms[norm]; ok {
		appendAll(related)
	}
	for _, tok := range strings.Fields(norm) {
		if related, ok := synonyms[tok]; ok {
			appendAll(related)
		}
	}
	return expanded
}

// Similarity scores how close two strings are, in [0,1]. Exact match after
// normalization scores 1.0 and containment scores 0.8; otherwise the score is
// a weighted blend of character sequence ratio, token overlap, partial
// containment and prefix/suffix agreement. Not symmetric: containment favors
// the shorter side.
func (e *Engine) Similarity(a, b string) float64 {
	na := e.Correct(a)
	nb := e.Correct(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	key := na + "\x00" + nb
	e.mu.RLock()
	cached, ok := e.memo[key]
	e.mu.RUnlock()
	if ok {
		return cached
	}

	score := e.score(na, nb)

	e.mu.Lock()
	e.memo[key] = score
	e.mu.Unlock()
	return score
}

func (e *Engine) score(na, nb string) float64 {
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}

	seq := sequenceRatio(na, nb)
	jac := tokenJaccard(na, nb)

	containment := 0.0
	if anyTokenContained(na, nb) {
		containment = 1.0
	}

	affix := 0.0
	if prefixMatch(na, nb, 3) {
		affix += 0.3
	}
	if suffixMatch(na, nb, 3) {
		affix += 0.2
	}
	if affix > 0.5 {
		affix = 0.5
	}

	score := 0.4*seq + 0.3*jac + 0.2*containment + 0.1*affix
	if score > 1 {
		score = 1
	}
	return score
}

// sequenceRatio is a Levenshtein-based character similarity in [0,1].
func sequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 && lb == 0 {
		return 1
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	longest := la
	if lb > longest {
		longest = lb
	}
	return 1 - float64(prev[lb])/float64(longest)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func tokenJaccard(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func anyTokenContained(a, b string) bool {
	for _, t := range strings.Fields(a) {
		if len(t) >= 3 && strings.Contains(b, t) {
			return true
		}
	}
	for _, t := range strings.Fields(b) {
		if len(t) >= 3 && strings.Contains(a, t) {
			return true
		}
	}
	return false
}

func prefixMatch(a, b string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	return a[:n] == b[:n]
}

func suffixMatch(a, b string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	return a[len(a)-n:] == b[len(b)-n:]
}

// Match is a scored candidate.
type Match struct {
	Candidate string
	Score     float64
	pos       int
}

// FindBestMatches ranks candidates by similarity to the query, dropping
// anything under minSimilarity. Ties keep the original insertion order.
func (e *Engine) FindBestMatches(query string, candidates []string, minSimilarity float64, maxResults int) []Match {
	var matches []Match
	for i, cand := range candidates {
		score := e.Similarity(query, cand)
		if score >= minSimilarity {
			matches = append(matches, Match{Candidate: cand, Score: score, pos: i})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].pos < matches[j].pos
	})

	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// searchTiers are tried in descending order; the first tier with any hit
// wins. Best available confidence rather than single best global match:
// guaranteed recall at the cost of some precision.
var searchTiers = []float64{0.8, 0.6, 0.4}

// TieredMatches returns the matches of the highest-confidence tier that
// yields any result, plus the threshold that produced them (0 when empty).
func (e *Engine) TieredMatches(query string, candidates []string, maxResults int) ([]Match, float64) {
	for _, tier := range searchTiers {
		if matches := e.FindBestMatches(query, candidates, tier, maxResults); len(matches) > 0 {
			return matches, tier
		}
	}
	return nil, 0
}
