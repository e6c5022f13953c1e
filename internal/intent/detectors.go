package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"vendazap/internal/nlp"
	"vendazap/pkg/models"

	"github.com/rs/zerolog/log"
)

// Oracle is the LLM adapter. It owns prompt building, parsing and repair;
// callers only ever see a validated intent or an error.
type Oracle interface {
	Resolve(ctx context.Context, message string, state *models.ConversationState) (*Intent, error)
}

// Resolver runs the deterministic detectors in priority order and delegates
// to the oracle only when none of them is confident.
type Resolver struct {
	oracle Oracle
}

func NewResolver(oracle Oracle) *Resolver {
	return &Resolver{oracle: oracle}
}

var (
	clearCartPattern = regexp.MustCompile(`\b(limpa(r)?|esvazia(r)?|zera(r)?|apaga(r)?)\b.*\bcarrinho\b`)
	bareIntPattern   = regexp.MustCompile(`^\d{1,2}$`)
	searchPattern    = regexp.MustCompile(`^(quero|preciso( de)?|busco|procuro|me ve|me manda|tem|vende(m)?)\s+(.+)$`)
)

var viewCartPhrases = []string{
	"ver carrinho", "meu carrinho", "carrinho", "ver pedido", "meu pedido", "resumo do pedido",
}

var checkoutPhrases = []string{
	"fechar pedido", "finalizar pedido", "finalizar compra", "fechar compra",
	"finalizar", "fecha o pedido", "pode fechar", "checkout",
}

var showProductsPhrases = []string{
	"produtos", "ver produtos", "mais vendidos", "o que tem", "o que voces tem",
	"o que vcs tem", "lista de produtos", "catalogo", "cardapio",
}

var showMorePhrases = []string{
	"mais", "ver mais", "mostra mais", "mostrar mais", "proximos", "proxima pagina",
}

var greetingPhrases = []string{
	"oi", "ola", "olá", "bom dia", "boa tarde", "boa noite", "eai", "e ai", "opa", "hey", "oie",
}

// politeness noise stripped from heuristic search terms
var (
	searchNoisePhrases = []string{"por favor", "para mim", "pra mim"}
	searchNoiseWords   = []string{"pfv", "pf", "ai", "aqui", "um", "uma"}
)

const greetingReply = "Olá! 👋 Seja bem-vindo! Posso te mostrar os produtos mais vendidos, buscar algo específico ou fechar seu pedido. O que você precisa hoje?"

// Resolve never returns an error: oracle failures degrade to the fallback
// intent so the user always gets a coherent reply.
func (r *Resolver) Resolve(ctx context.Context, message string, state *models.ConversationState) *Intent {
	norm := nlp.Normalize(message)

	if clearCartPattern.MatchString(norm) {
		return &Intent{Tool: ToolClearCart}
	}

	// CNPJ só quando o checkout acabou de pedir — 14 dígitos soltos no meio
	// da conversa não são tratados como documento
	if state.LastBotAction == models.ActionAwaitingCNPJ {
		if digits := SanitizeCNPJ(message); IsValidCNPJ(digits) {
			return &Intent{Tool: ToolFindCustomerCNPJ, CNPJ: digits}
		}
	}

	if bareIntPattern.MatchString(norm) && len(state.LastShownProducts) > 0 {
		index, _ := strconv.Atoi(norm)
		if index >= 1 {
			return &Intent{Tool: ToolAddItemToCart, Index: index}
		}
	}

	if matchPhrase(norm, viewCartPhrases) {
		return &Intent{Tool: ToolViewCart}
	}
	if matchPhrase(norm, checkoutPhrases) {
		return &Intent{Tool: ToolCheckout}
	}
	if matchPhrase(norm, showProductsPhrases) {
		return &Intent{Tool: ToolTopSelling}
	}
	if matchPhrase(norm, showMorePhrases) && state.LastSearchType != "" {
		return &Intent{Tool: ToolShowMore}
	}

	if m := searchPattern.FindStringSubmatch(norm); m != nil {
		if term := cleanSearchTerm(m[len(m)-1]); term != "" {
			return &Intent{Tool: ToolSearchProducts, SearchTerm: term}
		}
	}

	if matchPhrase(norm, greetingPhrases) {
		return &Intent{Tool: ToolChitchat, Reply: greetingReply}
	}

	return r.delegate(ctx, message, state)
}

func (r *Resolver) delegate(ctx context.Context, message string, state *models.ConversationState) *Intent {
	if r.oracle == nil {
		return Fallback()
	}

	resolved, err := r.oracle.Resolve(ctx, message, state)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Intent oracle failed, using fallback")
		return Fallback()
	}

	if validated := validate(resolved); validated != nil {
		return validated
	}
	return Fallback()
}

// validate checks the oracle's answer against the known tool set and fills
// safe defaults for missing parameters. Returns nil when the intent is
// unusable.
func validate(in *Intent) *Intent {
	if in == nil || !knownTools[in.Tool] {
		return nil
	}

	switch in.Tool {
	case ToolSearchProducts, ToolTopSellingByName:
		in.SearchTerm = strings.TrimSpace(in.SearchTerm)
		if in.SearchTerm == "" {
			return nil
		}
	case ToolAddItemToCart:
		if in.Index <= 0 && strings.TrimSpace(in.ItemName) == "" && strings.TrimSpace(in.SearchTerm) == "" {
			return nil
		}
		if in.Quantity < 0 {
			in.Quantity = 0
		}
	case ToolUpdateCartItem:
		switch in.Action {
		case models.MutationRemove, models.MutationAddQty, models.MutationSetQty:
		default:
			return nil
		}
		if in.Action != models.MutationRemove && in.Quantity <= 0 {
			in.Quantity = 1
		}
	case ToolFindCustomerCNPJ:
		in.CNPJ = SanitizeCNPJ(in.CNPJ)
		if !IsValidCNPJ(in.CNPJ) {
			return nil
		}
	}
	return in
}

func matchPhrase(norm string, phrases []string) bool {
	for _, p := range phrases {
		if norm == nlp.Normalize(p) {
			return true
		}
	}
	return false
}

// cleanSearchTerm drops the politeness noise around the product words.
func cleanSearchTerm(term string) string {
	for _, phrase := range searchNoisePhrases {
		term = strings.ReplaceAll(term, phrase, " ")
	}

	var kept []string
	for _, tok := range strings.Fields(term) {
		noise := false
		for _, n := range searchNoiseWords {
			if tok == n {
				noise = true
				break
			}
		}
		if !noise {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}
