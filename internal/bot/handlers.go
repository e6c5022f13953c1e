package bot

import (
	"context"
	"fmt"
	"strings"

	"vendazap/internal/catalog"
	"vendazap/internal/intent"
	"vendazap/internal/kb"
	"vendazap/internal/nlp"
	"vendazap/pkg/models"

	"github.com/rs/zerolog/log"
)

// cartMatchThreshold is looser than duplicate detection on purpose: "tira a
// coca" deve achar "Coca Cola 2L" no carrinho mesmo sem nome exato.
const cartMatchThreshold = 0.6

func (s *Service) handleClearCart(state *models.ConversationState) string {
	state.ShoppingCart = []models.CartItem{}
	state.LastShownProducts = nil
	state.Pending = nil
	state.CurrentOffset = 0
	state.LastBotAction = models.ActionNone
	return "🧹 Prontinho, carrinho esvaziado!\n\n" + menuText()
}

func (s *Service) handleViewCart(state *models.ConversationState) string {
	if len(state.ShoppingCart) == 0 {
		return "Seu carrinho está vazio 🛒\n\nMe diga o que você procura ou peça os *mais vendidos*!"
	}
	return renderCart(state)
}

// listingKind values kept in LastSearchType for "show more" pagination.
const (
	listingTopSelling       = "top_selling"
	listingTopSellingByName = "top_selling_by_name"
	listingSearch           = "search"
)

// handleSearch resolves a free-text product search. The learned knowledge
// base answers first when it has a high-confidence hit; otherwise the
// catalog does, with its own fuzzy fallback and synonym suggestions.
func (s *Service) handleSearch(ctx context.Context, state *models.ConversationState, term string, fresh bool) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.handleFallback(state)
	}
	if fresh {
		state.CurrentOffset = 0
	}

	if stubs, quality := s.kb.Lookup(term); quality == kb.QualityExcellent {
		products := s.enrichStubs(ctx, stubs)
		if len(products) > 0 {
			log.Debug().Str("term", term).Int("hits", len(products)).Msg("📚 Search answered by knowledge base")
			return s.showListing(state, listingSearch, term, pageSlice(products, state.CurrentOffset), int64(len(products)),
				fmt.Sprintf("🔍 Encontrei para *%s*:", term))
		}
	}

	result, err := s.catalog.SearchWithSuggestions(ctx, term)
	if err != nil {
		log.Error().Err(err).Str("term", term).Msg("❌ Product search failed")
		return catalogUnavailableText()
	}

	switch result.Quality {
	case catalog.MatchExact, catalog.MatchFuzzy:
		header := fmt.Sprintf("🔍 Encontrei para *%s*:", term)
		if result.Quality == catalog.MatchFuzzy {
			header = fmt.Sprintf("🔍 Não achei exatamente *%s*, mas olha o que temos parecido:", term)
		}
		return s.showListing(state, listingSearch, term, pageSlice(result.Products, state.CurrentOffset), int64(len(result.Products)), header)
	default:
		reply := fmt.Sprintf("Puxa, não encontrei nada para *%s* 😕", term)
		if len(result.Suggestions) > 0 {
			reply += "\n\nVocê quis dizer: *" + strings.Join(result.Suggestions, "*, *") + "*?"
		}
		reply += "\n\nQuer ver os *mais vendidos*? Responda *sim* que eu te mostro!"
		state.Pending = &models.PendingAction{Kind: models.PendingConfirm, ConfirmTool: "show_top_selling"}
		return reply
	}
}

// handleTopSelling lists best sellers, optionally restricted by name. The
// knowledge base answers the by-name variant when its hit quality is good
// enough; anything weaker goes to the catalog ranking.
func (s *Service) handleTopSelling(ctx context.Context, state *models.ConversationState, term string, fresh bool) string {
	if fresh {
		state.CurrentOffset = 0
	}

	if term == "" {
		products, total, err := s.catalog.TopSelling(ctx, pageSize, state.CurrentOffset)
		if err != nil {
			log.Error().Err(err).Msg("❌ Top selling query failed")
			return catalogUnavailableText()
		}
		if len(products) == 0 {
			if state.CurrentOffset > 0 {
				// "ver mais" passou da última página
				return s.showListing(state, listingTopSelling, "", nil, total, "")
			}
			return "Ainda não tenho um ranking de mais vendidos por aqui 😕 Me diga o que você procura!"
		}
		return s.showListing(state, listingTopSelling, "", products, total, "🏆 Nossos *mais vendidos*:")
	}

	if stubs, quality := s.kb.Lookup(term); quality == kb.QualityExcellent || quality == kb.QualityGood {
		products := s.enrichStubs(ctx, stubs)
		if len(products) > 0 {
			log.Debug().Str("term", term).Str("quality", string(quality)).Msg("📚 Top selling answered by knowledge base")
			return s.showListing(state, listingTopSellingByName, term, pageSlice(products, state.CurrentOffset), int64(len(products)),
				fmt.Sprintf("🏆 Mais vendidos de *%s*:", term))
		}
	}

	products, total, err := s.catalog.TopSellingByName(ctx, term, pageSize, state.CurrentOffset)
	if err != nil {
		log.Error().Err(err).Str("term", term).Msg("❌ Top selling by name failed")
		return catalogUnavailableText()
	}
	if len(products) == 0 {
		return s.handleSearch(ctx, state, term, fresh)
	}
	return s.showListing(state, listingTopSellingByName, term, products, total,
		fmt.Sprintf("🏆 Mais vendidos de *%s*:", term))
}

// handleShowMore advances the last listing by one page.
func (s *Service) handleShowMore(ctx context.Context, state *models.ConversationState) string {
	if state.LastSearchType == "" {
		return s.handleTopSelling(ctx, state, "", true)
	}

	state.CurrentOffset += pageSize
	switch state.LastSearchType {
	case listingSearch:
		return s.handleSearch(ctx, state, state.LastSearchTerm, false)
	case listingTopSellingByName:
		return s.handleTopSelling(ctx, state, state.LastSearchTerm, false)
	default:
		return s.handleTopSelling(ctx, state, "", false)
	}
}

// showListing records the listing context for numeric selection and "show
// more", then renders the numbered page.
func (s *Service) showListing(state *models.ConversationState, kind, term string, page []models.Product, total int64, header string) string {
	if len(page) == 0 {
		// fim da listagem: zera o contexto para "ver mais" não recomeçar
		// a mesma busca da página 1
		state.CurrentOffset = 0
		state.LastSearchType = ""
		state.LastSearchTerm = ""
		return "Isso é tudo que eu tinha para mostrar por aqui! 😉\n\n" + menuText()
	}

	state.LastSearchType = kind
	state.LastSearchTerm = term
	state.LastShownProducts = page
	state.LastBotAction = models.ActionAwaitingProductSelection
	state.Pending = nil

	hasMore := int64(state.CurrentOffset+len(page)) < total
	return renderProductList(header, page, hasMore)
}

// handleAddItem resolves the product (by index into the last listing or by
// name) and either inserts directly when the quantity came with the message
// or opens the "quantas unidades?" sub-dialogue.
func (s *Service) handleAddItem(ctx context.Context, state *models.ConversationState, in *intent.Intent) string {
	var product *models.Product
	termToLearn := ""

	switch {
	case in.Index > 0:
		if len(state.LastShownProducts) == 0 {
			return "Ainda não te mostrei nenhuma lista 😅 Me diga o nome do produto ou peça os *mais vendidos*!"
		}
		if in.Index > len(state.LastShownProducts) {
			return fmt.Sprintf("Escolha um número entre *1* e *%d*, por favor 🙏", len(state.LastShownProducts))
		}
		p := state.LastShownProducts[in.Index-1]
		product = &p
		// a lista veio de uma busca por nome: o termo original vira sinônimo
		// aprendido quando a quantidade for confirmada
		if state.LastSearchType == listingSearch || state.LastSearchType == listingTopSellingByName {
			termToLearn = state.LastSearchTerm
		}

	default:
		name := strings.TrimSpace(in.ItemName)
		if name == "" {
			name = strings.TrimSpace(in.SearchTerm)
		}
		if name == "" {
			return s.handleFallback(state)
		}

		result, err := s.catalog.SearchWithSuggestions(ctx, name)
		if err != nil {
			log.Error().Err(err).Str("term", name).Msg("❌ Product lookup for add failed")
			return catalogUnavailableText()
		}
		if len(result.Products) == 0 {
			return s.handleSearch(ctx, state, name, true)
		}
		p := result.Products[0]
		product = &p
		termToLearn = name
	}

	if in.Quantity > 0 && nlp.IsValidQuantity(in.Quantity) {
		return s.insertOrAskDuplicate(state, *product, in.Quantity, termToLearn)
	}

	state.Pending = &models.PendingAction{
		Kind:        models.PendingQuantity,
		Candidate:   product,
		TermToLearn: termToLearn,
	}
	state.LastBotAction = models.ActionNone

	reply := fmt.Sprintf("Boa escolha! *%s* por %s 💰\n\nQuantas unidades você quer?", product.Name, formatPrice(product.UnitPrice))
	if product.WholesalePrice > 0 && product.WholesaleMinQty > 0 {
		reply += fmt.Sprintf("\n\n💡 A partir de *%d unidades* sai por %s cada!", product.WholesaleMinQty, formatPrice(product.WholesalePrice))
	}
	return reply
}

// insertOrAskDuplicate appends a new cart line, or opens the sum/replace
// sub-dialogue when the product already has one.
func (s *Service) insertOrAskDuplicate(state *models.ConversationState, product models.Product, qty float64, termToLearn string) string {
	if idx := state.FindCartLine(product); idx >= 0 {
		state.Pending = &models.PendingAction{
			Kind:           models.PendingDuplicateDecision,
			Candidate:      &product,
			TermToLearn:    termToLearn,
			DuplicateIndex: idx,
			NewQty:         qty,
		}
		existing := state.ShoppingCart[idx]
		return fmt.Sprintf("*%s* já está no carrinho com *%s unidades* 🛒\n\nO que você prefere?\n1️⃣ Somar (+%s)\n2️⃣ Substituir por %s",
			existing.Product.Name, nlp.FormatQuantity(existing.Qt), nlp.FormatQuantity(qty), nlp.FormatQuantity(qty))
	}

	state.ShoppingCart = append(state.ShoppingCart, models.CartItem{Product: product, Qt: qty})
	state.Pending = nil
	s.learnTerm(termToLearn, product)

	item := state.ShoppingCart[len(state.ShoppingCart)-1]
	return fmt.Sprintf("✅ Adicionei *%s x %s* (%s)\n\n🛒 Total do carrinho: *%s*\n\nQuer mais alguma coisa? É só pedir, ou diga *fechar pedido*!",
		nlp.FormatQuantity(item.Qt), item.Product.Name, formatPrice(item.Subtotal()), formatPrice(state.CartTotal()))
}

// learnTerm teaches the KB the search term that led to a confirmed add.
func (s *Service) learnTerm(term string, product models.Product) {
	if term == "" || product.Code == 0 {
		return
	}
	if nlp.Normalize(term) == nlp.Normalize(product.Name) {
		return
	}
	if err := s.kb.Learn(term, product); err != nil {
		log.Warn().Err(err).Str("term", term).Msg("⚠️ Failed to learn search term")
	}
}

// handleQuantityReply consumes the answer to "quantas unidades?". Failure
// clears the sub-dialogue instead of retrying.
func (s *Service) handleQuantityReply(ctx context.Context, state *models.ConversationState, text string) string {
	pending := state.Pending
	state.Pending = nil

	if pending.Candidate == nil {
		return s.handleTurn(ctx, "", state, text)
	}

	recent := []string{pending.Candidate.Name}
	qty := nlp.ExtractQuantity(text, recent, 0)
	if qty <= 0 || !nlp.IsValidQuantity(qty) {
		return quantityHelpText(pending.Candidate.Name)
	}

	return s.insertOrAskDuplicate(state, *pending.Candidate, qty, pending.TermToLearn)
}

// handleDuplicateReply resolves the sum/replace question. Anything besides
// "1" or "2" re-asks the same question.
func (s *Service) handleDuplicateReply(state *models.ConversationState, text string) string {
	pending := state.Pending
	idx := pending.DuplicateIndex
	if idx < 0 || idx >= len(state.ShoppingCart) {
		state.Pending = nil
		return "Opa, esse item não está mais no carrinho 😅\n\n" + menuText()
	}

	switch strings.TrimSpace(text) {
	case "1":
		state.ShoppingCart[idx].Qt += pending.NewQty
	case "2":
		state.ShoppingCart[idx].Qt = pending.NewQty
	default:
		existing := state.ShoppingCart[idx]
		return fmt.Sprintf("Só preciso de um numerinho 😊\n1️⃣ Somar (+%s às %s atuais)\n2️⃣ Substituir por %s",
			nlp.FormatQuantity(pending.NewQty), nlp.FormatQuantity(existing.Qt), nlp.FormatQuantity(pending.NewQty))
	}

	state.Pending = nil
	if pending.Candidate != nil {
		s.learnTerm(pending.TermToLearn, *pending.Candidate)
	}

	item := state.ShoppingCart[idx]
	return fmt.Sprintf("✅ Pronto! *%s* agora com *%s unidades* (%s)\n\n🛒 Total: *%s*",
		item.Product.Name, nlp.FormatQuantity(item.Qt), formatPrice(item.Subtotal()), formatPrice(state.CartTotal()))
}

// handleUpdateCart mutates a cart line by index, by unique fuzzy name match,
// or opens the selection sub-dialogue when the target is ambiguous.
func (s *Service) handleUpdateCart(state *models.ConversationState, in *intent.Intent) string {
	if len(state.ShoppingCart) == 0 {
		return "Seu carrinho está vazio 🛒 Não tem o que mexer por enquanto!"
	}

	var lines []int // 1-based
	switch {
	case in.Index > 0:
		if in.Index > len(state.ShoppingCart) {
			return fmt.Sprintf("O carrinho só tem *%d* itens — escolha um número entre 1 e %d 🙏",
				len(state.ShoppingCart), len(state.ShoppingCart))
		}
		lines = []int{in.Index}

	case strings.TrimSpace(in.ItemName) != "":
		lines = s.matchCartLines(state, in.ItemName)
		if len(lines) == 0 {
			return fmt.Sprintf("Não achei *%s* no seu carrinho 🤔\n\n%s", in.ItemName, renderCart(state))
		}

	default:
		if in.Action == models.MutationRemove && len(state.ShoppingCart) == 1 {
			lines = []int{1}
		} else {
			lines = allCartLines(state)
		}
	}

	if len(lines) > 1 {
		state.Pending = &models.PendingAction{
			Kind:        models.PendingCartItemSelection,
			Matches:     lines,
			Mutation:    in.Action,
			MutationQty: in.Quantity,
		}
		return "Encontrei mais de um item parecido 🧐 Qual deles?\n\n" + renderCartLines(state, lines)
	}

	return applyCartMutation(state, lines[0], in.Action, in.Quantity)
}

// handleCartSelectionReply consumes the line choice for an ambiguous cart
// mutation. Invalid input re-prompts.
func (s *Service) handleCartSelectionReply(state *models.ConversationState, text string) string {
	pending := state.Pending

	choice := 0
	if _, err := fmt.Sscanf(strings.TrimSpace(text), "%d", &choice); err != nil || choice <= 0 {
		return "Me responde só com o número do item, por favor 😊\n\n" + renderCartLines(state, pending.Matches)
	}

	valid := false
	for _, line := range pending.Matches {
		if line == choice {
			valid = true
			break
		}
	}
	if !valid {
		return "Esse número não está entre as opções 🧐\n\n" + renderCartLines(state, pending.Matches)
	}

	state.Pending = nil
	return applyCartMutation(state, choice, pending.Mutation, pending.MutationQty)
}

func applyCartMutation(state *models.ConversationState, line int, action models.CartMutation, qty float64) string {
	idx := line - 1
	if idx < 0 || idx >= len(state.ShoppingCart) {
		return "Esse item não está mais no carrinho 😅\n\n" + menuText()
	}
	item := state.ShoppingCart[idx]

	switch action {
	case models.MutationRemove:
		state.ShoppingCart = append(state.ShoppingCart[:idx], state.ShoppingCart[idx+1:]...)
		reply := fmt.Sprintf("🗑️ Tirei *%s* do carrinho.", item.Product.Name)
		if len(state.ShoppingCart) == 0 {
			return reply + "\n\nSeu carrinho ficou vazio. " + menuText()
		}
		return reply + "\n\n" + renderCart(state)

	case models.MutationAddQty:
		if qty <= 0 || !nlp.IsValidQuantity(state.ShoppingCart[idx].Qt+qty) {
			return quantityHelpText(item.Product.Name)
		}
		state.ShoppingCart[idx].Qt += qty

	case models.MutationSetQty:
		if qty <= 0 || !nlp.IsValidQuantity(qty) {
			return quantityHelpText(item.Product.Name)
		}
		state.ShoppingCart[idx].Qt = qty

	default:
		return menuText()
	}

	item = state.ShoppingCart[idx]
	return fmt.Sprintf("✅ *%s* agora com *%s unidades* (%s)\n\n🛒 Total: *%s*",
		item.Product.Name, nlp.FormatQuantity(item.Qt), formatPrice(item.Subtotal()), formatPrice(state.CartTotal()))
}

// matchCartLines finds cart lines whose product name is similar enough to
// the given name. Looser than duplicate detection: this is a user-facing
// "qual item você quis dizer" lookup.
func (s *Service) matchCartLines(state *models.ConversationState, name string) []int {
	var lines []int
	for i, item := range state.ShoppingCart {
		if s.engine.Similarity(name, item.Product.Name) >= cartMatchThreshold {
			lines = append(lines, i+1)
		}
	}
	return lines
}

func allCartLines(state *models.ConversationState) []int {
	lines := make([]int, len(state.ShoppingCart))
	for i := range state.ShoppingCart {
		lines[i] = i + 1
	}
	return lines
}

// handleCheckout closes the order, or asks for the CNPJ first when the
// customer was never identified.
func (s *Service) handleCheckout(ctx context.Context, state *models.ConversationState) string {
	if len(state.ShoppingCart) == 0 {
		state.Pending = &models.PendingAction{Kind: models.PendingConfirm, ConfirmTool: "show_top_selling"}
		return "Seu carrinho está vazio 🛒 Quer ver os *mais vendidos* antes de fechar? Responda *sim*!"
	}

	if state.CustomerContext == nil {
		state.LastBotAction = models.ActionAwaitingCNPJ
		return "Quase lá! 🏁 Para faturar o pedido, me passa o *CNPJ* da sua empresa (só os números, pode ser)."
	}

	return s.finalizeOrder(ctx, state)
}

// handleFindCustomer validates the CNPJ against the customer store. A hit
// auto-continues the checkout; a miss still lets the order close without
// identification.
func (s *Service) handleFindCustomer(ctx context.Context, state *models.ConversationState, cnpj string) string {
	state.LastBotAction = models.ActionNone

	customer, err := s.catalog.FindCustomerByCNPJ(ctx, cnpj)
	if err != nil {
		log.Error().Err(err).Msg("❌ Customer lookup failed")
		return catalogUnavailableText()
	}

	if customer != nil {
		state.CustomerContext = customer
		if len(state.ShoppingCart) > 0 {
			return fmt.Sprintf("Achei seu cadastro, *%s*! 🎉\n\n%s", customer.Name, s.finalizeOrder(ctx, state))
		}
		return fmt.Sprintf("Bem-vindo de volta, *%s*! 👋\n\n%s", customer.Name, menuText())
	}

	if len(state.ShoppingCart) > 0 {
		return "Não encontrei esse CNPJ no cadastro, mas sem problemas — vou fechar seu pedido mesmo assim! 😉\n\n" +
			s.finalizeOrder(ctx, state)
	}
	return "Não encontrei esse CNPJ no cadastro 😕 Mas você pode comprar normalmente!\n\n" + menuText()
}

// finalizeOrder renders the summary, registers the sale for the best-seller
// ranking and empties the cart. Fire-and-forget: no external order system.
func (s *Service) finalizeOrder(ctx context.Context, state *models.ConversationState) string {
	summary := renderOrderSummary(state)

	if err := s.catalog.RegisterSale(ctx, state.ShoppingCart); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to register sale counters")
	}

	state.ShoppingCart = []models.CartItem{}
	state.LastShownProducts = nil
	state.Pending = nil
	state.CurrentOffset = 0
	state.LastSearchType = ""
	state.LastSearchTerm = ""
	state.LastBotAction = models.ActionNone

	return summary
}

// handleStartNewOrder wipes everything, including the persisted session.
func (s *Service) handleStartNewOrder(ctx context.Context, userID string, state *models.ConversationState) string {
	state.Reset()
	if err := s.store.Clear(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("⚠️ Failed to clear persisted session")
	}
	return "Tudo limpo, começando do zero! ✨\n\n" + menuText()
}

// handleConfirmReply resolves a generic yes/no confirmation. Affirmative
// runs the recorded tool; negative shows the menu; anything else drops the
// confirmation silently and processes the message normally.
func (s *Service) handleConfirmReply(ctx context.Context, userID string, state *models.ConversationState, text string) string {
	pending := state.Pending
	state.Pending = nil
	norm := nlp.Normalize(text)

	if isAffirmative(norm) {
		switch pending.ConfirmTool {
		case "show_top_selling":
			return s.handleTopSelling(ctx, state, "", true)
		default:
			return menuText()
		}
	}
	if isNegative(norm) {
		state.LastBotAction = models.ActionAwaitingMenuSelection
		return "Sem problemas! 😊\n\n" + menuText()
	}

	return s.handleTurn(ctx, userID, state, text)
}

var affirmatives = []string{"sim", "s", "quero", "pode", "pode ser", "claro", "ok", "bora", "manda", "isso", "aham", "vamos"}

var negatives = []string{"nao", "n", "deixa", "depois", "agora nao", "nada", "para", "esquece"}

func isAffirmative(norm string) bool {
	for _, a := range affirmatives {
		if norm == a {
			return true
		}
	}
	return false
}

func isNegative(norm string) bool {
	for _, n := range negatives {
		if norm == n {
			return true
		}
	}
	return false
}

func (s *Service) enrichStubs(ctx context.Context, stubs []kb.Stub) []models.Product {
	products := make([]models.Product, 0, len(stubs))
	for _, stub := range stubs {
		products = append(products, s.kb.Enrich(ctx, stub))
	}
	return products
}

// pageSlice cuts one page out of an in-memory result set.
func pageSlice(products []models.Product, offset int) []models.Product {
	if offset >= len(products) {
		return nil
	}
	end := offset + pageSize
	if end > len(products) {
		end = len(products)
	}
	return products[offset:end]
}
