package bot

import (
	"fmt"
	"strings"

	"vendazap/internal/nlp"
	"vendazap/pkg/models"

	"github.com/google/uuid"
)

// formatPrice renders a value as Brazilian currency ("R$ 9,50").
func formatPrice(v float64) string {
	return "R$ " + strings.ReplaceAll(fmt.Sprintf("%.2f", v), ".", ",")
}

func menuText() string {
	return strings.Join([]string{
		"📋 *O que você pode fazer:*",
		"• 🏆 *mais vendidos* — ver os campeões de venda",
		"• 🔍 me dizer o que procura (ex: _quero detergente_)",
		"• 🛒 *ver carrinho*",
		"• ✅ *fechar pedido*",
	}, "\n")
}

// renderProductList numbers the page 1..n; the numbers are what a bare
// numeric reply selects.
func renderProductList(header string, page []models.Product, hasMore bool) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	for i, p := range page {
		b.WriteString(fmt.Sprintf("*%d.* %s — %s", i+1, p.Name, formatPrice(p.UnitPrice)))
		if p.WholesalePrice > 0 && p.WholesaleMinQty > 0 {
			b.WriteString(fmt.Sprintf(" _(a partir de %d un: %s)_", p.WholesaleMinQty, formatPrice(p.WholesalePrice)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n💡 Responda com o *número* do produto para adicionar ao carrinho")
	if hasMore {
		b.WriteString(", ou diga *ver mais*")
	}
	b.WriteString("!")
	return b.String()
}

func renderCart(state *models.ConversationState) string {
	var b strings.Builder
	b.WriteString("🛒 *Seu carrinho:*\n\n")
	for i, item := range state.ShoppingCart {
		b.WriteString(fmt.Sprintf("*%d.* %s — %s un x %s = %s\n",
			i+1, item.Product.Name, nlp.FormatQuantity(item.Qt),
			formatPrice(item.Product.EffectivePrice(item.Qt)), formatPrice(item.Subtotal())))
	}
	b.WriteString(fmt.Sprintf("\n💰 *Total: %s*\n\nPara fechar, diga *fechar pedido*!", formatPrice(state.CartTotal())))
	return b.String()
}

// renderCartLines shows only the given 1-based lines, keeping their cart
// numbering so the reply index stays valid.
func renderCartLines(state *models.ConversationState, lines []int) string {
	var b strings.Builder
	for _, line := range lines {
		if line < 1 || line > len(state.ShoppingCart) {
			continue
		}
		item := state.ShoppingCart[line-1]
		b.WriteString(fmt.Sprintf("*%d.* %s (%s un)\n", line, item.Product.Name, nlp.FormatQuantity(item.Qt)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderOrderSummary(state *models.ConversationState) string {
	// Número curto só para o cliente referenciar o pedido na conversa.
	orderRef := strings.ToUpper(uuid.New().String()[:8])

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧾 *Resumo do pedido #%s:*\n\n", orderRef))
	for _, item := range state.ShoppingCart {
		b.WriteString(fmt.Sprintf("• %s x %s — %s\n",
			nlp.FormatQuantity(item.Qt), item.Product.Name, formatPrice(item.Subtotal())))
	}
	b.WriteString(fmt.Sprintf("\n💰 *Total: %s*", formatPrice(state.CartTotal())))
	if state.CustomerContext != nil {
		b.WriteString(fmt.Sprintf("\n🏢 Faturado para: *%s* (CNPJ %s)", state.CustomerContext.Name, state.CustomerContext.CNPJ))
	}
	b.WriteString("\n\n✅ Pedido fechado! Obrigado pela preferência 🙌")
	return b.String()
}

func quantityHelpText(productName string) string {
	return strings.Join([]string{
		fmt.Sprintf("Não consegui entender a quantidade para *%s* 😅", productName),
		"",
		"Você pode me dizer assim:",
		"• um número: *5* ou *2,5*",
		"• por extenso: *duas*, *cinco*",
		"• *meia dúzia*, *uma dúzia*",
		"• multiplicado: *3x12*",
		"",
		"Me chama de novo quando quiser adicionar!",
	}, "\n")
}

func catalogUnavailableText() string {
	return "Nosso catálogo deu uma cochilada aqui 😴 Tenta de novo em instantes, por favor!"
}

func apologyText() string {
	return "Opa, tive um probleminha técnico aqui 🙈 Pode repetir, por favor?"
}
