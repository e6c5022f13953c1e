// Package intent transforma a mensagem do usuário em uma intenção
// estruturada. Detectores determinísticos rodam primeiro; só depois a
// mensagem é delegada ao oráculo LLM.
package intent

import (
	"strings"

	"vendazap/pkg/models"
)

// Tool names the handler an intent routes to.
type Tool string

const (
	ToolClearCart        Tool = "clear_cart"
	ToolViewCart         Tool = "view_cart"
	ToolCheckout         Tool = "checkout"
	ToolSearchProducts   Tool = "search_products"
	ToolTopSelling       Tool = "get_top_selling_products"
	ToolTopSellingByName Tool = "get_top_selling_products_by_name"
	ToolAddItemToCart    Tool = "add_item_to_cart"
	ToolUpdateCartItem   Tool = "update_cart_item"
	ToolFindCustomerCNPJ Tool = "find_customer_by_cnpj"
	ToolStartNewOrder    Tool = "start_new_order"
	ToolChitchat         Tool = "chitchat"
	ToolShowMore         Tool = "show_more"
	ToolFallback         Tool = "fallback"
)

// knownTools is the closed set the oracle may answer with.
var knownTools = map[Tool]bool{
	ToolClearCart:        true,
	ToolViewCart:         true,
	ToolCheckout:         true,
	ToolSearchProducts:   true,
	ToolTopSelling:       true,
	ToolTopSellingByName: true,
	ToolAddItemToCart:    true,
	ToolUpdateCartItem:   true,
	ToolFindCustomerCNPJ: true,
	ToolStartNewOrder:    true,
	ToolChitchat:         true,
	ToolShowMore:         true,
}

// Intent is the validated outcome of resolution. Only the fields the chosen
// tool consumes are populated.
type Intent struct {
	Tool       Tool
	SearchTerm string
	Index      int     // seleção 1-based sobre os últimos produtos mostrados
	Quantity   float64 // 0 = não informada
	CNPJ       string
	Action     models.CartMutation
	ItemName   string
	Reply      string // resposta pronta para chitchat
}

// Fallback is the "não entendi" intent; the handler offers the top sellers
// behind a yes/no confirmation.
func Fallback() *Intent {
	return &Intent{Tool: ToolFallback}
}

// SanitizeCNPJ strips everything that is not a digit.
func SanitizeCNPJ(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidCNPJ accepts 14 digits that are not all the same.
func IsValidCNPJ(digits string) bool {
	if len(digits) != 14 {
		return false
	}
	first := digits[0]
	for i := 1; i < len(digits); i++ {
		if digits[i] != first {
			return true
		}
	}
	return false
}
