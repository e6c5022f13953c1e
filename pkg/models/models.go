package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Product represents a product from the catalog. Knowledge-base stubs that
// were not enriched yet carry Code but may have zero prices.
type Product struct {
	Code            int     `gorm:"primaryKey;autoIncrement:false" json:"code"`
	Name            string  `gorm:"not null" json:"name" validate:"required"`
	Category        string  `json:"category"`
	UnitPrice       float64 `gorm:"not null" json:"unit_price"`
	WholesalePrice  float64 `json:"wholesale_price,omitempty"`
	WholesaleMinQty int     `json:"wholesale_min_qty,omitempty"`
	SalesCount      int     `gorm:"default:0;index" json:"-"` // ranking para "mais vendidos"
}

// EffectivePrice returns the unit price that applies for a given quantity,
// switching to the wholesale price once the minimum quantity is reached.
func (p Product) EffectivePrice(qt float64) float64 {
	if p.WholesalePrice > 0 && p.WholesaleMinQty > 0 && qt >= float64(p.WholesaleMinQty) {
		return p.WholesalePrice
	}
	return p.UnitPrice
}

// Customer represents a resolved customer record (CNPJ + name).
type Customer struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	CNPJ string `gorm:"uniqueIndex;not null" json:"cnpj" validate:"required,len=14,numeric"`
	Name string `gorm:"not null" json:"name"`
}

// CartItem is a cart line: a product plus a quantity.
type CartItem struct {
	Product Product `json:"product"`
	Qt      float64 `json:"qt"`
}

// Subtotal applies the effective unit price for the line quantity.
func (ci CartItem) Subtotal() float64 {
	return ci.Product.EffectivePrice(ci.Qt) * ci.Qt
}

// SameProduct reports whether p refers to the same product as this line.
// Match by code when both sides have one; otherwise case-insensitive exact
// name equality. No fuzzy matching here: duplicate detection is deliberately
// stricter than search so unrelated items never get merged.
func (ci CartItem) SameProduct(p Product) bool {
	if ci.Product.Code != 0 && p.Code != 0 {
		return ci.Product.Code == p.Code
	}
	return strings.EqualFold(strings.TrimSpace(ci.Product.Name), strings.TrimSpace(p.Name))
}

// BotAction tags what kind of response the bot just gave, so numeric input
// on the next turn can be disambiguated.
type BotAction string

const (
	ActionNone                     BotAction = ""
	ActionAwaitingProductSelection BotAction = "awaiting_product_selection"
	ActionAwaitingMenuSelection    BotAction = "awaiting_menu_selection"
	ActionAwaitingCNPJ             BotAction = "awaiting_cnpj"
)

// PendingKind identifies an open multi-turn sub-dialogue.
type PendingKind string

const (
	PendingQuantity          PendingKind = "awaiting_quantity"
	PendingDuplicateDecision PendingKind = "awaiting_duplicate_decision"
	PendingCartItemSelection PendingKind = "awaiting_cart_item_selection"
	PendingConfirm           PendingKind = "confirm"
)

// CartMutation names the cart edit an open selection sub-dialogue will apply.
type CartMutation string

const (
	MutationRemove CartMutation = "remove"
	MutationAddQty CartMutation = "add_qty"
	MutationSetQty CartMutation = "set_qty"
)

// PendingAction is the payload of the currently open sub-dialogue. Only the
// fields relevant to Kind are set; everything else stays zero.
type PendingAction struct {
	Kind PendingKind `json:"kind"`

	// awaiting_quantity
	Candidate   *Product `json:"candidate,omitempty"`
	TermToLearn string   `json:"term_to_learn,omitempty"`

	// awaiting_duplicate_decision
	DuplicateIndex int     `json:"duplicate_index,omitempty"` // zero-based cart line
	NewQty         float64 `json:"new_qty,omitempty"`

	// awaiting_cart_item_selection
	Matches     []int        `json:"matches,omitempty"` // 1-based cart line numbers offered
	Mutation    CartMutation `json:"mutation,omitempty"`
	MutationQty float64      `json:"mutation_qty,omitempty"`

	// confirm: the fallback tool to run on an affirmative reply
	ConfirmTool string `json:"confirm_tool,omitempty"`
}

// ChatMessage is one role-tagged entry of the conversation history.
type ChatMessage struct {
	Role    string    `json:"role"` // "user", "assistant", "system"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ConversationState is the per-user session record, persisted after every turn.
type ConversationState struct {
	CustomerContext   *Customer      `json:"customer_context,omitempty"`
	ShoppingCart      []CartItem     `json:"shopping_cart"`
	LastSearchType    string         `json:"last_search_type,omitempty"`
	LastSearchTerm    string         `json:"last_search_term,omitempty"`
	CurrentOffset     int            `json:"current_offset"`
	LastShownProducts []Product      `json:"last_shown_products,omitempty"`
	LastBotAction     BotAction      `json:"last_bot_action,omitempty"`
	Pending           *PendingAction `json:"pending_action,omitempty"`
	History           []ChatMessage  `json:"conversation_history"`
	HistorySummary    string         `json:"history_summary,omitempty"`
}

// NewConversationState returns the empty state created on a user's first message.
func NewConversationState() *ConversationState {
	return &ConversationState{
		ShoppingCart: []CartItem{},
		History:      []ChatMessage{},
	}
}

// CartTotal sums unit_price × qt over all lines (wholesale-aware).
func (st *ConversationState) CartTotal() float64 {
	total := 0.0
	for _, item := range st.ShoppingCart {
		total += item.Subtotal()
	}
	return total
}

// FindCartLine returns the zero-based index of the cart line that duplicates
// the given product, or -1.
func (st *ConversationState) FindCartLine(p Product) int {
	for i, item := range st.ShoppingCart {
		if item.SameProduct(p) {
			return i
		}
	}
	return -1
}

// AppendHistory adds a role-tagged message to the conversation log.
func (st *ConversationState) AppendHistory(role, content string) {
	st.History = append(st.History, ChatMessage{Role: role, Content: content, At: time.Now()})
}

// History compaction limits. Once the log exceeds MaxHistoryEntries, every
// entry older than the KeepRecentEntries window is collapsed into the running
// summary instead of being discarded.
const (
	MaxHistoryEntries = 30
	KeepRecentEntries = 10
	SummaryCharBudget = 2000
)

// CompactHistory collapses old history entries into HistorySummary, one line
// per collapsed message, truncated to the character budget.
func (st *ConversationState) CompactHistory() {
	if len(st.History) <= MaxHistoryEntries {
		return
	}

	cut := len(st.History) - KeepRecentEntries
	var b strings.Builder
	b.WriteString(st.HistorySummary)
	for _, msg := range st.History[:cut] {
		line := msg.Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(line)
	}

	summary := b.String()
	if len(summary) > SummaryCharBudget {
		cut := len(summary) - SummaryCharBudget
		// não cortar no meio de uma rune (acentos são multi-byte)
		for cut < len(summary) && !utf8.RuneStart(summary[cut]) {
			cut++
		}
		summary = summary[cut:]
	}
	st.HistorySummary = summary
	st.History = append([]ChatMessage{}, st.History[cut:]...)
}

// Reset wipes everything, as on an explicit "start new order".
func (st *ConversationState) Reset() {
	*st = *NewConversationState()
}

// GetAllModels returns every model registered for GORM AutoMigrate.
func GetAllModels() []interface{} {
	return []interface{}{
		&Product{},
		&Customer{},
	}
}
