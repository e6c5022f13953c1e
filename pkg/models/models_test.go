package models

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEffectivePrice(t *testing.T) {
	p := Product{Code: 1, Name: "Coca Cola 2L", UnitPrice: 10, WholesalePrice: 8, WholesaleMinQty: 6}

	tests := []struct {
		qt   float64
		want float64
	}{
		{1, 10},
		{5, 10},
		{6, 8},
		{12, 8},
	}
	for _, tt := range tests {
		if got := p.EffectivePrice(tt.qt); got != tt.want {
			t.Errorf("EffectivePrice(%v) = %v, want %v", tt.qt, got, tt.want)
		}
	}

	noWholesale := Product{UnitPrice: 10}
	if got := noWholesale.EffectivePrice(100); got != 10 {
		t.Errorf("EffectivePrice without wholesale = %v, want 10", got)
	}
}

func TestCartTotalIsWholesaleAware(t *testing.T) {
	st := NewConversationState()
	st.ShoppingCart = []CartItem{
		{Product: Product{Code: 1, UnitPrice: 10, WholesalePrice: 8, WholesaleMinQty: 6}, Qt: 6}, // 48
		{Product: Product{Code: 2, UnitPrice: 3}, Qt: 2},                                         // 6
	}
	if got := st.CartTotal(); got != 54 {
		t.Fatalf("CartTotal() = %v, want 54", got)
	}
}

func TestSameProductStrictness(t *testing.T) {
	tests := []struct {
		name string
		line CartItem
		p    Product
		want bool
	}{
		{
			name: "codes match wins over different names",
			line: CartItem{Product: Product{Code: 7, Name: "Coca Cola 2L"}},
			p:    Product{Code: 7, Name: "Coca-Cola Dois Litros"},
			want: true,
		},
		{
			name: "codes differ even with same name",
			line: CartItem{Product: Product{Code: 7, Name: "Coca Cola 2L"}},
			p:    Product{Code: 8, Name: "Coca Cola 2L"},
			want: false,
		},
		{
			name: "no codes falls back to case-insensitive name",
			line: CartItem{Product: Product{Name: "coca cola 2l"}},
			p:    Product{Name: "Coca Cola 2L"},
			want: true,
		},
		{
			name: "no fuzzy matching for near names",
			line: CartItem{Product: Product{Name: "Coca Cola 2L"}},
			p:    Product{Name: "Coca Cola Lata"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.line.SameProduct(tt.p); got != tt.want {
				t.Fatalf("SameProduct() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindCartLine(t *testing.T) {
	st := NewConversationState()
	st.ShoppingCart = []CartItem{
		{Product: Product{Code: 1, Name: "Coca Cola 2L"}, Qt: 1},
		{Product: Product{Code: 2, Name: "Detergente"}, Qt: 3},
	}

	if got := st.FindCartLine(Product{Code: 2, Name: "qualquer"}); got != 1 {
		t.Fatalf("FindCartLine(code 2) = %d, want 1", got)
	}
	if got := st.FindCartLine(Product{Code: 99, Name: "Coca Cola 2L"}); got != -1 {
		t.Fatalf("FindCartLine(unknown code) = %d, want -1", got)
	}
}

func TestCompactHistory(t *testing.T) {
	st := NewConversationState()
	for i := 0; i < MaxHistoryEntries+5; i++ {
		st.AppendHistory("user", fmt.Sprintf("mensagem %d\nsegunda linha", i))
	}

	st.CompactHistory()

	if len(st.History) != KeepRecentEntries {
		t.Fatalf("len(History) = %d, want %d", len(st.History), KeepRecentEntries)
	}
	if st.HistorySummary == "" {
		t.Fatal("HistorySummary empty after compaction")
	}
	if strings.Contains(st.HistorySummary, "segunda linha") {
		t.Fatal("summary should keep only the first line of each message")
	}
	// a janela recente preserva as últimas mensagens intactas
	last := st.History[len(st.History)-1]
	if !strings.Contains(last.Content, fmt.Sprintf("mensagem %d", MaxHistoryEntries+4)) {
		t.Fatalf("recent window lost the newest message: %q", last.Content)
	}
}

func TestCompactHistoryBudget(t *testing.T) {
	st := NewConversationState()
	long := strings.Repeat("x", 300)
	for i := 0; i < MaxHistoryEntries+10; i++ {
		st.AppendHistory("user", long)
	}

	st.CompactHistory()

	if len(st.HistorySummary) > SummaryCharBudget {
		t.Fatalf("len(HistorySummary) = %d, want <= %d", len(st.HistorySummary), SummaryCharBudget)
	}
}

func TestCompactHistoryBudgetKeepsRuneBoundary(t *testing.T) {
	st := NewConversationState()
	// uma mensagem longa só de caracteres de 2 bytes seguida de ruído curto:
	// o corte do orçamento cai no meio de um "ã"
	st.AppendHistory("user", strings.Repeat("ã", 1200))
	for i := 0; i < MaxHistoryEntries; i++ {
		st.AppendHistory("user", "ok")
	}
	st.History[20].Content = "ok!"

	st.CompactHistory()

	if !utf8.ValidString(st.HistorySummary) {
		t.Fatal("HistorySummary is not valid UTF-8 after truncation")
	}
	if len(st.HistorySummary) > SummaryCharBudget {
		t.Fatalf("len(HistorySummary) = %d, want <= %d", len(st.HistorySummary), SummaryCharBudget)
	}
}

func TestCompactHistoryNoopUnderLimit(t *testing.T) {
	st := NewConversationState()
	for i := 0; i < MaxHistoryEntries; i++ {
		st.AppendHistory("user", "oi")
	}

	st.CompactHistory()

	if len(st.History) != MaxHistoryEntries || st.HistorySummary != "" {
		t.Fatalf("compaction ran under the limit: len=%d summary=%q", len(st.History), st.HistorySummary)
	}
}

func TestReset(t *testing.T) {
	st := NewConversationState()
	st.CustomerContext = &Customer{CNPJ: "12345678000195", Name: "Mercado Central"}
	st.ShoppingCart = []CartItem{{Product: Product{Code: 1}, Qt: 2}}
	st.Pending = &PendingAction{Kind: PendingQuantity}
	st.LastBotAction = ActionAwaitingCNPJ

	st.Reset()

	if st.CustomerContext != nil || len(st.ShoppingCart) != 0 || st.Pending != nil || st.LastBotAction != ActionNone {
		t.Fatalf("Reset() left state behind: %+v", st)
	}
}
