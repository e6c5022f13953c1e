package intent

import (
	"context"
	"errors"
	"testing"

	"vendazap/pkg/models"
)

type stubOracle struct {
	intent *Intent
	err    error
	called bool
}

func (s *stubOracle) Resolve(_ context.Context, _ string, _ *models.ConversationState) (*Intent, error) {
	s.called = true
	return s.intent, s.err
}

func TestDetectClearCart(t *testing.T) {
	r := NewResolver(nil)
	for _, msg := range []string{"limpar carrinho", "pode esvaziar o carrinho", "zera o carrinho ai"} {
		got := r.Resolve(context.Background(), msg, models.NewConversationState())
		if got.Tool != ToolClearCart {
			t.Errorf("Resolve(%q).Tool = %q, want %q", msg, got.Tool, ToolClearCart)
		}
	}
}

func TestDetectCNPJOnlyWhenRequested(t *testing.T) {
	r := NewResolver(&stubOracle{err: errors.New("offline")})
	cnpj := "12.345.678/0001-95"

	// sem o bot ter pedido o documento, 14 dígitos não viram CNPJ
	state := models.NewConversationState()
	got := r.Resolve(context.Background(), cnpj, state)
	if got.Tool == ToolFindCustomerCNPJ {
		t.Fatalf("CNPJ detected without contextual gating")
	}

	state.LastBotAction = models.ActionAwaitingCNPJ
	got = r.Resolve(context.Background(), cnpj, state)
	if got.Tool != ToolFindCustomerCNPJ {
		t.Fatalf("Resolve().Tool = %q, want %q", got.Tool, ToolFindCustomerCNPJ)
	}
	if got.CNPJ != "12345678000195" {
		t.Fatalf("Resolve().CNPJ = %q, want digits only", got.CNPJ)
	}
}

func TestRejectAllIdenticalCNPJ(t *testing.T) {
	r := NewResolver(&stubOracle{err: errors.New("offline")})
	state := models.NewConversationState()
	state.LastBotAction = models.ActionAwaitingCNPJ

	got := r.Resolve(context.Background(), "11111111111111", state)
	if got.Tool == ToolFindCustomerCNPJ {
		t.Fatal("all-identical digit sequence accepted as CNPJ")
	}
}

func TestDetectNumericSelection(t *testing.T) {
	r := NewResolver(&stubOracle{err: errors.New("offline")})

	state := models.NewConversationState()
	state.LastShownProducts = []models.Product{{Code: 1, Name: "Coca Cola 2L"}, {Code: 2, Name: "Guaraná 2L"}}

	got := r.Resolve(context.Background(), "2", state)
	if got.Tool != ToolAddItemToCart || got.Index != 2 {
		t.Fatalf("Resolve(\"2\") = %+v, want add_item_to_cart index 2", got)
	}

	// sem lista mostrada, número solto vai para o oráculo
	empty := models.NewConversationState()
	got = r.Resolve(context.Background(), "2", empty)
	if got.Tool == ToolAddItemToCart {
		t.Fatal("numeric selection detected without shown products")
	}
}

func TestDetectPhraseSets(t *testing.T) {
	r := NewResolver(nil)
	tests := []struct {
		msg  string
		want Tool
	}{
		{"ver carrinho", ToolViewCart},
		{"meu carrinho", ToolViewCart},
		{"fechar pedido", ToolCheckout},
		{"Finalizar compra", ToolCheckout},
		{"mais vendidos", ToolTopSelling},
		{"ver produtos", ToolTopSelling},
		{"catálogo", ToolTopSelling},
	}
	for _, tt := range tests {
		got := r.Resolve(context.Background(), tt.msg, models.NewConversationState())
		if got.Tool != tt.want {
			t.Errorf("Resolve(%q).Tool = %q, want %q", tt.msg, got.Tool, tt.want)
		}
	}
}

func TestDetectShowMoreNeedsActiveListing(t *testing.T) {
	r := NewResolver(&stubOracle{err: errors.New("offline")})

	state := models.NewConversationState()
	state.LastSearchType = "top_selling"
	got := r.Resolve(context.Background(), "ver mais", state)
	if got.Tool != ToolShowMore {
		t.Fatalf("Resolve(\"ver mais\").Tool = %q, want %q", got.Tool, ToolShowMore)
	}

	got = r.Resolve(context.Background(), "ver mais", models.NewConversationState())
	if got.Tool == ToolShowMore {
		t.Fatal("show_more detected without an active listing")
	}
}

func TestDetectHeuristicSearch(t *testing.T) {
	r := NewResolver(nil)
	tests := []struct {
		msg  string
		term string
	}{
		{"quero coca cola", "coca cola"},
		{"preciso de detergente", "detergente"},
		{"tem guaraná por favor", "guarana"},
		{"me ve um sabao ai", "sabao"},
	}
	for _, tt := range tests {
		got := r.Resolve(context.Background(), tt.msg, models.NewConversationState())
		if got.Tool != ToolSearchProducts {
			t.Errorf("Resolve(%q).Tool = %q, want search_products", tt.msg, got.Tool)
			continue
		}
		if got.SearchTerm != tt.term {
			t.Errorf("Resolve(%q).SearchTerm = %q, want %q", tt.msg, got.SearchTerm, tt.term)
		}
	}
}

func TestDetectGreeting(t *testing.T) {
	r := NewResolver(nil)
	for _, msg := range []string{"oi", "Olá", "bom dia", "opa"} {
		got := r.Resolve(context.Background(), msg, models.NewConversationState())
		if got.Tool != ToolChitchat || got.Reply == "" {
			t.Errorf("Resolve(%q) = %+v, want chitchat with canned reply", msg, got)
		}
	}
}

func TestOracleFallbackOnError(t *testing.T) {
	oracle := &stubOracle{err: errors.New("timeout")}
	r := NewResolver(oracle)

	got := r.Resolve(context.Background(), "xablau sideral", models.NewConversationState())
	if !oracle.called {
		t.Fatal("oracle was not consulted for free text")
	}
	if got.Tool != ToolFallback {
		t.Fatalf("Resolve().Tool = %q, want fallback", got.Tool)
	}
}

func TestOracleUnknownToolFallsBack(t *testing.T) {
	oracle := &stubOracle{intent: &Intent{Tool: Tool("launch_rocket")}}
	r := NewResolver(oracle)

	got := r.Resolve(context.Background(), "sobe o foguete", models.NewConversationState())
	if got.Tool != ToolFallback {
		t.Fatalf("unknown oracle tool should fall back, got %q", got.Tool)
	}
}

func TestValidateDefaults(t *testing.T) {
	// busca sem termo é inutilizável
	if v := validate(&Intent{Tool: ToolSearchProducts}); v != nil {
		t.Fatalf("validate(search without term) = %+v, want nil", v)
	}

	// mutação sem ação conhecida é rejeitada
	if v := validate(&Intent{Tool: ToolUpdateCartItem, Action: "explode"}); v != nil {
		t.Fatalf("validate(unknown action) = %+v, want nil", v)
	}

	// quantidade ausente em mutação não-remove ganha default 1
	v := validate(&Intent{Tool: ToolUpdateCartItem, Action: models.MutationSetQty, ItemName: "coca"})
	if v == nil || v.Quantity != 1 {
		t.Fatalf("validate(set_qty without quantity) = %+v, want quantity 1", v)
	}

	// CNPJ inválido vindo do oráculo é rejeitado
	if v := validate(&Intent{Tool: ToolFindCustomerCNPJ, CNPJ: "123"}); v != nil {
		t.Fatalf("validate(short cnpj) = %+v, want nil", v)
	}
}

func TestParseOracleResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Tool
		wantErr bool
	}{
		{
			name:    "clean json",
			content: `{"tool_name":"search_products","parameters":{"search_term":"coca cola"}}`,
			want:    ToolSearchProducts,
		},
		{
			name:    "markdown fenced",
			content: "```json\n{\"tool_name\":\"view_cart\",\"parameters\":{}}\n```",
			want:    ToolViewCart,
		},
		{
			name:    "surrounded by prose",
			content: `Claro! Aqui está: {"tool_name":"checkout","parameters":{}} Espero ter ajudado.`,
			want:    ToolCheckout,
		},
		{
			name:    "not json at all",
			content: "desculpe, não entendi",
			wantErr: true,
		},
		{
			name:    "model reported error",
			content: `{"tool_name":"error","parameters":{"reply":"sem contexto"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOracleResponse(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseOracleResponse() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOracleResponse() error = %v", err)
			}
			if got.Tool != tt.want {
				t.Fatalf("parseOracleResponse().Tool = %q, want %q", got.Tool, tt.want)
			}
		})
	}
}

func TestSanitizeAndValidateCNPJ(t *testing.T) {
	if got := SanitizeCNPJ("12.345.678/0001-95"); got != "12345678000195" {
		t.Fatalf("SanitizeCNPJ() = %q", got)
	}
	if !IsValidCNPJ("12345678000195") {
		t.Fatal("valid CNPJ rejected")
	}
	if IsValidCNPJ("00000000000000") {
		t.Fatal("all-zero CNPJ accepted")
	}
	if IsValidCNPJ("1234567800019") {
		t.Fatal("13-digit string accepted")
	}
}
