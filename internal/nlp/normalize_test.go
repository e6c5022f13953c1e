package nlp

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"Coca-Cola", "coca cola"},
		{"  SABÃO   em PÓ!! ", "sabao em po"},
		{"açúcar cristal", "acucar cristal"},
		{"café, 500g", "cafe 500g"},
		{"não", "nao"},
	}

	for _, test := range tests {
		if got := Normalize(test.input); got != test.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestExtractQuantity(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"5", 5},
		{"cinco", 5},
		{"meia duzia", 6},
		{"meia dúzia", 6},
		{"uma duzia", 12},
		{"2.5", 2.5},
		{"2,5", 2.5},
		{"quero 2,5 caixas", 2.5},
		{"manda 1.5 desse ai", 1.5},
		{"quero 3 unidades", 3},
		{"duas e meia", 2.5},
		{"2 e meia", 2.5},
		{"3x12", 36},
		{"manda mais 4", 4},
		{"muda para 5", 5},
		{"vinte", 20},
		{"doze", 12},
	}

	for _, test := range tests {
		if got := ExtractQuantity(test.input, nil, 1.0); got != test.expected {
			t.Errorf("ExtractQuantity(%q) = %v, expected %v", test.input, got, test.expected)
		}
	}
}

func TestExtractQuantityDefault(t *testing.T) {
	tests := []string{
		"",
		"não sei",
		"qual o preço?",
		"quero 500 unidades", // fora do intervalo aceito na extração
	}

	for _, input := range tests {
		if got := ExtractQuantity(input, nil, 1.0); got != 1.0 {
			t.Errorf("ExtractQuantity(%q) = %v, expected default 1.0", input, got)
		}
	}
}

func TestExtractQuantityPrefersTypical(t *testing.T) {
	// 7 aparece primeiro, mas 12 está no conjunto de quantidades típicas
	got := ExtractQuantity("7 ou 12", nil, 1.0)
	if got != 12 {
		t.Errorf("ExtractQuantity(\"7 ou 12\") = %v, expected 12", got)
	}
}

func TestExtractQuantityNearProductName(t *testing.T) {
	got := ExtractQuantity("coloca 4 detergente ai", []string{"Detergente Ypê 500ml"}, 1.0)
	if got != 4 {
		t.Errorf("ExtractQuantity near product name = %v, expected 4", got)
	}
}

func TestIsValidQuantity(t *testing.T) {
	valid := []float64{0.01, 1, 2.5, 10000}
	invalid := []float64{0, 0.001, -1, 10001}

	for _, q := range valid {
		if !IsValidQuantity(q) {
			t.Errorf("IsValidQuantity(%v) = false, expected true", q)
		}
	}
	for _, q := range invalid {
		if IsValidQuantity(q) {
			t.Errorf("IsValidQuantity(%v) = true, expected false", q)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{1, "1"},
		{3.0, "3"},
		{2.5, "2.5"},
		{0.5, "0.5"},
		{12, "12"},
	}

	for _, test := range tests {
		if got := FormatQuantity(test.input); got != test.expected {
			t.Errorf("FormatQuantity(%v) = %q, expected %q", test.input, got, test.expected)
		}
	}
}
