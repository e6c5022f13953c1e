// Package nlp normalizes Portuguese free text and extracts quantities from it.
package nlp

import (
	"regexp"
	"strconv"
	"strings"
)

// accentReplacer folds the accented characters common in PT-BR input, same
// table used by the catalog's normalize_text SQL function.
var accentReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a", "ä", "a", "å", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ý", "y", "ÿ", "y",
	"ñ", "n", "ç", "c",
)

var (
	punctPattern = regexp.MustCompile(`[^a-z0-9 ]+`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Normalize folds text to lowercase, strips diacritics, replaces punctuation
// with word boundaries and collapses whitespace.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = accentReplacer.Replace(s)
	s = punctPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// numberWords is the fixed PT-BR spelled-out number table.
var numberWords = map[string]float64{
	"zero": 0, "meio": 0.5, "meia": 0.5,
	"um": 1, "uma": 1, "dois": 2, "duas": 2, "tres": 3, "quatro": 4,
	"cinco": 5, "seis": 6, "sete": 7, "oito": 8, "nove": 9, "dez": 10,
	"onze": 11, "doze": 12, "treze": 13, "quatorze": 14, "catorze": 14,
	"quinze": 15, "dezesseis": 16, "dezessete": 17, "dezoito": 18, "dezenove": 19,
	"vinte": 20, "trinta": 30, "quarenta": 40, "cinquenta": 50,
	"sessenta": 60, "setenta": 70, "oitenta": 80, "noventa": 90, "cem": 100,
}

// typicalQuantities are order sizes customers actually ask for; when several
// candidate numbers appear in a message, one of these wins over arbitrary values.
var typicalQuantities = map[float64]bool{
	1: true, 2: true, 3: true, 4: true, 5: true, 6: true,
	10: true, 12: true, 20: true, 24: true, 30: true, 50: true,
}

var (
	multiplyPattern = regexp.MustCompile(`\b(\d+)\s*x\s*(\d+)\b`)
	decimalPattern  = regexp.MustCompile(`\d+[.,]\d+`)
	numberPattern   = regexp.MustCompile(`\d+`)
	halfCompound    = regexp.MustCompile(`\b([a-z]+|\d+)\s+e\s+mei[ao]\b`)
	contextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bmais\s+(\d+)\b`),
		regexp.MustCompile(`\b(?:muda|mudar|altera|alterar|troca|trocar)\s+(?:para|pra)\s+(\d+)\b`),
		regexp.MustCompile(`\bitem\s+(\d+)\b`),
	}
)

// ExtractQuantity pulls a quantity out of free text. It tries numeric
// literals (including "3x12" multiplication and decimal comma), the
// spelled-out number table (with "meia duzia" and "duas e meia" composites),
// cart-edit context phrases, and finally numbers adjacent to one of the
// recently shown product names. Candidates outside [0.1, 100] are ignored;
// when nothing survives, def is returned.
func ExtractQuantity(text string, recentProducts []string, def float64) float64 {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return def
	}

	var candidates []float64
	add := func(q float64) {
		if q < 0.1 || q > 100 {
			return
		}
		for _, existing := range candidates {
			if existing == q {
				return
			}
		}
		candidates = append(candidates, q)
	}

	// decimais saem do texto cru: Normalize troca "." e "," por espaço e
	// "2,5" viraria os candidatos 2 e 5
	for _, m := range decimalPattern.FindAllString(lowered, -1) {
		if q, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64); err == nil {
			add(q)
		}
	}
	norm := Normalize(decimalPattern.ReplaceAllString(lowered, " "))

	// "N x M" antes dos literais simples, senão o regex de número captura as partes
	consumed := norm
	for _, m := range multiplyPattern.FindAllStringSubmatch(norm, -1) {
		a, _ := strconv.ParseFloat(m[1], 64)
		b, _ := strconv.ParseFloat(m[2], 64)
		add(a * b)
		consumed = strings.Replace(consumed, m[0], " ", 1)
	}

	// "duas e meia", "2 e meia"
	for _, m := range halfCompound.FindAllStringSubmatch(consumed, -1) {
		base, ok := numberWords[m[1]]
		if !ok {
			parsed, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			base = parsed
		}
		add(base + 0.5)
		consumed = strings.Replace(consumed, m[0], " ", 1)
	}

	// "meia duzia" / "uma duzia" / "duzia"
	if strings.Contains(consumed, "duzia") {
		if strings.Contains(consumed, "meia duzia") {
			add(6)
			consumed = strings.Replace(consumed, "meia duzia", " ", 1)
		} else {
			add(12)
		}
		consumed = strings.ReplaceAll(consumed, "duzia", " ")
	}

	for _, m := range numberPattern.FindAllString(consumed, -1) {
		if q, err := strconv.ParseFloat(m, 64); err == nil {
			add(q)
		}
	}

	for _, word := range strings.Fields(consumed) {
		if q, ok := numberWords[word]; ok {
			add(q)
		}
	}

	for _, p := range contextPatterns {
		if m := p.FindStringSubmatch(norm); m != nil {
			q, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				add(q)
			}
		}
	}

	// números colados a um nome de produto mostrado recentemente
	for _, name := range recentProducts {
		tokens := strings.Fields(Normalize(name))
		if len(tokens) == 0 {
			continue
		}
		adjacent := regexp.MustCompile(`\b(\d+)\s+` + regexp.QuoteMeta(tokens[0]) + `\b|\b` + regexp.QuoteMeta(tokens[0]) + `\s+(\d+)\b`)
		if m := adjacent.FindStringSubmatch(norm); m != nil {
			raw := m[1]
			if raw == "" {
				raw = m[2]
			}
			if q, err := strconv.ParseFloat(raw, 64); err == nil {
				add(q)
			}
		}
	}

	if len(candidates) == 0 {
		return def
	}
	for _, q := range candidates {
		if typicalQuantities[q] {
			return q
		}
	}
	return candidates[0]
}

// IsValidQuantity reports whether q is an acceptable order quantity.
func IsValidQuantity(q float64) bool {
	return q >= 0.01 && q <= 10000
}

// FormatQuantity renders integral values without a decimal point and
// fractional values with the minimal number of decimals.
func FormatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return strconv.FormatInt(int64(q), 10)
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
