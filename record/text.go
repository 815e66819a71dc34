package record

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips accents, upper-cases and trims s: "Concluídas " -> "CONCLUIDAS".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

// Blank reports whether v carries no value once trimmed.
func Blank(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == Placeholder
}

// ParseDecimal reads an amount written in Brazilian notation ("R$ 1.000,50",
// "200,00") or plain notation ("1000.5"). Blank or unreadable values are 0.
func ParseDecimal(v string) float64 {
	text := strings.TrimSpace(v)
	if text == "" || text == Placeholder {
		return 0
	}
	text = strings.NewReplacer("R$", "", " ", "", "\u00a0", "").Replace(text)
	if strings.Contains(text, ",") {
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}
	var digits strings.Builder
	for _, r := range text {
		if unicode.IsDigit(r) || r == '.' {
			digits.WriteRune(r)
		}
	}
	if f, err := strconv.ParseFloat(digits.String(), 64); err == nil {
		return f
	}
	return 0
}
