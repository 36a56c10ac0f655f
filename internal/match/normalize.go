package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes counterparty text for comparison: diacritics are
// stripped (NFD, remove combining marks, NFC), the result lowercased and
// whitespace collapsed. "Müller  B.V." and "muller b.v." fold identically.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		// Fold is best-effort; unfoldable input still compares by casing.
		normalized = s
	}
	return strings.Join(strings.Fields(strings.ToLower(normalized)), " ")
}

// legalSuffixes are dropped when tokenizing company names; they carry no
// identity ("Acme BV" and "Acme" are the same counterparty).
var legalSuffixes = map[string]struct{}{
	"bv": {}, "b.v.": {}, "nv": {}, "n.v.": {}, "vof": {}, "v.o.f.": {},
	"gmbh": {}, "ltd": {}, "llc": {}, "inc": {}, "sa": {}, "ag": {},
}

// tokens splits folded text into comparison tokens, dropping legal-form
// suffixes and single characters.
func tokens(folded string) []string {
	var out []string
	for _, tok := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(tok) < 2 {
			continue
		}
		if _, ok := legalSuffixes[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Similarity scores how well a contact name matches counterparty text,
// in [0,1]. Containment of the whole folded name scores highest; otherwise
// the ratio of shared tokens decides.
func Similarity(contactName, counterpartyText string) float64 {
	name := Fold(contactName)
	text := Fold(counterpartyText)
	if name == "" || text == "" {
		return 0
	}
	if name == text {
		return 1
	}
	if strings.Contains(text, name) || strings.Contains(name, text) {
		return 0.9
	}

	nameTokens := tokens(name)
	textTokens := tokens(text)
	if len(nameTokens) == 0 || len(textTokens) == 0 {
		return 0
	}

	textSet := make(map[string]struct{}, len(textTokens))
	for _, tok := range textTokens {
		textSet[tok] = struct{}{}
	}

	shared := 0
	for _, tok := range nameTokens {
		if _, ok := textSet[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(nameTokens))
}

// CleanCounterpartyName turns raw counterparty text into a presentable
// contact name proposal: collapsed whitespace, title case per word.
func CleanCounterpartyName(raw string) string {
	fields := strings.Fields(raw)
	for i, f := range fields {
		r := []rune(f)
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		fields[i] = string(r)
	}
	return strings.Join(fields, " ")
}
