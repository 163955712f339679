package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var umlautReplacer = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"ß", "ss",
)

// FoldGerman lowercases s, transliterates German umlauts and sharp s to their
// two-letter forms, and strips the remaining combining marks so "Café" and
// "Cafe" compare equal. Casers and transformers are stateful, so both are
// built per call.
func FoldGerman(s string) string {
	if s == "" {
		return ""
	}
	lowered := cases.Lower(language.German).String(s)
	lowered = umlautReplacer.Replace(norm.NFC.String(lowered))
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), lowered)
	if err != nil {
		return lowered
	}
	return folded
}
