package textutil

import (
	"regexp"
	"strings"
)

var (
	leadingArticles = map[string]struct{}{
		"die": {}, "der": {}, "das": {}, "den": {}, "dem": {}, "des": {},
		"ein": {}, "eine": {}, "einer": {}, "eines": {}, "einem": {}, "einen": {},
		"the": {}, "a": {}, "an": {},
	}
	nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)
)

// NormalizeForMatch reduces a title to the comparable form used by fuzzy
// matching: folded to lowercase ASCII, one leading article removed, anything
// other than letters, digits and spaces dropped, whitespace collapsed.
//
// German umlauts and ß are transliterated (ä to ae, ß to ss) and all other
// diacritics are folded to their base letter, so "Café" becomes "cafe"
// rather than losing the accented letter. Accented titles can therefore
// score higher than a plain ASCII filter would allow.
func NormalizeForMatch(s string) string {
	folded := FoldGerman(s)
	words := strings.Fields(folded)
	if len(words) > 0 {
		if _, ok := leadingArticles[words[0]]; ok {
			words = words[1:]
		}
	}
	cleaned := nonAlnum.ReplaceAllString(strings.Join(words, " "), "")
	return strings.Join(strings.Fields(cleaned), " ")
}
