package textutil

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// indel scores two strings by their insert/delete edit distance normalized by
// the combined length. A substitution costs two edits, which makes the
// Levenshtein distance equal to the Indel distance.
type indel struct {
	lev *metrics.Levenshtein
}

func newIndel() indel {
	lev := metrics.NewLevenshtein()
	lev.ReplaceCost = 2
	return indel{lev: lev}
}

// Compare implements strutil.StringMetric.
func (m indel) Compare(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 1 - float64(m.lev.Distance(a, b))/float64(total)
}

var indelMetric strutil.StringMetric = newIndel()

// Ratio returns the normalized Indel similarity of a and b in [0, 1].
func Ratio(a, b string) float64 {
	return strutil.Similarity(a, b, indelMetric)
}

// PartialRatio slides the shorter string across the longer one and returns the
// best Ratio of any alignment, including alignments that overhang either end.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 1
		}
		return 0
	}
	needle := string(short)
	best := 0.0
	for start := 1 - len(short); start < len(long); start++ {
		lo := max(start, 0)
		hi := min(start+len(short), len(long))
		score := Ratio(needle, string(long[lo:hi]))
		if score > best {
			best = score
			if best == 1 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares a and b after sorting their whitespace separated tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared tokens of a and b against each side's
// remainder. When one token set contains the other the result is 1.
func TokenSetRatio(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		if len(tokensA) == 0 && len(tokensB) == 0 {
			return 1
		}
		return 0
	}

	var shared, onlyA, onlyB []string
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			shared = append(shared, token)
		} else {
			onlyA = append(onlyA, token)
		}
	}
	for token := range tokensB {
		if _, ok := tokensA[token]; !ok {
			onlyB = append(onlyB, token)
		}
	}
	sort.Strings(shared)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	if len(shared) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}

	sect := strings.Join(shared, " ")
	diffA := strings.Join(onlyA, " ")
	diffB := strings.Join(onlyB, " ")
	if sect == "" {
		return Ratio(diffA, diffB)
	}

	combinedA := sect + " " + diffA
	combinedB := sect + " " + diffB
	return max(Ratio(sect, combinedA), Ratio(sect, combinedB), Ratio(combinedA, combinedB))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}
