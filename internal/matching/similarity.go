package matching

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"tafsync/internal/textutil"
)

var (
	episodeNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`folge\s*(\d+)`),
		regexp.MustCompile(`episode\s*(\d+)`),
		regexp.MustCompile(`teil\s*(\d+)`),
		regexp.MustCompile(`track\s*(\d+)`),
		regexp.MustCompile(`#\s*(\d+)`),
		regexp.MustCompile(`(\d+)\.`),
		// bare number leading or trailing the title
		regexp.MustCompile(`^(\d+)\s`),
		regexp.MustCompile(`\s(\d+)$`),
	}
)

// SeriesSimilarity scores how closely two series names agree, in [0, 1].
func SeriesSimilarity(query, target string) float64 {
	return seriesScore(textutil.NormalizeForMatch(query), textutil.NormalizeForMatch(target))
}

// seriesScore expects both inputs already normalized.
func seriesScore(query, target string) float64 {
	if query == "" || target == "" {
		return 0
	}
	if query == target {
		return 1
	}
	if strings.Contains(target, query) || strings.Contains(query, target) {
		a, b := utf8.RuneCountInString(query), utf8.RuneCountInString(target)
		return 0.85 + 0.10*float64(min(a, b))/float64(max(a, b))
	}
	return 0.15*textutil.Ratio(query, target) +
		0.25*textutil.PartialRatio(query, target) +
		0.25*textutil.TokenSortRatio(query, target) +
		0.35*textutil.TokenSetRatio(query, target)
}

// EpisodeSimilarity scores two episode descriptions, in [0, 1]. Episode
// numbers dominate: when both sides carry one, only equality counts.
func EpisodeSimilarity(query, target string) float64 {
	switch {
	case query == "" && target == "":
		return 1
	case query == "" || target == "":
		return 0.5
	}

	qNum, qOK := ExtractEpisodeNumber(query)
	tNum, tOK := ExtractEpisodeNumber(target)
	if qOK && tOK {
		if qNum == tNum {
			return 1
		}
		return 0.2
	}

	qNorm := textutil.NormalizeForMatch(query)
	tNorm := textutil.NormalizeForMatch(target)
	if qNorm == tNorm {
		return 1
	}
	return textutil.TokenSetRatio(qNorm, tNorm)
}

// ExtractEpisodeNumber finds an episode number in text such as "Folge 12",
// "#3", "7. Die Reise" or a bare leading or trailing number.
func ExtractEpisodeNumber(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	lower := strings.ToLower(text)
	for _, pattern := range episodeNumberPatterns {
		if m := pattern.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
