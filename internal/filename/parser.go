package filename

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/strutil"
)

// Pattern identifies which rule of the cascade produced a Parsed value.
type Pattern int

const (
	PatternFull Pattern = iota + 1
	PatternSeriesRest
	PatternSeriesOnly
)

// DefaultEpisode is assigned when a name carries no episode information.
const DefaultEpisode = "Folge 1"

var (
	// Author - Series - Category - Folge N [- Title]
	fullPattern = regexp.MustCompile(`(?i)^([^-]+)\s*-\s*([^-]+)\s*-\s*(Hoerspiel|Hörspiel|Audiobook|Musik)\s*-\s*(Folge|Teil|Episode|Track)\s*(\d+)[^-]*(?:-\s*(.+))?$`)
	// Series - Rest
	seriesRestPattern = regexp.MustCompile(`^([^-]+)\s*-\s*(.+)$`)
	// N [-] Title
	numberedRestPattern = regexp.MustCompile(`^(\d+)\s*-?\s*(.*)$`)

	publisherPrefix = regexp.MustCompile(`(?i)^Disney\s*-\s*`)
	categoryWords   = regexp.MustCompile(`(?i)\s*(Hörspiel|Hoerspiel|Audiobook|Audio Book)\s*`)
)

// Parsed holds the metadata recovered from a filename. Empty strings mean the
// field could not be determined.
type Parsed struct {
	Series     string  `json:"series,omitempty"`
	Episode    string  `json:"episode,omitempty"`
	Author     string  `json:"author,omitempty"`
	Category   string  `json:"category,omitempty"`
	SearchTerm string  `json:"search_term,omitempty"`
	Pattern    Pattern `json:"-"`
}

// Parse extracts series, episode, author and category from a TAF filename.
// Directory components and the .taf extension are ignored and underscores
// count as spaces. The first matching rule wins; a name that matches nothing
// becomes the series of episode "Folge 1".
func Parse(name string) Parsed {
	cleaned := Clean(name)

	if m := fullPattern.FindStringSubmatch(cleaned); m != nil {
		series := strings.TrimSpace(m[2])
		episode := "Folge " + strings.TrimSpace(m[5])
		return Parsed{
			Author:     strings.TrimSpace(m[1]),
			Series:     series,
			Category:   strings.ToLower(strings.TrimSpace(m[3])),
			Episode:    episode,
			SearchTerm: series + " " + episode,
			Pattern:    PatternFull,
		}
	}

	if m := seriesRestPattern.FindStringSubmatch(cleaned); m != nil {
		series := strings.TrimSpace(m[1])
		rest := strings.TrimSpace(m[2])
		episode := rest
		if n := numberedRestPattern.FindStringSubmatch(rest); n != nil {
			if title := strings.TrimSpace(n[2]); title != "" {
				episode = title
			} else {
				episode = "Folge " + n[1]
			}
		}
		return Parsed{
			Series:     series,
			Episode:    episode,
			SearchTerm: series + " " + rest,
			Pattern:    PatternSeriesRest,
		}
	}

	whole := strings.TrimSpace(cleaned)
	return Parsed{
		Series:     whole,
		Episode:    DefaultEpisode,
		SearchTerm: whole,
		Pattern:    PatternSeriesOnly,
	}
}

// Clean strips the directory and .taf extension from name and turns
// underscores into spaces.
func Clean(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".taf") {
		base = base[:len(base)-len(ext)]
	}
	return strings.ReplaceAll(base, "_", " ")
}

// NormalizeSeriesName removes a leading "Disney -" publisher prefix and the
// category words Hörspiel, Hoerspiel, Audiobook and Audio Book.
func NormalizeSeriesName(series string) string {
	normalized := strings.TrimSpace(series)
	normalized = publisherPrefix.ReplaceAllString(normalized, "")
	normalized = categoryWords.ReplaceAllString(normalized, "")
	return strings.TrimSpace(normalized)
}

// ExtractSearchTerms returns cover search queries for p, most specific first,
// without duplicates.
func ExtractSearchTerms(p Parsed) []string {
	terms := make([]string, 0, 7)
	if p.Series != "" && p.Episode != "" {
		terms = append(terms,
			p.Series+" "+p.Episode+" hörbuch cover",
			p.Series+" "+p.Episode+" audiobook cover",
		)
	}
	if p.Series != "" {
		terms = append(terms,
			p.Series+" hörbuch cover",
			p.Series+" audiobook cover",
			p.Series+" book cover",
		)
	}
	if p.Author != "" && p.Series != "" {
		terms = append(terms, p.Author+" "+p.Series+" cover")
	}
	if p.SearchTerm != "" {
		terms = append(terms, p.SearchTerm+" cover")
	}
	return strutil.UniqueSlice(terms)
}
