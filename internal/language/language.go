package language

import "strings"

type entry struct {
	code2  string   // ISO 639-1 (2-letter)
	code3  string   // ISO 639-2 primary (3-letter)
	alt3   string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	region string   // region assumed when none is given
	words  []string // full word forms, English and German
}

var languages = []entry{
	{"de", "deu", "ger", "de", []string{"german", "deutsch"}},
	{"en", "eng", "", "us", []string{"english", "englisch"}},
	{"fr", "fra", "fre", "fr", []string{"french", "französisch", "francais", "français"}},
	{"es", "spa", "", "es", []string{"spanish", "spanisch"}},
	{"it", "ita", "", "it", []string{"italian", "italienisch"}},
	{"nl", "nld", "dut", "nl", []string{"dutch", "niederländisch"}},
	{"pl", "pol", "", "pl", []string{"polish", "polnisch"}},
	{"da", "dan", "", "dk", []string{"danish", "dänisch"}},
	{"sv", "swe", "", "se", []string{"swedish", "schwedisch"}},
	{"no", "nor", "", "no", []string{"norwegian", "norwegisch"}},
	{"fi", "fin", "", "fi", []string{"finnish", "finnisch"}},
	{"tr", "tur", "", "tr", []string{"turkish", "türkisch"}},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages)*2)
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input.
// If the input is already a 2-letter code (even if unknown), it passes through.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// CatalogTag returns value as a lowercase language-region tag. A bare
// language gets its usual region ("de" and "German" become "de-de"), an
// explicit region is kept ("EN_GB" becomes "en-gb"). Empty input yields
// fallback; unrecognized input is returned lowercased.
func CatalogTag(value, fallback string) string {
	tag := strings.ToLower(strings.TrimSpace(value))
	tag = strings.ReplaceAll(tag, "_", "-")
	if tag == "" {
		return fallback
	}

	primary, region, hasRegion := strings.Cut(tag, "-")
	code := ToISO2(primary)
	if code == "" {
		return tag
	}
	if hasRegion && region != "" {
		return code + "-" + region
	}
	if e := byCode2[code]; e != nil {
		return code + "-" + e.region
	}
	return code + "-" + code
}
