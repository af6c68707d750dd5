package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto is the sentinel hint that requests full auto-detection.
const Auto = "auto"

// DefaultTarget is the translation target used when callers omit one.
const DefaultTarget = "en"

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms and legacy aliases
	offered bool     // listed in Supported
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}, true},
	{"ru", "rus", "", "Russian", []string{"russian"}, true},
	// "kz" is the country code; older clients send it for Kazakh.
	{"kk", "kaz", "", "Kazakh", []string{"kazakh", "kz"}, true},
	{"es", "spa", "", "Spanish", []string{"spanish"}, true},
	{"fr", "fra", "fre", "French", []string{"french"}, true},
	{"de", "deu", "ger", "German", []string{"german"}, true},
	{"it", "ita", "", "Italian", []string{"italian"}, true},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}, true},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}, true},
	{"ko", "kor", "", "Korean", []string{"korean"}, true},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}, false},
	{"ar", "ara", "", "Arabic", []string{"arabic"}, false},
	{"hi", "hin", "", "Hindi", []string{"hindi"}, false},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}, false},
	{"pl", "pol", "", "Polish", []string{"polish"}, false},
	{"sv", "swe", "", "Swedish", []string{"swedish"}, false},
	{"uk", "ukr", "", "Ukrainian", []string{"ukrainian"}, false},
	{"tr", "tur", "", "Turkish", []string{"turkish"}, false},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
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

// Option describes a language offered to clients.
type Option struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Supported returns the languages offered in client pickers, in display order.
func Supported() []Option {
	out := make([]Option, 0, len(languages))
	for _, e := range languages {
		if e.offered {
			out = append(out, Option{Code: e.code2, Name: e.display})
		}
	}
	return out
}

// IsAuto reports whether hints request auto-detection: an empty list or any
// entry equal to "auto".
func IsAuto(hints []string) bool {
	if len(hints) == 0 {
		return true
	}
	for _, h := range hints {
		if strings.EqualFold(strings.TrimSpace(h), Auto) {
			return true
		}
	}
	return false
}

// Canonical converts a code, region-qualified code, or language word to its
// lowercase ISO 639-1 form where one exists. Regions are preserved as
// "pt-br". Unknown but well-formed BCP 47 tags pass through in canonical
// form; malformed input returns "".
func Canonical(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == Auto {
		return code
	}
	base, region, hasRegion := splitRegion(code)
	if e := lookup(base); e != nil {
		if hasRegion {
			return e.code2 + "-" + region
		}
		return e.code2
	}
	tag, err := xlanguage.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return ""
	}
	return strings.ToLower(tag.String())
}

func splitRegion(code string) (string, string, bool) {
	for _, sep := range []string{":", "-", "_"} {
		if idx := strings.Index(code, sep); idx > 0 && idx < len(code)-1 {
			return code[:idx], code[idx+1:], true
		}
	}
	return code, "", false
}

// NormalizeHints deduplicates and canonicalizes a hint list. Lists that
// request auto-detection collapse to ["auto"]; entries that cannot be
// parsed are dropped, and a list left empty also becomes ["auto"].
func NormalizeHints(hints []string) []string {
	if IsAuto(hints) {
		return []string{Auto}
	}
	normalized := make([]string, 0, len(hints))
	seen := make(map[string]struct{}, len(hints))
	for _, hint := range hints {
		code := Canonical(hint)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	if len(normalized) == 0 {
		return []string{Auto}
	}
	return normalized
}

// NormalizeTarget canonicalizes a translation target, defaulting to English.
func NormalizeTarget(target string) string {
	if code := Canonical(target); code != "" && code != Auto {
		return code
	}
	return DefaultTarget
}

// ToISO2 converts any recognized language code or word to ISO 639-1.
// Unknown 2-letter codes pass through; anything else returns "".
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

// DisplayName returns a human-readable English name for a code. The curated
// table wins; otherwise x/text supplies the name. Unrecognized input is
// returned uppercased, and empty input yields "Unknown".
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	base, _, _ := splitRegion(strings.ToLower(trimmed))
	if e := lookup(base); e != nil {
		return e.display
	}
	if tag, err := xlanguage.Parse(base); err == nil {
		if name := display.English.Tags().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}
