package tags

import (
	"regexp"
	"strings"
)

// TaggedText is text annotated with [[CODE]] markers.
type TaggedText = string

// Well-known codes produced by the mapper.
const (
	CodeUnknown   = "UNK"
	CodeAmbiguous = "AMB"
	CodeDefault   = "EN"
)

// tagPattern matches [[CODE]] where CODE is 2-3 letters with an optional
// :qualifier. The qualifier admits "/" so [[AMB:en/fr]] is recognised.
var tagPattern = regexp.MustCompile(`\[\[([A-Za-z]{2,3}(?::[A-Za-z0-9_/-]+)?)\]\]`)

// Segment is one run of text and the tag that precedes it.
type Segment struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Parse returns the uppercased codes found in text in first-occurrence order
// without duplicates. It returns an empty, non-nil slice when no tags exist.
func Parse(text string) []string {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	codes := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		code := strings.ToUpper(match[1])
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// Standardize rewrites every tag code to uppercase and leaves all other
// characters untouched.
func Standardize(text string) string {
	return tagPattern.ReplaceAllStringFunc(text, func(tag string) string {
		return strings.ToUpper(tag)
	})
}

// Strip removes every tag and trims surrounding whitespace.
func Strip(text string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))
}

// HasContent reports whether text holds anything besides tags and whitespace.
func HasContent(text string) bool {
	return Strip(text) != ""
}

// HasTags reports whether text contains at least one tag.
func HasTags(text string) bool {
	return tagPattern.MatchString(text)
}

// Wrap prefixes text with a single [[CODE]] tag.
func Wrap(code, text string) string {
	return "[[" + strings.ToUpper(strings.TrimSpace(code)) + "]]" + text
}

// Segments splits text into tagged runs. Text before the first tag is
// returned with an empty Tag; tags followed by no text yield empty segments,
// which callers treat as carrying no content.
func Segments(text string) []Segment {
	locs := tagPattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		if text == "" {
			return nil
		}
		return []Segment{{Text: text}}
	}
	segments := make([]Segment, 0, len(locs)+1)
	if locs[0][0] > 0 {
		segments = append(segments, Segment{Text: text[:locs[0][0]]})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segments = append(segments, Segment{
			Tag:  strings.ToUpper(text[loc[2]:loc[3]]),
			Text: text[loc[1]:end],
		})
	}
	return segments
}

// Language returns the base language of a code: "PT:BR" yields "PT". UNK
// and AMB codes are returned as-is without their qualifier.
func Language(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if idx := strings.IndexByte(code, ':'); idx >= 0 {
		return code[:idx]
	}
	return code
}
