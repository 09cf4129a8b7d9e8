// Package match implements track-identity matching: text normalization,
// search-query planning, and candidate scoring.
package match

import (
	"regexp"
	"strings"

	"github.com/gosimple/unidecode"
)

// canonicalSubs maps common token variants to one canonical form.
// Keys are punctuation-free because substitution runs after the
// punctuation strip; outputs never match a key, which keeps
// normalization idempotent.
var canonicalSubs = map[string]string{
	"feat": "featuring",
	"ft":   "featuring",
	"vs":   "versus",
	"pt":   "part",
	"vol":  "volume",
	"no":   "number",
}

// fillerWords are dropped entirely after substitution. "featuring" and
// "and" are listed so the substituted forms are removed too, keeping
// normalization idempotent.
var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true,
	"feat": true, "featuring": true, "ft": true, "with": true,
}

var (
	punctRe      = regexp.MustCompile(`[^\w\s-]`)
	looseDashRe  = regexp.MustCompile(`\s+-\s+`)
	multiSpaceRe = regexp.MustCompile(`\s+`)

	remasterTagRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*[(\[][^)\]]*(?:remaster|anniversary|deluxe|expanded|edition)[^)\]]*[)\]]`),
		regexp.MustCompile(`(?i)\s*-\s*(?:remaster|anniversary|deluxe|expanded)(?:ed)?\b.*$`),
	}

	remixTagRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*[(\[][^)\]]*remix[^)\]]*[)\]]`),
		regexp.MustCompile(`(?i)\s*-\s*[^-]*\bremix\b.*$`),
	}
)

// Normalize folds accents, lowercases, applies canonical substitutions,
// strips punctuation (keeping in-word hyphens), and drops filler words.
// Idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")

	s = punctRe.ReplaceAllString(s, "")
	s = looseDashRe.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		// Hyphens survive inside a word but not at its edges, so a word
		// exposed by filler removal never starts a pass with a dash.
		w = strings.Trim(w, "-")
		if w == "" {
			continue
		}
		if sub, ok := canonicalSubs[w]; ok {
			w = sub
		}
		if fillerWords[w] {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// StripRemasterTags removes remaster/edition qualifiers from a title
// while leaving remix tags in place; remix identity matters for
// scoring.
func StripRemasterTags(title string) string {
	for _, re := range remasterTagRes {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(title, " "))
}

// StripRemixTags removes remix qualifiers from a title. Used by the
// resolver's last-resort fallback, which retries a failed remix lookup
// against the base recording.
func StripRemixTags(title string) string {
	for _, re := range remixTagRes {
		title = re.ReplaceAllString(title, "")
	}
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(title, " "))
}

// HasRemixTag reports whether a title names a remix.
func HasRemixTag(title string) bool {
	return strings.Contains(strings.ToLower(title), "remix")
}
