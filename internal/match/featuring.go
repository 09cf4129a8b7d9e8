package match

import (
	"regexp"
	"strings"
)

// The unbracketed pattern captures its terminator so replacement can
// put a following bracketed clause back.
var featuringRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+[(\[](?:feat\.?|featuring|ft\.?)\s+([^)\]]+)[)\]]`),
	regexp.MustCompile(`(?i)\s+(?:feat\.?|featuring|ft\.?)\s+(.+?)(\s*[(\[]|$)`),
	regexp.MustCompile(`(?i)\s+[(\[](?:with|w/)\s+([^)\]]+)[)\]]`),
}

// SplitFeaturing separates a featuring clause from the main text.
// "Song (feat. Guest)" yields ("Song", "Guest"); text without a clause
// comes back unchanged with an empty featuring part.
func SplitFeaturing(text string) (main, featuring string) {
	for _, re := range featuringRes {
		if m := re.FindStringSubmatch(text); m != nil {
			featuring = strings.TrimSpace(m[1])
			main = strings.TrimSpace(re.ReplaceAllString(text, "$2"))
			return main, featuring
		}
	}
	return strings.TrimSpace(text), ""
}
