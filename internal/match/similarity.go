package match

import (
	"github.com/agnivade/levenshtein"
	"github.com/hbollon/go-edlib"
)

// Similarity scores two strings 0-100, taking the better of a
// normalized edit-distance ratio and Jaro-Winkler. Jaro-Winkler favors
// shared prefixes, which suits artist names with typos; plain edit
// distance handles short titles better.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := levenshtein.ComputeDistance(a, b)
	ratio := (1 - float64(dist)/float64(longest)) * 100
	if ratio < 0 {
		ratio = 0
	}

	jw := float64(edlib.JaroWinklerSimilarity(a, b)) * 100

	if jw > ratio {
		return jw
	}
	return ratio
}
