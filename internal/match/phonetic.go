package match

import (
	"strings"

	"github.com/gosimple/unidecode"
)

// phoneticKey reduces a string to a rough sound signature: ASCII fold,
// drop non-letters, strip vowels except in leading position, collapse
// repeated consonants. Coarser than a metaphone code but enough to
// rescue transliterated names the edit-distance path misses.
func phoneticKey(s string) string {
	s = strings.ToLower(unidecode.Unidecode(s))

	var b strings.Builder
	var prev rune
	first := true
	for _, r := range s {
		if r < 'a' || r > 'z' {
			if r == ' ' {
				first = true
				prev = 0
			}
			continue
		}
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !first {
			continue
		}
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
		first = false
	}
	return b.String()
}

// PhoneticSimilarity scores two strings 0-100 on their phonetic keys.
func PhoneticSimilarity(a, b string) float64 {
	return Similarity(phoneticKey(a), phoneticKey(b))
}
