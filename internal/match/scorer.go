package match

import (
	"strings"

	"github.com/tmkontra/syncify/internal/models"
)

const phoneticRetryFloor = 70.0

var versionMarkers = []string{"live", "acoustic", "demo", "alternate"}

// Score rates a candidate against an entry on a 0-100 scale.
// Deterministic for fixed inputs.
func Score(entry models.LocalEntry, candidate models.Candidate) float64 {
	entryArtist, entryArtistFeat := SplitFeaturing(entry.Artist)
	entryTitle, entryTitleFeat := SplitFeaturing(entry.Title)
	candArtist, candArtistFeat := SplitFeaturing(candidate.JoinedArtists())
	candTitle, candTitleFeat := SplitFeaturing(candidate.Title)

	normEntryArtist := Normalize(entryArtist)
	normCandArtist := Normalize(candArtist)
	normEntryTitle := Normalize(StripRemasterTags(entryTitle))
	normCandTitle := Normalize(StripRemasterTags(candTitle))

	remixMismatch := HasRemixTag(entry.Title) != HasRemixTag(candidate.Title)
	versionMismatch := versionMarker(entry.Title) != versionMarker(candidate.Title)

	// Exact identity short-circuits to a perfect score.
	if normEntryArtist != "" && normEntryTitle != "" &&
		normEntryArtist == normCandArtist && normEntryTitle == normCandTitle &&
		!remixMismatch && !versionMismatch {
		return 100
	}

	artistScore := Similarity(normEntryArtist, normCandArtist)
	if artistScore < phoneticRetryFloor {
		if p := PhoneticSimilarity(entryArtist, candArtist); p > artistScore {
			artistScore = p
		}
	}
	titleScore := Similarity(normEntryTitle, normCandTitle)
	if titleScore < phoneticRetryFloor {
		if p := PhoneticSimilarity(entryTitle, candTitle); p > titleScore {
			titleScore = p
		}
	}

	var bonus float64
	if normEntryTitle != "" && normCandTitle != "" &&
		(strings.Contains(normCandTitle, normEntryTitle) || strings.Contains(normEntryTitle, normCandTitle)) {
		bonus += 35
	}
	if normEntryArtist != "" && normCandArtist != "" &&
		(strings.Contains(normCandArtist, normEntryArtist) || strings.Contains(normEntryArtist, normCandArtist)) {
		bonus += 30
	}

	entryFeat := joinFeat(entryArtistFeat, entryTitleFeat)
	candFeat := joinFeat(candArtistFeat, candTitleFeat)
	switch {
	case entryFeat != "" && candFeat != "":
		if Similarity(Normalize(entryFeat), Normalize(candFeat)) >= 70 {
			bonus += 20
		}
	case entryFeat != "" || candFeat != "":
		// Featuring info on one side only is common metadata drift,
		// not a mismatch.
		bonus += 10
	}
	if bonus > 100 {
		bonus = 100
	}

	var penalty float64
	if remixMismatch {
		penalty += 15
	}
	if versionMismatch {
		penalty += 10
	}
	if lengthDiffUnexplained(entry, candidate, entryFeat, candFeat) {
		penalty += 5
	}

	score := artistScore*0.4 + titleScore*0.5 + bonus*0.1 - penalty
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ValidateSwap checks whether a hit from the swapped query variant is a
// genuine reversed-metadata match: the entry's title must resemble the
// candidate's artist and vice versa.
func ValidateSwap(entry models.LocalEntry, candidate models.Candidate) bool {
	titleToArtist := Similarity(Normalize(entry.Title), Normalize(candidate.JoinedArtists()))
	artistToTitle := Similarity(Normalize(entry.Artist), Normalize(candidate.Title))
	return titleToArtist > 60 && artistToTitle > 60
}

// Better reports whether a should outrank b: weighted score first,
// then variant weight, then catalog popularity.
func Better(a, b models.MatchResult) bool {
	if a.Weighted() != b.Weighted() {
		return a.Weighted() > b.Weighted()
	}
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.Candidate.Popularity > b.Candidate.Popularity
}

func versionMarker(title string) string {
	lower := strings.ToLower(title)
	for _, m := range versionMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

func joinFeat(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// lengthDiffUnexplained flags a large title-length gap that featuring
// clauses or bracketed content cannot account for.
func lengthDiffUnexplained(entry models.LocalEntry, candidate models.Candidate, entryFeat, candFeat string) bool {
	if entryFeat != "" || candFeat != "" {
		return false
	}
	if strings.ContainsAny(entry.Title, "([") || strings.ContainsAny(candidate.Title, "([") {
		return false
	}
	a := Normalize(entry.Title)
	b := Normalize(candidate.Title)
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	return diff > 10
}
