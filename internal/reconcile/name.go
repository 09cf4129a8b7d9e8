package reconcile

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tmkontra/syncify/internal/match"
)

// MatchKind classifies how a remote playlist name relates to a local
// playlist name.
type MatchKind int

const (
	// MatchNone means the names are unrelated.
	MatchNone MatchKind = iota
	// MatchExact is a literal string match.
	MatchExact
	// MatchSuffix matches after stripping playlist file extensions.
	MatchSuffix
	// MatchSimilar is a fuzzy name match. Surfaced for confirmation,
	// never acted on automatically.
	MatchSimilar
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchSuffix:
		return "suffix"
	case MatchSimilar:
		return "similar"
	default:
		return "none"
	}
}

// NameMatchConfig holds the fuzzy name-matching thresholds. The
// trailing-digit guard exists because short names that differ only in a
// trailing number ("List1" vs "List4") score high on similarity while
// almost always naming different playlists.
type NameMatchConfig struct {
	// SimilarFloor is the similarity (0-100) at which two names count
	// as a similar match.
	SimilarFloor float64
	// DigitGuardFloor replaces SimilarFloor when both names are a
	// short shared base plus different trailing digits.
	DigitGuardFloor float64
	// ShortBaseLen is the base length at or under which the digit
	// guard applies.
	ShortBaseLen int
}

// DefaultNameMatchConfig returns the stock thresholds.
func DefaultNameMatchConfig() NameMatchConfig {
	return NameMatchConfig{
		SimilarFloor:    80,
		DigitGuardFloor: 95,
		ShortBaseLen:    6,
	}
}

// playlistSuffixes are file extensions stripped before suffix matching.
var playlistSuffixes = []string{".m3u8", ".m3u", ".pls", ".txt"}

var trailingDigitsRe = regexp.MustCompile(`^(.*?)(\d+)$`)

// CleanLocalName reduces a playlist path or file name to the display
// name a remote playlist should carry.
func CleanLocalName(name string) string {
	name = filepath.Base(name)
	lower := strings.ToLower(name)
	for _, suffix := range playlistSuffixes {
		if strings.HasSuffix(lower, suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return strings.TrimSpace(name)
}

// MatchName classifies a remote playlist name against a local one.
func MatchName(local, remote string, cfg NameMatchConfig) MatchKind {
	if local == remote {
		return MatchExact
	}
	cleanLocal := CleanLocalName(local)
	cleanRemote := CleanLocalName(remote)
	if cleanLocal == cleanRemote {
		return MatchSuffix
	}

	floor := cfg.SimilarFloor
	if digitGuardApplies(cleanLocal, cleanRemote, cfg.ShortBaseLen) {
		floor = cfg.DigitGuardFloor
	}
	if match.Similarity(match.Normalize(cleanLocal), match.Normalize(cleanRemote)) >= floor {
		return MatchSimilar
	}
	return MatchNone
}

// digitGuardApplies reports whether two names are the same short base
// followed by different trailing digits.
func digitGuardApplies(a, b string, shortBaseLen int) bool {
	ma := trailingDigitsRe.FindStringSubmatch(a)
	mb := trailingDigitsRe.FindStringSubmatch(b)
	if ma == nil || mb == nil {
		return false
	}
	baseA := strings.TrimSpace(ma[1])
	baseB := strings.TrimSpace(mb[1])
	if !strings.EqualFold(baseA, baseB) {
		return false
	}
	if len(baseA) > shortBaseLen {
		return false
	}
	return ma[2] != mb[2]
}
