package match

import (
	"fmt"
	"strings"

	"github.com/tmkontra/syncify/internal/models"
)

// EarlyStopScore is the weighted score at which later query variants
// stop being worth running. An optimization, not a correctness rule.
const EarlyStopScore = 95.0

// MaxVariants caps the plan length.
const MaxVariants = 9

// QueryVariant is one catalog search query with the weight multiplier
// applied to its candidates' scores during cross-variant ranking.
type QueryVariant struct {
	Query string
	// Weight ranges 1.5 (most specific) down to 0.9 (swapped fields).
	Weight float64
	// Swapped marks the reversed artist/title variant; its hits need
	// swap validation before they count.
	Swapped bool
}

// Plan derives an ordered list of weighted search queries for one
// entry, most specific first.
func Plan(entry models.LocalEntry) []QueryVariant {
	artist := strings.TrimSpace(entry.Artist)
	title := strings.TrimSpace(entry.Title)
	album := strings.TrimSpace(entry.Album)

	var plan []QueryVariant
	add := func(weight float64, format string, args ...any) {
		if len(plan) >= MaxVariants {
			return
		}
		q := fmt.Sprintf(format, args...)
		for _, existing := range plan {
			if existing.Query == q {
				return
			}
		}
		plan = append(plan, QueryVariant{Query: q, Weight: weight})
	}

	if entry.IsVariousArtists() {
		// Compilations: the placeholder artist is useless, lean on
		// album and title.
		if album != "" && title != "" {
			add(1.5, `album:"%s" track:"%s"`, album, title)
		}
		if title != "" {
			add(1.2, `"%s"`, title)
			if clean := StripRemasterTags(title); clean != title {
				add(1.0, `"%s"`, clean)
			}
		}
		return plan
	}

	if artist != "" && album != "" && title != "" {
		add(1.5, `artist:"%s" album:"%s" track:"%s"`, artist, album, title)
	}
	if album != "" && title != "" {
		add(1.4, `album:"%s" track:"%s"`, album, title)
	}
	if artist != "" && title != "" {
		add(1.3, `artist:"%s" track:"%s"`, artist, title)
		add(1.2, `"%s" "%s"`, artist, title)
		add(1.1, `%s %s`, artist, title)
	}
	if title != "" {
		add(1.0, `"%s"`, title)
		if clean := StripRemasterTags(title); clean != title && artist != "" {
			add(1.0, `artist:"%s" track:"%s"`, artist, clean)
		}
	}
	if artist != "" && title != "" && strings.Contains(artist, " ") {
		add(0.95, `artist:"%s" track:"%s"`, strings.ReplaceAll(artist, " ", ""), title)
	}
	// Swapped metadata variant. Suppressed when the artist field holds
	// an embedded " - " because those entries already went through a
	// separator split and a swap would compound the damage.
	if artist != "" && title != "" && !strings.Contains(artist, " - ") && len(plan) < MaxVariants {
		plan = append(plan, QueryVariant{
			Query:   fmt.Sprintf(`artist:"%s" track:"%s"`, title, artist),
			Weight:  0.9,
			Swapped: true,
		})
	}
	return plan
}
