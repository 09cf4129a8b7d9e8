// Package extract turns free-text playlist lines and audio file paths
// into metadata triples, and parses m3u/pls/plain-text playlist files.
package extract

import (
	"regexp"
	"strings"

	"github.com/tmkontra/syncify/internal/models"
)

var (
	audioExtRe = regexp.MustCompile(`(?i)\.(mp3|flac|wav|m4a|ogg|wma|aac|opus|aif|aiff)$`)

	trackNumberRes = []*regexp.Regexp{
		regexp.MustCompile(`^\d+[\s.\-_)]+`),
		regexp.MustCompile(`^\[\d+\]\s*`),
		regexp.MustCompile(`(?i)^track\s*\d+[\s.\-_]*`),
	}

	// Bracketed technical metadata like "(320kbps)" or "[FLAC Rip]".
	techBracketRe = regexp.MustCompile(`(?i)[(\[][^)\]]*(?:kbps|khz|mp3|flac|wav|eac|cd\s*rip|cdrip|rip)[^)\]]*[)\]]`)

	remasterRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*[(\[]\s*(?:\d{4}\s+)?remaster(?:ed)?(?:\s+\d{4})?\s*[)\]]`),
		regexp.MustCompile(`(?i)\s*-\s*remaster(?:ed)?(?:\s+\d{4})?\s*$`),
		regexp.MustCompile(`(?i)\s*[(\[]\s*(?:anniversary|deluxe|expanded|special|collector'?s?)\s+edition\s*[)\]]`),
		regexp.MustCompile(`(?i)\s*[(\[]\s*\d+(?:th|st|nd|rd)\s+anniversary[^)\]]*[)\]]`),
	}

	compilationWords = []string{
		"anniversary", "hall of fame", "jukebox", "best of",
		"collection", "compilation", "greatest hits",
	}
)

// Extract parses one free-text line or file path into a LocalEntry.
// It never fails; fields it cannot determine stay empty.
func Extract(raw string) models.LocalEntry {
	entry := models.LocalEntry{Locator: raw, Raw: raw}

	normalized := strings.ReplaceAll(raw, `\`, "/")
	pathLike := strings.Contains(normalized, "/")

	name := normalized
	if pathLike {
		if idx := strings.LastIndex(normalized, "/"); idx >= 0 {
			name = normalized[idx+1:]
		}
	}
	name = audioExtRe.ReplaceAllString(name, "")
	name = normalizeUnderscores(name)
	name = stripTrackNumbers(name)

	parseSegments(name, &entry)

	if pathLike {
		inferFromPath(normalized, &entry)
	}

	entry.Artist = CleanField(entry.Artist)
	entry.Album = CleanField(entry.Album)
	entry.Title = CleanField(entry.Title)
	return entry
}

// CleanField strips bracketed technical metadata and remaster-type
// qualifiers, then collapses whitespace. The raw text stays on the
// entry for display.
func CleanField(s string) string {
	s = techBracketRe.ReplaceAllString(s, "")
	for _, re := range remasterRes {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

func stripTrackNumbers(s string) string {
	for _, re := range trackNumberRes {
		s = strings.TrimSpace(re.ReplaceAllString(s, ""))
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "- "))
	return s
}

// normalizeUnderscores rewrites underscore-delimited filenames so the
// separator rules apply: "__" and "_-_" become " - ", remaining single
// underscores become spaces.
func normalizeUnderscores(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	s = strings.ReplaceAll(s, "_-_", " - ")
	s = strings.ReplaceAll(s, "__", " - ")
	s = strings.ReplaceAll(s, "_", " ")
	return s
}

// parseSegments applies the separator rules to a cleaned filename or
// text line, filling artist/album/title on the entry.
func parseSegments(name string, entry *models.LocalEntry) {
	parts := splitDashes(name)

	if len(parts) < 2 {
		// Fall back to the secondary separators: colon and tab split
		// once; a lone string is all title.
		for _, sep := range []string{": ", ":", "\t"} {
			if left, right, found := strings.Cut(name, sep); found && left != "" && right != "" {
				entry.Artist = strings.TrimSpace(left)
				entry.Title = strings.TrimSpace(right)
				return
			}
		}
		entry.Title = strings.TrimSpace(name)
		return
	}

	if isVariousToken(parts[0]) {
		parseVarious(parts, entry)
		return
	}

	if len(parts) >= 3 {
		first, middle, last := parts[0], parts[1], parts[len(parts)-1]
		if len(parts) == 3 && isCompilationName(first) {
			// "Collection - Title - Artist" triples are reordered.
			entry.Album = first
			entry.Title = middle
			entry.Artist = last
			return
		}
		// Regular "Artist - Album - Title".
		entry.Artist = first
		entry.Album = middle
		entry.Title = last
		return
	}

	entry.Artist = parts[0]
	entry.Title = parts[1]
}

// parseVarious handles compilation entries whose first segment is a
// various-artists placeholder; the real artist usually hides in the
// remaining segments.
func parseVarious(parts []string, entry *models.LocalEntry) {
	rest := parts[1:]
	switch len(rest) {
	case 0:
		entry.Artist = "Various Artists"
	case 1:
		// "various artists - x" where x may still contain artist info.
		if artist, title, found := strings.Cut(rest[0], " - "); found {
			entry.Artist = strings.TrimSpace(artist)
			entry.Title = strings.TrimSpace(title)
			return
		}
		words := strings.Fields(rest[0])
		if len(words) >= 3 {
			entry.Artist = strings.Join(words[:2], " ")
			entry.Title = strings.Join(words[2:], " ")
		} else {
			entry.Artist = "Various Artists"
			entry.Title = rest[0]
		}
	case 2:
		// "various artists - artist - title"
		entry.Artist = rest[0]
		entry.Title = rest[1]
	default:
		// "Various - Album - ... - Artist Title": album is first, the
		// tail may embed the artist.
		entry.Album = rest[0]
		tail := rest[len(rest)-1]
		if artist, title, found := cutAny(tail, " - ", " by "); found {
			entry.Artist = artist
			entry.Title = title
			return
		}
		words := strings.Fields(tail)
		if len(words) >= 4 {
			entry.Artist = strings.Join(words[:2], " ")
			entry.Title = strings.Join(words[2:], " ")
		} else {
			entry.Artist = "Various Artists"
			entry.Title = tail
		}
	}
}

func cutAny(s string, seps ...string) (string, string, bool) {
	for _, sep := range seps {
		if left, right, found := strings.Cut(s, sep); found {
			return strings.TrimSpace(left), strings.TrimSpace(right), true
		}
	}
	return "", "", false
}

func isVariousToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "various", "various artists", "va", "v.a.":
		return true
	}
	return false
}

func isCompilationName(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range compilationWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return len(strings.Fields(s)) > 4
}

// splitDashes splits on dash separators (-, en dash, em dash) that sit
// outside parentheses and have adjacent whitespace, so titles like
// "(Re-Imagined)" stay intact.
func splitDashes(s string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	runes := []rune(s)

	flush := func() {
		if p := strings.TrimSpace(current.String()); p != "" {
			parts = append(parts, p)
		}
		current.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '(', '[':
			depth++
			current.WriteRune(r)
		case ')', ']':
			if depth > 0 {
				depth--
			}
			current.WriteRune(r)
		case '-', '–', '—':
			spaceBefore := i > 0 && runes[i-1] == ' '
			spaceAfter := i < len(runes)-1 && runes[i+1] == ' '
			if depth == 0 && (spaceBefore || spaceAfter) {
				flush()
				for i+1 < len(runes) && runes[i+1] == ' ' {
					i++
				}
			} else {
				current.WriteRune(r)
			}
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return parts
}

// inferFromPath fills artist and album from the directory structure.
// Filename-derived fields always win; only empty fields are filled.
func inferFromPath(path string, entry *models.LocalEntry) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		p = strings.TrimSpace(p)
		if p == "" || driveLetterRe.MatchString(p) {
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) < 2 {
		return
	}

	parent := parts[len(parts)-2]

	// A parent that itself starts with a track number is a disc
	// folder, not an album; look one level further up.
	if hasTrackNumberPrefix(parent) {
		if len(parts) >= 3 && !hasTrackNumberPrefix(parts[len(parts)-3]) {
			setIfEmpty(&entry.Album, parts[len(parts)-3])
		}
		return
	}

	// "Artist - Album" directory, or a directory that just repeats the
	// artist name.
	if entry.Artist != "" && strings.HasPrefix(strings.ToLower(parent), strings.ToLower(entry.Artist)) {
		if after, found := strings.CutPrefix(parent[len(entry.Artist):], " - "); found {
			setIfEmpty(&entry.Album, after)
		} else if len(parts) >= 3 && !hasTrackNumberPrefix(parts[len(parts)-3]) {
			setIfEmpty(&entry.Album, parts[len(parts)-3])
		}
		return
	}

	if artist, album, found := strings.Cut(parent, " - "); found {
		if entry.Artist == "" || strings.EqualFold(artist, entry.Artist) {
			setIfEmpty(&entry.Artist, artist)
			setIfEmpty(&entry.Album, album)
			return
		}
	}

	setIfEmpty(&entry.Album, parent)
	if len(parts) >= 3 {
		setIfEmpty(&entry.Artist, parts[len(parts)-3])
	}
}

var (
	driveLetterRe = regexp.MustCompile(`^[A-Za-z]:$`)
	trackDirRe    = regexp.MustCompile(`^\d+[\s.\-_]+`)
)

func hasTrackNumberPrefix(s string) bool {
	return trackDirRe.MatchString(s)
}

func setIfEmpty(field *string, value string) {
	if *field == "" {
		*field = strings.TrimSpace(value)
	}
}
