package extract

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tmkontra/syncify/internal/models"
)

// playlistExtensions are the recognized playlist file types.
var playlistExtensions = map[string]bool{
	".m3u": true, ".m3u8": true, ".pls": true, ".txt": true,
}

// skipDirs are directory names never descended into during discovery.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true,
	".venv": true, "venv": true,
}

var (
	plsFileRe  = regexp.MustCompile(`^File(\d+)=(.+)$`)
	plsTitleRe = regexp.MustCompile(`^Title(\d+)=(.+)$`)
)

// ParseM3U reads an m3u/m3u8 playlist. EXTINF metadata takes priority
// over path extraction when both are present.
func ParseM3U(path string) ([]models.LocalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer file.Close()

	var entries []models.LocalEntry
	var pendingInfo string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, "#EXTINF:") {
				pendingInfo = line
			}
			continue
		}

		entry := Extract(line)
		if pendingInfo != "" {
			applyExtinf(pendingInfo, &entry)
			pendingInfo = ""
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return entries, nil
}

// applyExtinf overrides path-derived fields with the EXTINF display
// text, format "#EXTINF:duration,Artist - Title".
func applyExtinf(line string, entry *models.LocalEntry) {
	_, info, found := strings.Cut(line, ",")
	if !found {
		return
	}
	info = strings.TrimSpace(info)
	if info == "" {
		return
	}
	if artist, title, ok := strings.Cut(info, " - "); ok {
		entry.Artist = CleanField(artist)
		entry.Title = CleanField(title)
	} else {
		entry.Title = CleanField(info)
	}
}

// ParsePLS reads a pls playlist, pairing FileN entries with their
// TitleN metadata.
func ParsePLS(path string) ([]models.LocalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer file.Close()

	files := make(map[int]string)
	titles := make(map[int]string)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := plsFileRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				files[n] = m[2]
			}
			continue
		}
		if m := plsTitleRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				titles[n] = m[2]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	indexes := make([]int, 0, len(files))
	for n := range files {
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)

	entries := make([]models.LocalEntry, 0, len(indexes))
	for _, n := range indexes {
		entry := Extract(files[n])
		if title, ok := titles[n]; ok {
			if artist, trackTitle, found := strings.Cut(title, " - "); found {
				entry.Artist = CleanField(artist)
				entry.Title = CleanField(trackTitle)
			} else {
				entry.Title = CleanField(title)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ParseText reads a plain-text playlist of one track reference per
// line.
func ParseText(path string) ([]models.LocalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer file.Close()

	var entries []models.LocalEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, Extract(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	return entries, nil
}

// IsTextPlaylist samples the first lines of a file and reports whether
// they look like track references. The bar is 60% of non-empty lines.
func IsTextPlaylist(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	var total, trackLike int
	scanner := bufio.NewScanner(file)
	for total < 10 && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		total++
		if looksLikeTrackLine(line) {
			trackLike++
		}
	}
	if total < 2 {
		return false
	}
	return float64(trackLike) >= float64(total)*0.6
}

func looksLikeTrackLine(line string) bool {
	for _, sep := range []string{" - ", " – ", " — ", ": ", " :: ", "\t"} {
		if strings.Contains(line, sep) {
			return true
		}
	}
	return len(strings.Fields(line)) >= 2
}

// FindPlaylistFiles walks a directory tree and returns every playlist
// file, sorted. Files with a .txt extension only count when their
// content passes the text-playlist heuristic.
func FindPlaylistFiles(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if skipDirs[name] || (strings.HasPrefix(name, ".") && path != dir) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !playlistExtensions[ext] {
			return nil
		}
		if ext == ".txt" && !IsTextPlaylist(path) {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(found)
	return found, nil
}

// ParsePlaylistFile dispatches on the file extension.
func ParsePlaylistFile(path string) ([]models.LocalEntry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".m3u8":
		return ParseM3U(path)
	case ".pls":
		return ParsePLS(path)
	default:
		return ParseText(path)
	}
}
