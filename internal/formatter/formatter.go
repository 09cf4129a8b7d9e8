// package formatter renders run reports and review prompts for the CLI
package formatter

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tmkontra/syncify/internal/cache"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/tasks"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// RenderRunReport renders the summary of one playlist run.
func RenderRunReport(report *tasks.RunReport) string {
	var buf bytes.Buffer

	buf.WriteString(titleStyle.Render(report.Playlist) + "\n")
	if report.SyncSkipped {
		buf.WriteString(dimStyle.Render("unchanged since last sync, skipped") + "\n")
		return buf.String()
	}

	buf.WriteString(fmt.Sprintf("  %s %d/%d resolved\n",
		okStyle.Render("✓"), report.Resolved, report.Total))
	if report.Unresolved > 0 {
		buf.WriteString(fmt.Sprintf("  %s %d unresolved\n",
			errStyle.Render("✗"), report.Unresolved))
	}
	if report.Ambiguous > 0 {
		buf.WriteString(warnStyle.Render(
			fmt.Sprintf("  ? %d ambiguous, needing review", report.Ambiguous)) + "\n")
	}
	buf.WriteString(fmt.Sprintf("  %d added, %d removed\n", report.Added, report.Removed))
	if report.AddFailed > 0 || report.RemoveFailed > 0 {
		buf.WriteString(errStyle.Render(
			fmt.Sprintf("  %d adds failed, %d removes failed", report.AddFailed, report.RemoveFailed)) + "\n")
	}
	if report.CacheHits > 0 {
		buf.WriteString(dimStyle.Render(
			fmt.Sprintf("  %d served from cache", report.CacheHits)) + "\n")
	}

	if len(report.SimilarNames) > 0 {
		buf.WriteString(warnStyle.Render("  similarly named playlists need confirmation:") + "\n")
		for _, name := range report.SimilarNames {
			buf.WriteString(fmt.Sprintf("    - %s\n", name))
		}
	}
	if len(report.Unmatched) > 0 {
		buf.WriteString("  unmatched:\n")
		for _, entry := range report.Unmatched {
			buf.WriteString(fmt.Sprintf("    - %s\n", entry.DisplayName()))
		}
	}
	return buf.String()
}

// RenderRunReports renders a directory run: per-playlist summaries plus
// aggregate totals.
func RenderRunReports(reports []*tasks.RunReport) string {
	var buf bytes.Buffer
	var resolved, unresolved, added, removed, skipped int

	for _, report := range reports {
		buf.WriteString(RenderRunReport(report))
		buf.WriteString("\n")
		resolved += report.Resolved
		unresolved += report.Unresolved
		added += report.Added
		removed += report.Removed
		if report.SyncSkipped {
			skipped++
		}
	}

	buf.WriteString(titleStyle.Render(fmt.Sprintf("%d playlists", len(reports))) + "\n")
	buf.WriteString(fmt.Sprintf("  %d resolved, %d unresolved, %d added, %d removed",
		resolved, unresolved, added, removed))
	if skipped > 0 {
		buf.WriteString(dimStyle.Render(fmt.Sprintf(", %d unchanged", skipped)))
	}
	buf.WriteString("\n")
	return buf.String()
}

// RenderMissingReport renders a read-only playlist audit.
func RenderMissingReport(report *tasks.MissingReport) string {
	var buf bytes.Buffer

	buf.WriteString(titleStyle.Render(report.Playlist) + "\n")
	buf.WriteString(fmt.Sprintf("  remote: %s (%s)\n", report.RemoteName, report.RemoteID))
	buf.WriteString(fmt.Sprintf("  %d missing remotely, %d extra remotely, %d unresolved\n",
		len(report.Missing), len(report.Extras), len(report.Unresolved)))

	if len(report.Missing) > 0 {
		buf.WriteString("  missing from remote:\n")
		for _, uri := range report.Missing {
			buf.WriteString(fmt.Sprintf("    - %s\n", uri))
		}
	}
	if len(report.Extras) > 0 {
		buf.WriteString("  extra in remote:\n")
		for _, uri := range report.Extras {
			buf.WriteString(fmt.Sprintf("    - %s\n", uri))
		}
	}
	if len(report.Unresolved) > 0 {
		buf.WriteString("  unresolved locally:\n")
		for _, entry := range report.Unresolved {
			buf.WriteString(fmt.Sprintf("    - %s\n", entry.DisplayName()))
		}
	}
	return buf.String()
}

// RenderReview renders the candidate list of a pending review request.
func RenderReview(req *models.ReviewRequest) string {
	var buf bytes.Buffer

	buf.WriteString(titleStyle.Render(req.Entry.DisplayName()) + "\n")
	if len(req.Candidates) == 0 {
		buf.WriteString(dimStyle.Render("  no candidates") + "\n")
		return buf.String()
	}
	for i, c := range req.Candidates {
		line := fmt.Sprintf("  %d. %s - %s", i+1, c.Candidate.JoinedArtists(), c.Candidate.Title)
		if c.Candidate.Album != "" {
			line += fmt.Sprintf(" (%s)", c.Candidate.Album)
		}
		line += dimStyle.Render(fmt.Sprintf("  [%.0f]", c.Score))
		if c.RemixFallback {
			line += warnStyle.Render("  remix fallback")
		}
		buf.WriteString(line + "\n")
	}
	return buf.String()
}

// RenderCacheStats renders key/value cache statistics.
func RenderCacheStats(stats cache.Stats) string {
	return fmt.Sprintf("%s\n  %d entries, %d expired\n",
		titleStyle.Render("resolution cache"), stats.Entries, stats.Expired)
}
