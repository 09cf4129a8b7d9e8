package tasks

import (
	"fmt"

	"github.com/tmkontra/syncify/internal/models"
)

// ProgressUpdate represents a progress event during a long-running
// operation, sent to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase
	Step    int
	Total   int
	Message string
	Data    any // optional phase-specific payload
}

// Operation phase enumeration
type Phase int

const (
	ScanPlaylist Phase = iota
	ResolveTracks
	ReconcileTracks
	AuditTracks
	Complete
)

func (p Phase) String() string {
	switch p {
	case ScanPlaylist:
		return "scan_playlist"
	case ResolveTracks:
		return "resolve_tracks"
	case ReconcileTracks:
		return "reconcile_tracks"
	case AuditTracks:
		return "audit_tracks"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func scanUpdate(path string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d tracks in %s", count, path),
	}
}

func syncSkippedUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Unchanged since last sync, skipping: %s", path),
	}
}

func resolveUpdate(step, total int, entry models.LocalEntry) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, entry.DisplayName()),
	}
}

func reconcileUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcileTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Reconciling playlist: %s", name),
	}
}

func auditUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AuditTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Auditing playlist: %s", name),
	}
}

func completedUpdate(report *RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase: Complete,
		Step:  1,
		Total: 1,
		Message: fmt.Sprintf("%s: %d resolved, %d unresolved, %d added, %d removed",
			report.Playlist, report.Resolved, report.Unresolved, report.Added, report.Removed),
		Data: report,
	}
}
