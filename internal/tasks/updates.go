package tasks

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	ScanFiles Phase = iota
	ReadingTags
	StoreTracks
)

func (p Phase) String() string {
	switch p {
	case ScanFiles:
		return "scan_files"
	case ReadingTags:
		return "read_tags"
	case StoreTracks:
		return "store_tracks"
	default:
		return ""
	}
}

func scanStartedUpdate(root string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanFiles,
		Message: fmt.Sprintf("Scanning %s for audio files...", root),
	}
}

func scanCompletedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanFiles,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Found %s audio files", humanize.Comma(int64(total))),
	}
}

func trackStoredUpdate(step, total int, path string, created bool) ProgressUpdate {
	verb := "updated"
	if created {
		verb = "added"
	}
	return ProgressUpdate{
		Phase:   StoreTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, verb, filepath.Base(path)),
	}
}

func trackSkippedUpdate(step, total int, path string, reason error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadingTags,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] skipped %s: %v", step, total, filepath.Base(path), reason),
	}
}
