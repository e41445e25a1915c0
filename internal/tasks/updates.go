package tasks

import (
	"fmt"

	"github.com/desertthunder/shelfreq/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	OpenRun Phase = iota
	FetchCatalog
	CheckRequests
	Commit
	CloseRun
)

func (p Phase) String() string {
	switch p {
	case OpenRun:
		return "open_run"
	case FetchCatalog:
		return "fetch_catalog"
	case CheckRequests:
		return "check_requests"
	case Commit:
		return "commit"
	case CloseRun:
		return "close_run"
	default:
		return ""
	}
}

func openRunUpdate(run *models.SyncRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   OpenRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sync run #%d started (%s)", run.Sequence, run.Trigger),
		Data:    run,
	}
}

func fetchCatalogUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCatalog,
		Step:    0,
		Total:   1,
		Message: "Fetching catalog...",
	}
}

func catalogFetchedUpdate(items int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCatalog,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched %d catalog items", items),
	}
}

func checkRequestUpdate(step, total int, req *models.Request) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckRequests,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, req.Title),
	}
}

func matchedRequestUpdate(step, total int, req *models.Request) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckRequests,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, req.Title, *req.MatchedTitle),
		Data:    req,
	}
}

func commitUpdate(changes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Commit,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saving %d request updates...", changes),
	}
}

func completedUpdate(run *models.SyncRun) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CloseRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sync completed: %d checked, %d matched", run.RequestsChecked, run.MatchesFound),
		Data:    run,
	}
}

func failedUpdate(run *models.SyncRun, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CloseRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✗ Sync failed: %v", err),
		Data:    run,
	}
}
