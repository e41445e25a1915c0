package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

func sampleRuns() []*models.SyncRun {
	started := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	failedAt := started.Add(-6*time.Hour + 200*time.Millisecond)
	actor := "manager-1"
	message := "catalog unavailable: status 502"

	return []*models.SyncRun{
		{
			ID: "run-2", Sequence: 2, Status: models.RunCompleted, Trigger: models.TriggerManual, ActorID: &actor,
			StartedAt: started, FinishedAt: &finished, RequestsChecked: 4, MatchesFound: 1, MatchedRequestIDs: []string{"req-9"},
		},
		{
			ID: "run-1", Sequence: 1, Status: models.RunFailed, Trigger: models.TriggerScheduled,
			StartedAt: started.Add(-6 * time.Hour), FinishedAt: &failedAt, Error: &message, MatchedRequestIDs: []string{},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("HistoryToCSV", func(t *testing.T) {
		data, err := HistoryToCSV(sampleRuns())
		if err != nil {
			t.Fatalf("HistoryToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "ID,Sequence,Status,Trigger,Actor,StartedAt,FinishedAt,RequestsChecked,MatchesFound,Error" {
			t.Errorf("unexpected CSV header: %s", lines[0])
		}
		if !strings.Contains(lines[1], "run-2,2,completed,manual,manager-1,2025-03-01T06:00:00.000000000Z") {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.HasSuffix(lines[2], "catalog unavailable: status 502") {
			t.Errorf("expected error message in failed row: %s", lines[2])
		}
	})

	t.Run("HistoryToCSV empty", func(t *testing.T) {
		data, err := HistoryToCSV(nil)
		if err != nil {
			t.Fatalf("HistoryToCSV failed: %v", err)
		}
		if strings.Count(string(data), "\n") != 1 {
			t.Errorf("expected only a header, got %q", data)
		}
	})

	t.Run("HistoryToMarkdown", func(t *testing.T) {
		page := &models.RunPage{Runs: sampleRuns(), Page: 1, PerPage: 20, Total: 2}
		data, err := HistoryToMarkdown(page)
		if err != nil {
			t.Fatalf("HistoryToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"# Sync history", "**Runs**: 2", "**Page**: 1 of 1", "| # | Status |", "| 2 | completed | manual | manager-1 |"} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("HistoryToMarkdown empty", func(t *testing.T) {
		data, err := HistoryToMarkdown(&models.RunPage{Page: 1, PerPage: 20})
		if err != nil {
			t.Fatalf("HistoryToMarkdown failed: %v", err)
		}
		if !strings.Contains(string(data), "No sync runs recorded") {
			t.Errorf("expected empty notice, got %s", data)
		}
	})

	t.Run("HistoryToMarkdown escapes pipes", func(t *testing.T) {
		runs := sampleRuns()
		msg := "bad | response"
		runs[1].Error = &msg
		data, err := HistoryToMarkdown(&models.RunPage{Runs: runs, Page: 1, PerPage: 20, Total: 2})
		if err != nil {
			t.Fatalf("HistoryToMarkdown failed: %v", err)
		}
		if !strings.Contains(string(data), `bad \| response`) {
			t.Errorf("expected escaped pipe, got %s", data)
		}
	})
}

func TestTables(t *testing.T) {
	t.Run("HistoryTable", func(t *testing.T) {
		out := HistoryTable(sampleRuns())
		for _, want := range []string{"STATUS", "completed", "failed", "manager-1", "1.5s", "catalog unavailable"} {
			if !strings.Contains(out, want) {
				t.Errorf("history table missing %q:\n%s", want, out)
			}
		}
		if !strings.HasPrefix(out, "╭") {
			t.Errorf("expected rounded table style:\n%s", out)
		}
	})

	t.Run("RunDetail", func(t *testing.T) {
		running := &models.SyncRun{ID: "run-3", Sequence: 3, Status: models.RunRunning, Trigger: models.TriggerManual, MatchedRequestIDs: []string{}}
		out := RunDetail(running)
		for _, want := range []string{"run-3", "#3", "running", "Requests checked"} {
			if !strings.Contains(out, want) {
				t.Errorf("detail missing %q:\n%s", want, out)
			}
		}

		out = RunDetail(sampleRuns()[0])
		if !strings.Contains(out, "req-9") {
			t.Errorf("detail missing matched id:\n%s", out)
		}
	})

	t.Run("RequestsTable", func(t *testing.T) {
		checked := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
		req := &models.Request{Sequence: 7, Title: "Dune", Status: models.StatusPossibleMatch, MatchedTitle: shared.StringPtr("Dune"), MatchedAuthor: shared.StringPtr("Frank Herbert"), LastCheckedAt: &checked}
		pending := &models.Request{Sequence: 8, Title: "Emma", Author: shared.StringPtr("Jane Austen"), Status: models.StatusPending}

		out := RequestsTable([]*models.Request{req, pending})
		for _, want := range []string{"Dune by Frank Herbert", "possible_match", "Jane Austen", "never"} {
			if !strings.Contains(out, want) {
				t.Errorf("requests table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("CatalogTable", func(t *testing.T) {
		items := []models.CatalogEntry{
			{ID: "li_1", Title: "Dune", Author: shared.StringPtr("Frank Herbert"), Narrator: "Scott Brick", Duration: 76320, LibraryName: "Audiobooks"},
			{ID: "li_2", Title: "Untitled", LibraryName: "Audiobooks"},
		}
		out := CatalogTable(items)
		for _, want := range []string{"Dune", "Scott Brick", "21h 12m", "Audiobooks", "Untitled"} {
			if !strings.Contains(out, want) {
				t.Errorf("catalog table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("renderTable without headers", func(t *testing.T) {
		if out := renderTable(nil, [][]string{{"x"}}, nil); out != "" {
			t.Errorf("expected empty output, got %q", out)
		}
	})
}

func TestRequestStats(t *testing.T) {
	tests := []struct {
		name     string
		counts   map[models.Status]int
		wantRate int
		wantSum  int
	}{
		{name: "no requests", counts: map[models.Status]int{}, wantRate: 0, wantSum: 0},
		{
			name: "fulfilled and completed count as done",
			counts: map[models.Status]int{
				models.StatusPending: 2, models.StatusFulfilled: 1, models.StatusCompleted: 1,
			},
			wantRate: 50, wantSum: 4,
		},
		{
			name:     "rounds to nearest percent",
			counts:   map[models.Status]int{models.StatusPending: 2, models.StatusCompleted: 1},
			wantRate: 33, wantSum: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := NewRequestStats(tt.counts)
			if stats.Total != tt.wantSum {
				t.Errorf("Total = %d, want %d", stats.Total, tt.wantSum)
			}
			if stats.CompletionRate != tt.wantRate {
				t.Errorf("CompletionRate = %d, want %d", stats.CompletionRate, tt.wantRate)
			}
			if len(stats.Counts) != len(models.Statuses) {
				t.Errorf("expected every status in counts, got %v", stats.Counts)
			}
		})
	}

	out := StatsTable(NewRequestStats(map[models.Status]int{models.StatusRejected: 3}))
	for _, want := range []string{"rejected", "total", "0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteHistoryExport(t *testing.T) {
	page := &models.RunPage{Runs: sampleRuns(), Page: 1, PerPage: 20, Total: 2}

	tests := []struct {
		format string
		file   string
		check  func(t *testing.T, data []byte)
	}{
		{format: FormatCSV, file: "history.csv", check: func(t *testing.T, data []byte) {
			if !strings.HasPrefix(string(data), "ID,Sequence") {
				t.Errorf("unexpected CSV: %s", data)
			}
		}},
		{format: FormatMarkdown, file: "nested/history.md", check: func(t *testing.T, data []byte) {
			if !strings.HasPrefix(string(data), "# Sync history") {
				t.Errorf("unexpected markdown: %s", data)
			}
		}},
		{format: FormatJSON, file: "history.json", check: func(t *testing.T, data []byte) {
			var decoded models.RunPage
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if decoded.Total != 2 || len(decoded.Runs) != 2 {
				t.Errorf("unexpected JSON page: %+v", decoded)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			written, err := WriteHistoryExport(page, tt.format, path)
			if err != nil {
				t.Fatalf("WriteHistoryExport failed: %v", err)
			}
			if written != path {
				t.Errorf("expected %s, got %s", path, written)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read export: %v", err)
			}
			tt.check(t, data)
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		_, err := WriteHistoryExport(page, "xml", filepath.Join(t.TempDir(), "x"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
