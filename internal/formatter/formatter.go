// package formatter renders sync history, requests and catalog items as tables, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
)

// Export formats accepted by [WriteHistoryExport].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

const displayTime = "2006-01-02 15:04:05"

var historyHeaders = []string{"#", "Status", "Trigger", "Actor", "Started", "Duration", "Checked", "Matched", "Error"}

// HistoryToCSV converts ledger entries to CSV with one row per run.
func HistoryToCSV(runs []*models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Sequence", "Status", "Trigger", "Actor", "StartedAt", "FinishedAt", "RequestsChecked", "MatchesFound", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		finished := ""
		if run.FinishedAt != nil {
			finished = shared.FormatTime(*run.FinishedAt)
		}
		record := []string{
			run.ID,
			strconv.Itoa(run.Sequence),
			string(run.Status),
			string(run.Trigger),
			shared.Deref(run.ActorID),
			shared.FormatTime(run.StartedAt),
			finished,
			strconv.Itoa(run.RequestsChecked),
			strconv.Itoa(run.MatchesFound),
			shared.Deref(run.Error),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown converts one page of ledger history to a Markdown table.
func HistoryToMarkdown(page *models.RunPage) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Sync history\n\n")
	buf.WriteString(fmt.Sprintf("**Runs**: %d\n", page.Total))
	buf.WriteString(fmt.Sprintf("**Page**: %d of %d\n\n", page.Page, max(page.Pages(), 1)))

	if len(page.Runs) == 0 {
		buf.WriteString("_No sync runs recorded._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| " + strings.Join(historyHeaders, " | ") + " |\n")
	buf.WriteString("|" + strings.Repeat(" --- |", len(historyHeaders)) + "\n")
	for _, run := range page.Runs {
		row := historyRow(run)
		for i, cell := range row {
			row[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		buf.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	return buf.Bytes(), nil
}

// HistoryTable renders ledger entries as a rounded table.
func HistoryTable(runs []*models.SyncRun) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, historyRow(run))
	}
	return renderTable(historyHeaders, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight})
}

// RunDetail renders one ledger entry as a two column table.
func RunDetail(run *models.SyncRun) string {
	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Local().Format(displayTime)
	}
	matched := "-"
	if len(run.MatchedRequestIDs) > 0 {
		matched = strings.Join(run.MatchedRequestIDs, "\n")
	}

	rows := [][]string{
		{"ID", run.ID},
		{"Run", "#" + strconv.Itoa(run.Sequence)},
		{"Status", string(run.Status)},
		{"Trigger", string(run.Trigger)},
		{"Actor", orDash(shared.Deref(run.ActorID))},
		{"Started", run.StartedAt.Local().Format(displayTime)},
		{"Finished", finished},
		{"Duration", durationLabel(run)},
		{"Requests checked", strconv.Itoa(run.RequestsChecked)},
		{"Matches found", strconv.Itoa(run.MatchesFound)},
		{"Matched requests", matched},
		{"Error", orDash(shared.Deref(run.Error))},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

// RequestsTable renders requests with their match snapshot.
func RequestsTable(requests []*models.Request) string {
	headers := []string{"#", "Title", "Author", "Status", "Matched", "Last checked"}
	rows := make([][]string, 0, len(requests))
	for _, req := range requests {
		matched := shared.Deref(req.MatchedTitle)
		if req.MatchedAuthor != nil {
			matched += " by " + *req.MatchedAuthor
		}
		checked := "never"
		if req.LastCheckedAt != nil {
			checked = req.LastCheckedAt.Local().Format(displayTime)
		}
		rows = append(rows, []string{
			strconv.Itoa(req.Sequence),
			req.Title,
			orDash(shared.Deref(req.Author)),
			string(req.Status),
			orDash(matched),
			checked,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight})
}

// CatalogTable renders catalog items.
func CatalogTable(items []models.CatalogEntry) string {
	headers := []string{"Title", "Author", "Narrator", "Length", "Library"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Title,
			orDash(shared.Deref(item.Author)),
			orDash(item.Narrator),
			orDash(item.DurationLabel()),
			item.LibraryName,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}

// RequestStats summarizes requests by status.
type RequestStats struct {
	Counts         map[models.Status]int `json:"counts"`
	Total          int                   `json:"total"`
	CompletionRate int                   `json:"completion_rate"` // percent of requests completed or fulfilled
}

// NewRequestStats computes totals from per-status counts.
func NewRequestStats(counts map[models.Status]int) RequestStats {
	stats := RequestStats{Counts: make(map[models.Status]int, len(models.Statuses))}
	for _, status := range models.Statuses {
		stats.Counts[status] = counts[status]
		stats.Total += counts[status]
	}
	if stats.Total > 0 {
		done := counts[models.StatusCompleted] + counts[models.StatusFulfilled]
		stats.CompletionRate = int(math.Round(float64(done) / float64(stats.Total) * 100))
	}
	return stats
}

// StatsTable renders request counts per status with the completion rate.
func StatsTable(stats RequestStats) string {
	rows := make([][]string, 0, len(models.Statuses)+2)
	for _, status := range models.Statuses {
		rows = append(rows, []string{string(status), strconv.Itoa(stats.Counts[status])})
	}
	rows = append(rows,
		[]string{"total", strconv.Itoa(stats.Total)},
		[]string{"completion rate", fmt.Sprintf("%d%%", stats.CompletionRate)},
	)
	return renderTable([]string{"Status", "Requests"}, rows, []columnAlignment{alignLeft, alignRight})
}

// WriteHistoryExport writes a history page to path in the given format and returns the path written.
//
// Defaults to sync_history.{ext} in the working directory.
func WriteHistoryExport(page *models.RunPage, format, path string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case FormatCSV:
		data, err = HistoryToCSV(page.Runs)
		ext = "csv"
	case FormatMarkdown:
		data, err = HistoryToMarkdown(page)
		ext = "md"
	case FormatJSON, "":
		data, err = shared.MarshalJSON(page, true)
		ext = "json"
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s export: %w", ext, err)
	}

	if path == "" {
		path = "sync_history." + ext
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func historyRow(run *models.SyncRun) []string {
	return []string{
		strconv.Itoa(run.Sequence),
		string(run.Status),
		string(run.Trigger),
		orDash(shared.Deref(run.ActorID)),
		run.StartedAt.Local().Format(displayTime),
		durationLabel(run),
		strconv.Itoa(run.RequestsChecked),
		strconv.Itoa(run.MatchesFound),
		shared.Deref(run.Error),
	}
}

func durationLabel(run *models.SyncRun) string {
	if run.FinishedAt == nil {
		return "running"
	}
	return run.Duration().Round(time.Millisecond).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
