package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/desertthunder/shelfreq/internal/tasks"
)

const historySize = 50

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunListView ViewState = iota
	RunDetailView
	SyncView
)

// Backend is the part of [tasks.SyncService] the monitor drives.
type Backend interface {
	Status(ctx context.Context) (*tasks.SyncStatus, error)
	History(ctx context.Context, page, perPage int) (*models.RunPage, error)
	RunNow(ctx context.Context, trigger models.Trigger, actorID *string, progress chan<- tasks.ProgressUpdate) (*models.SyncRun, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	backend  Backend
	actor    *string
	view     ViewState
	width    int
	height   int
	runList  list.Model
	status   *tasks.SyncStatus
	total    int
	selected *models.SyncRun
	progress tasks.ProgressUpdate
	updates  chan tasks.ProgressUpdate
	done     chan syncOutcome
	lastRun  *models.SyncRun
	notice   string
	err      error
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model. actor is recorded on runs started from the monitor.
func NewModel(ctx context.Context, backend Backend, actor *string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	runList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	runList.Title = "Sync runs"
	runList.SetShowHelp(false)

	return &Model{
		ctx:     ctx,
		backend: backend,
		actor:   actor,
		view:    RunListView,
		runList: runList,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by loading the ledger and status.
func (m *Model) Init() tea.Cmd {
	return m.refresh()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runList.SetSize(max(msg.Width-4, 0), max(msg.Height-8, 0))
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case RunListView:
			return m.handleRunListKeys(msg)
		case RunDetailView:
			return m.handleDetailKeys(msg)
		case SyncView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		}

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == RunListView {
		m.runList, cmd = m.runList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRefreshed:
		data := msg.data.(refreshed)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.status = data.status
		m.total = data.page.Total
		items := make([]list.Item, len(data.page.Runs))
		for i, run := range data.page.Runs {
			items[i] = runItem{run: run}
		}
		return m, m.runList.SetItems(items)

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.updates, m.done)

	case MsgSyncComplete:
		outcome := msg.data.(syncOutcome)
		m.updates, m.done = nil, nil
		m.view = RunListView
		m.lastRun = outcome.run

		switch {
		case errors.Is(outcome.err, shared.ErrSyncInProgress):
			m.notice = styles.warn.Render("A sync is already in progress")
		case outcome.err != nil:
			m.notice = styles.err.Render(fmt.Sprintf("✗ Sync failed: %v", outcome.err))
		case outcome.run != nil:
			m.notice = styles.ok.Render(fmt.Sprintf("✓ Sync #%d completed: %d checked, %d matched",
				outcome.run.Sequence, outcome.run.RequestsChecked, outcome.run.MatchesFound))
		}
		return m, m.refresh()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunListView:
		return m.renderRunList()
	case RunDetailView:
		return m.renderDetail()
	case SyncView:
		return m.renderSync()
	default:
		return ""
	}
}

func (m *Model) handleRunListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.runList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.runList, cmd = m.runList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.notice = ""
		return m, m.refresh()
	case key.Matches(msg, m.keys.sync):
		if m.status != nil && !m.status.Configured {
			m.notice = styles.err.Render("Audiobookshelf is not configured")
			return m, nil
		}
		return m, m.startSync()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.runList.SelectedItem().(runItem); ok {
			m.selected = item.run
			m.view = RunDetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.runList, cmd = m.runList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.selected = nil
		m.view = RunListView
	}
	return m, nil
}

func (m *Model) refresh() tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		status, err := backend.Status(ctx)
		if err != nil {
			return refreshedMsg(nil, nil, err)
		}
		page, err := backend.History(ctx, 1, historySize)
		return refreshedMsg(page, status, err)
	}
}

// startSync runs a manual sync on its own goroutine and streams its progress.
func (m *Model) startSync() tea.Cmd {
	m.view = SyncView
	m.notice = ""
	m.progress = tasks.ProgressUpdate{Message: "Starting sync..."}
	m.updates = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan syncOutcome, 1)

	ctx, backend, actor := m.ctx, m.backend, m.actor
	updates, done := m.updates, m.done
	go func() {
		run, err := backend.RunNow(ctx, models.TriggerManual, actor, updates)
		done <- syncOutcome{run, err}
		close(updates)
	}()

	return tea.Batch(m.spinner.Tick, waitForProgress(updates, done))
}

func waitForProgress(updates <-chan tasks.ProgressUpdate, done <-chan syncOutcome) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			outcome := <-done
			return syncCompleteMsg(outcome.run, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderStatus() string {
	if m.status == nil {
		return styles.help.Render("Loading status...")
	}

	var parts []string
	if m.status.Configured {
		parts = append(parts, styles.ok.Render("Audiobookshelf configured"))
	} else {
		parts = append(parts, styles.err.Render("Audiobookshelf not configured"))
	}
	if m.status.IsRunning {
		parts = append(parts, styles.warn.Render("sync running"))
	}
	if m.status.LastRun != nil && m.status.LastRun.FinishedAt != nil {
		last := m.status.LastRun
		parts = append(parts, fmt.Sprintf("last %s %s", styles.forRun(string(last.Status)).Render(string(last.Status)), humanize(time.Since(*last.FinishedAt))+" ago"))
	}
	if m.status.NextScheduledRun != nil {
		parts = append(parts, "next in "+humanize(time.Until(*m.status.NextScheduledRun)))
	}
	parts = append(parts, fmt.Sprintf("%d runs", m.total))
	return strings.Join(parts, " • ")
}

func (m *Model) renderRunList() string {
	var b strings.Builder
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}
	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n\n")
	}
	b.WriteString(m.runList.View())
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.sync, m.keys.refresh, m.keys.quit}))
	return b.String()
}

func (m *Model) renderDetail() string {
	run := m.selected
	if run == nil {
		return ""
	}

	title := styles.title.Render(fmt.Sprintf("Sync run #%d", run.Sequence))
	lines := []string{
		fmt.Sprintf("Status:   %s", styles.forRun(string(run.Status)).Render(string(run.Status))),
		fmt.Sprintf("Trigger:  %s", run.Trigger),
		fmt.Sprintf("Actor:    %s", valueOr(shared.Deref(run.ActorID), "-")),
		fmt.Sprintf("Started:  %s", run.StartedAt.Local().Format(time.DateTime)),
	}
	if run.FinishedAt != nil {
		lines = append(lines,
			fmt.Sprintf("Finished: %s (%s)", run.FinishedAt.Local().Format(time.DateTime), run.Duration().Round(time.Millisecond)),
		)
	}
	lines = append(lines,
		fmt.Sprintf("Checked:  %d", run.RequestsChecked),
		fmt.Sprintf("Matched:  %d", run.MatchesFound),
	)
	for _, id := range run.MatchedRequestIDs {
		lines = append(lines, "  • "+id)
	}
	if run.Error != nil {
		lines = append(lines, "", styles.err.Render("Error: "+*run.Error))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, strings.Join(lines, "\n"), helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing with Audiobookshelf")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchCatalog:
		phase = "Fetching catalog..."
	case tasks.CheckRequests:
		phase = fmt.Sprintf("Checking requests (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Commit:
		phase = "Saving changes..."
	case tasks.CloseRun:
		phase = "Finishing..."
	default:
		phase = "Starting..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, m.progress.Message)
}

func humanize(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
