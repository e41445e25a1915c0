package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRefreshed MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type refreshed struct {
	page   *models.RunPage
	status *tasks.SyncStatus
	err    error
}

type syncOutcome struct {
	run *models.SyncRun
	err error
}

// refreshedMsg is the constructor for [MsgRefreshed]
func refreshedMsg(page *models.RunPage, status *tasks.SyncStatus, err error) Msg {
	return Msg{kind: MsgRefreshed, data: refreshed{page, status, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(run *models.SyncRun, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncOutcome{run, err}}
}
