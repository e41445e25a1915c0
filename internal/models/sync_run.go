package models

import (
	"fmt"
	"time"
)

// RunStatus is the state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// ParseTrigger validates a trigger name.
func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case TriggerScheduled, TriggerManual:
		return Trigger(s), nil
	}
	return "", fmt.Errorf("unknown trigger %q", s)
}

// SyncRun is one entry of the run ledger.
type SyncRun struct {
	ID                string     `json:"id"`
	Sequence          int        `json:"sequence"`
	Status            RunStatus  `json:"status"`
	Trigger           Trigger    `json:"trigger"`
	ActorID           *string    `json:"actor_id,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	RequestsChecked   int        `json:"requests_checked"`
	MatchesFound      int        `json:"matches_found"`
	MatchedRequestIDs []string   `json:"matched_request_ids"`
	Error             *string    `json:"error,omitempty"`
}

// NewSyncRun creates a running ledger entry.
func NewSyncRun(trigger Trigger, actorID *string) *SyncRun {
	return &SyncRun{Status: RunRunning, Trigger: trigger, ActorID: actorID, MatchedRequestIDs: []string{}}
}

func (r *SyncRun) Key() string { return r.ID }

// Stamp sets StartedAt on first save.
func (r *SyncRun) Stamp(now time.Time) {
	if r.StartedAt.IsZero() {
		r.StartedAt = now.UTC()
	}
}

// Validate checks the status and terminal bookkeeping.
func (r *SyncRun) Validate() error {
	switch r.Status {
	case RunRunning:
		if r.FinishedAt != nil {
			return fmt.Errorf("running run must not have finished_at")
		}
	case RunCompleted, RunFailed:
		if r.FinishedAt == nil {
			return fmt.Errorf("%s run requires finished_at", r.Status)
		}
	default:
		return fmt.Errorf("unknown run status %q", r.Status)
	}
	if _, err := ParseTrigger(string(r.Trigger)); err != nil {
		return err
	}
	if r.MatchesFound != len(r.MatchedRequestIDs) {
		return fmt.Errorf("matches_found %d does not match %d matched ids", r.MatchesFound, len(r.MatchedRequestIDs))
	}
	return nil
}

// Duration returns how long a finished run took, or zero while running.
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunPage is one page of ledger history, newest first.
type RunPage struct {
	Runs    []*SyncRun `json:"runs"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	Total   int        `json:"total"`
}

// Pages returns the number of pages available.
func (p RunPage) Pages() int {
	if p.PerPage <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}
