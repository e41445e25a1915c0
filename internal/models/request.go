package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a [Request].
type Status string

const (
	StatusPending       Status = "pending"
	StatusInProgress    Status = "in_progress"
	StatusPossibleMatch Status = "possible_match"
	StatusFulfilled     Status = "fulfilled"
	StatusCompleted     Status = "completed"
	StatusRejected      Status = "rejected"
)

// Statuses lists every request status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusInProgress, StatusPossibleMatch,
	StatusFulfilled, StatusCompleted, StatusRejected,
}

// OpenStatuses are the statuses a sync run re-examines.
var OpenStatuses = []Status{StatusPending, StatusInProgress, StatusPossibleMatch}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown request status %q", s)
	}
	return status, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// CarriesMatch reports whether requests in this status hold a matched snapshot.
func (s Status) CarriesMatch() bool {
	return s == StatusPossibleMatch || s == StatusFulfilled
}

// Settled reports whether a possible match may no longer overwrite this status.
func (s Status) Settled() bool {
	return s == StatusFulfilled || s == StatusCompleted || s == StatusRejected
}

// Request is a user-submitted wanted item.
//
// Possible and fulfilled requests always carry a matched title; every other
// status carries no snapshot at all.
type Request struct {
	ID              string     `json:"id"`
	Sequence        int        `json:"sequence"`
	Title           string     `json:"title"`
	Author          *string    `json:"author,omitempty"`
	Status          Status     `json:"status"`
	MatchedTitle    *string    `json:"matched_title,omitempty"`
	MatchedAuthor   *string    `json:"matched_author,omitempty"`
	FulfilledBySync bool       `json:"fulfilled_by_sync"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewRequest creates a pending request.
func NewRequest(title string, author *string) *Request {
	return &Request{Title: strings.TrimSpace(title), Author: author, Status: StatusPending}
}

func (r *Request) Key() string { return r.ID }

// Stamp sets CreatedAt on first save and UpdatedAt on every save.
func (r *Request) Stamp(now time.Time) {
	now = now.UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

// Validate enforces the title requirement and the snapshot invariant.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.Status.CarriesMatch() && r.MatchedTitle == nil {
		return fmt.Errorf("status %s requires a matched title", r.Status)
	}
	if !r.Status.CarriesMatch() && (r.MatchedTitle != nil || r.MatchedAuthor != nil) {
		return fmt.Errorf("status %s must not carry a matched snapshot", r.Status)
	}
	return nil
}

// SetMatch moves the request into status with the given catalog snapshot.
func (r *Request) SetMatch(status Status, title string, author *string) {
	r.Status = status
	r.MatchedTitle = &title
	r.MatchedAuthor = author
}

// ClearMatch moves the request into status and drops any snapshot.
func (r *Request) ClearMatch(status Status) {
	r.Status = status
	r.MatchedTitle = nil
	r.MatchedAuthor = nil
}

// Clone returns a deep copy so accumulated changes never alias the loaded row.
func (r *Request) Clone() *Request {
	c := *r
	c.Author = clonePtr(r.Author)
	c.MatchedTitle = clonePtr(r.MatchedTitle)
	c.MatchedAuthor = clonePtr(r.MatchedAuthor)
	if r.LastCheckedAt != nil {
		t := *r.LastCheckedAt
		c.LastCheckedAt = &t
	}
	return &c
}

// RequestChange is a sync result for one request. It only applies while the
// stored status still equals LoadedStatus.
type RequestChange struct {
	Request      *Request
	LoadedStatus Status
}

// NewRequestChange clones loaded so the result can be edited freely.
func NewRequestChange(loaded *Request) RequestChange {
	return RequestChange{Request: loaded.Clone(), LoadedStatus: loaded.Status}
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
