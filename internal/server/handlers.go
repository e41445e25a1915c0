package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/shelfreq/internal/models"
	"github.com/desertthunder/shelfreq/internal/shared"
	"github.com/desertthunder/shelfreq/internal/tasks"
)

const (
	actorHeader    = "X-Actor-ID"
	defaultPerPage = 20
	maxPerPage     = 100
)

// SyncService is the part of [tasks.SyncService] the API needs.
type SyncService interface {
	TriggerSync(ctx context.Context, trigger models.Trigger, actorID *string) (bool, error)
	Status(ctx context.Context) (*tasks.SyncStatus, error)
	History(ctx context.Context, page, perPage int) (*models.RunPage, error)
	Run(ctx context.Context, id string) (*models.SyncRun, error)
}

// TriggerResponse is the body of POST /sync.
type TriggerResponse struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// HistoryResponse is the body of GET /sync/runs.
type HistoryResponse struct {
	*models.RunPage
	Pages int `json:"pages"`
}

// SyncHandler serves the /sync endpoints.
type SyncHandler struct {
	svc    SyncService
	logger *log.Logger
}

// NewSyncHandler creates a handler backed by svc.
func NewSyncHandler(svc SyncService, logger *log.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, logger: logger}
}

// Register adds the sync routes to r.
func (h *SyncHandler) Register(r Router) {
	r.Handle(http.MethodPost, "/sync", http.HandlerFunc(h.Trigger))
	r.Handle(http.MethodGet, "/sync/status", http.HandlerFunc(h.Status))
	r.Handle(http.MethodGet, "/sync/runs", http.HandlerFunc(h.History))
	r.Handle(http.MethodGet, "/sync/runs/{id}", http.HandlerFunc(h.Run))
}

// Trigger queues a manual sync and answers 202 without waiting for it.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	actor := shared.StringPtr(r.Header.Get(actorHeader))

	queued, err := h.svc.TriggerSync(r.Context(), models.TriggerManual, actor)
	switch {
	case errors.Is(err, shared.ErrCatalogNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "Audiobookshelf is not configured")
		return
	case err != nil:
		h.logger.Error("failed to trigger sync", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to trigger sync")
		return
	}

	resp := TriggerResponse{Queued: queued, Message: "Sync started in the background"}
	if !queued {
		resp.Message = "A sync is already in progress"
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// Status reports the sync subsystem state.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to load sync status", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load sync status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// History returns one page of the ledger.
func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage, err := queryInt(r, "per_page", defaultPerPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage = min(perPage, maxPerPage)

	result, err := h.svc.History(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("failed to load sync history", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load sync history")
		return
	}
	if result.Runs == nil {
		result.Runs = []*models.SyncRun{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{RunPage: result, Pages: result.Pages()})
}

// Run returns one ledger entry.
func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, shared.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "sync run not found")
	case err != nil:
		h.logger.Error("failed to load sync run", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load sync run")
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func (HealthHandler) Routes() []string { return []string{"/health"} }

func (HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter builds the operator API router with logging, recovery and request IDs.
func NewRouter(svc SyncService, logger *log.Logger) *BasicRouter {
	r := NewBasicRouter()
	r.Use(RequestID(), Logging(logger), Recover(logger))
	r.Handler(HealthHandler{})
	NewSyncHandler(svc, logger).Register(r)
	return r
}

// queryInt parses a positive integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New(key + " must be a positive integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
