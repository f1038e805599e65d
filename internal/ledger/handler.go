package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sitebudget/sitebudget/internal/platform/httpx"
	"github.com/sitebudget/sitebudget/internal/rbac"
)

// Handler serves ledger submissions and the per-project entry listing.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

// MountRoutes registers ledger routes on the authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermLedgerWrite))
		r.Post("/add_entry/{project_id}", h.handleAddEntry)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermLedgerRead))
		r.Get("/projects/{project_id}/entries", h.handleListEntries)
	})
}

// handleAddEntry always lands back on the dashboard except when the project
// cannot be resolved, which is a 404.
func (h *Handler) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: project", httpx.ErrNotFound))
		return
	}
	principal, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	_, err := h.service.RecordEntry(r.Context(), EntryInput{
		ProjectID:   projectID,
		Description: r.PostFormValue("description"),
		Amount:      r.PostFormValue("amount"),
		Role:        principal.Role,
		AccountID:   principal.AccountID,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrProjectNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: project %d", httpx.ErrNotFound, projectID))
		return
	case errors.Is(err, ErrInvalidDescription), errors.Is(err, ErrInvalidAmount):
		h.logger.Info("ledger entry rejected",
			slog.Int64("project_id", projectID),
			slog.String("username", principal.Username),
			slog.Any("error", err))
	default:
		h.logger.Error("record ledger entry",
			slog.Int64("project_id", projectID),
			slog.String("username", principal.Username),
			slog.Any("error", err))
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

type entriesResponse struct {
	ProjectID int64   `json:"project_id"`
	Entries   []Entry `json:"entries"`
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDParam(r)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: project", httpx.ErrNotFound))
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 0
	}

	entries, err := h.service.ListEntries(r.Context(), projectID, limit)
	if errors.Is(err, ErrProjectNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: project %d", httpx.ErrNotFound, projectID))
		return
	}
	if err != nil {
		h.logger.Error("list ledger entries", slog.Int64("project_id", projectID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, entriesResponse{ProjectID: projectID, Entries: entries})
}

func projectIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "project_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
