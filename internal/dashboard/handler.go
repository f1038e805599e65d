package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitebudget/sitebudget/internal/chart"
	"github.com/sitebudget/sitebudget/internal/observability"
	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
	"github.com/sitebudget/sitebudget/internal/shared"
	"github.com/sitebudget/sitebudget/internal/view"
)

// ProjectLister lists projects for display.
type ProjectLister interface {
	List(ctx context.Context) ([]projects.Project, error)
}

// ChartGenerator refreshes the overview chart and returns its URL.
type ChartGenerator interface {
	Generate(ctx context.Context, bars []chart.Bar) (string, error)
}

// Handler renders the project dashboard.
type Handler struct {
	logger    *slog.Logger
	projects  ProjectLister
	charts    ChartGenerator
	templates *view.Engine
	csrf      *shared.CSRFManager
	metrics   *observability.Metrics
	rbac      rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, lister ProjectLister, charts ChartGenerator, templates *view.Engine, csrf *shared.CSRFManager, metrics *observability.Metrics, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		projects:  lister,
		charts:    charts,
		templates: templates,
		csrf:      csrf,
		metrics:   metrics,
		rbac:      rbacMW,
	}
}

// MountRoutes registers the dashboard on the authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermDashboardView))
		r.Get("/dashboard", h.showDashboard)
	})
}

// showDashboard degrades instead of failing: a listing error renders an
// empty dashboard and a chart error renders it without the image.
func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, _ := rbac.PrincipalFromContext(ctx)

	list, err := h.projects.List(ctx)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		list = nil
	}

	chartURL := h.refreshChart(ctx, list)

	sess := shared.SessionFromContext(ctx)
	csrfToken, _ := h.csrf.EnsureToken(ctx, sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       "Dashboard",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        BuildPage(principal, list, chartURL),
	}
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
	}
}

func (h *Handler) refreshChart(ctx context.Context, list []projects.Project) string {
	if h.charts == nil {
		return ""
	}
	tracker := h.metrics.Track("chart.generate")
	url, err := h.charts.Generate(ctx, ChartBars(list))
	if !errors.Is(err, chart.ErrNoData) {
		_ = tracker.End(err)
	}
	switch {
	case err == nil:
		h.metrics.ObserveChart("ok")
		return url
	case errors.Is(err, chart.ErrNoData):
		h.metrics.ObserveChart("empty")
	default:
		h.metrics.ObserveChart("error")
		h.logger.Error("generate chart", slog.Any("error", err))
	}
	return ""
}
