package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sitebudget/sitebudget/internal/auth"
	"github.com/sitebudget/sitebudget/internal/chart"
	"github.com/sitebudget/sitebudget/internal/dashboard"
	"github.com/sitebudget/sitebudget/internal/ledger"
	"github.com/sitebudget/sitebudget/internal/observability"
	"github.com/sitebudget/sitebudget/internal/platform/httpx"
	"github.com/sitebudget/sitebudget/internal/shared"
	"github.com/sitebudget/sitebudget/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthService      *auth.Service
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	LedgerHandler    *ledger.Handler
	ChartDir         string
	Metrics          *observability.Metrics
	Ready            func(context.Context) error
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", httpx.Health)
	if params.Ready != nil {
		r.Get("/readyz", readyHandler(params.Ready, params.Logger))
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
	params.AuthHandler.MountRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin(params.AuthService, params.Logger))
		params.DashboardHandler.MountRoutes(r)
		params.LedgerHandler.MountRoutes(r)
		params.AuthHandler.MountProtectedRoutes(r)
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		r.Get("/manifest.json", embeddedFile(staticFS, "manifest.json", "application/manifest+json"))
		r.Get("/sw.js", embeddedFile(staticFS, "sw.js", "application/javascript"))

		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	if params.ChartDir != "" {
		charts := http.StripPrefix(chart.URLPrefix, http.FileServer(http.Dir(params.ChartDir)))
		r.Handle(chart.URLPrefix+"*", noCacheHandler(charts))
	}

	return r
}

func readyHandler(check func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "dependency check failed")
			return
		}
		httpx.Health(w, r)
	}
}

// embeddedFile serves one file from the embedded static tree with a fixed
// content type.
func embeddedFile(fsys fs.FS, name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets (JS, CSS, icons) are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

// noCacheHandler forces revalidation of generated artifacts.
func noCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}
