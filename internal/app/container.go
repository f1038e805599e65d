package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/sitebudget/sitebudget/internal/auth"
	"github.com/sitebudget/sitebudget/internal/chart"
	"github.com/sitebudget/sitebudget/internal/dashboard"
	"github.com/sitebudget/sitebudget/internal/events"
	"github.com/sitebudget/sitebudget/internal/ledger"
	"github.com/sitebudget/sitebudget/internal/observability"
	"github.com/sitebudget/sitebudget/internal/platform/cache"
	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
	"github.com/sitebudget/sitebudget/internal/shared"
	"github.com/sitebudget/sitebudget/internal/view"
)

// SessionCookieName names the cookie carrying the signed session id.
const SessionCookieName = "sitebudget_session"

// App owns every long-lived dependency of the web process.
type App struct {
	Config    *Config
	Logger    *slog.Logger
	Store     *Store
	Redis     *redis.Client
	Publisher events.Publisher
	Metrics   *observability.Metrics

	Accounts *auth.Service
	Projects *projects.Service
	Ledger   *ledger.Service
	Charts   *chart.Generator

	handler http.Handler
}

// New connects storage, Redis and the event publisher, applies migrations and
// assembles the HTTP handler.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if applied > 0 {
		logger.Info("applied migrations", slog.Int("count", applied), slog.String("driver", store.Driver))
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing ledger events", slog.String("topic", cfg.KafkaTopic))
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Redis:     redisClient,
		Publisher: publisher,
		Metrics:   observability.NewMetrics(),
	}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	sessions := shared.NewSessionManager(a.Redis, SessionCookieName, a.Config.SessionSecret, a.Config.SessionTTL, a.Config.IsProduction())
	csrf := shared.NewCSRFManager(a.Config.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	rbacMW := rbac.Middleware{Logger: a.Logger}

	a.Accounts = auth.NewService(a.Store.Accounts())
	a.Projects = projects.NewService(a.Store.Projects())
	a.Ledger = ledger.NewService(a.Store.Ledger(), a.Publisher, a.Metrics, a.Logger)
	a.Charts = chart.NewGenerator(a.Config.ChartDir)

	a.handler = NewRouter(RouterParams{
		Logger:           a.Logger,
		Config:           a.Config,
		SessionManager:   sessions,
		CSRFManager:      csrf,
		AuthService:      a.Accounts,
		AuthHandler:      auth.NewHandler(a.Logger, a.Accounts, templates, sessions, csrf, a.Metrics),
		DashboardHandler: dashboard.NewHandler(a.Logger, a.Projects, a.Charts, templates, csrf, a.Metrics, rbacMW),
		LedgerHandler:    ledger.NewHandler(a.Logger, a.Ledger, rbacMW),
		ChartDir:         a.Config.ChartDir,
		Metrics:          a.Metrics,
		Ready:            a.Ready,
	})
	return nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Ready reports whether the database and Redis answer.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := cache.Ping(ctx, a.Redis); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases every connection held by the app.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
