package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sitebudget/sitebudget/internal/rbac"
	"github.com/sitebudget/sitebudget/internal/shared"
)

// RequireLogin redirects anonymous requests to /login and places the
// session's account in the context as an rbac.Principal.
func RequireLogin(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			id, err := strconv.ParseInt(sess.User(), 10, 64)
			if err != nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			account, err := service.Account(r.Context(), id)
			if err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					logger.Error("load session account", slog.Int64("account_id", id), slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				// The account was removed after login.
				sess.SetUser("", "", "")
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			principal := rbac.Principal{AccountID: account.ID, Username: account.Username, Role: account.Role}
			next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
