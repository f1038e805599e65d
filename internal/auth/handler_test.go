package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebudget/sitebudget/internal/shared"
	"github.com/sitebudget/sitebudget/internal/view"
)

type loginFixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	last     *shared.Session
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService(newMemoryRepo())
	_, err := svc.CreateAccount(context.Background(), NewAccount{Username: "purchase", Password: "purchase-pass", Role: "Purchase"})
	require.NoError(t, err)

	templates, err := view.NewEngine()
	require.NoError(t, err)

	f := &loginFixture{sessions: shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)}
	h := NewHandler(nil, svc, templates, f.sessions, shared.NewCSRFManager("secret"), nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := f.sessions.Load(req.Context(), req)
			require.NoError(t, err)
			f.last = sess
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	h.MountRoutes(r)
	h.MountProtectedRoutes(r)
	f.router = r
	return f
}

func (f *loginFixture) post(username, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestLoginSuccessBindsSession(t *testing.T) {
	f := newLoginFixture(t)

	rr := f.post("purchase", "purchase-pass")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
	assert.Equal(t, "1", f.last.User())
	assert.Equal(t, "Purchase", f.last.Get("role"))

	flash := f.last.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "Welcome back, purchase", flash.Message)
}

func TestLoginFailureRendersUnauthorized(t *testing.T) {
	f := newLoginFixture(t)

	for _, creds := range [][2]string{{"ghost", "purchase-pass"}, {"purchase", "nope-nope"}, {"", ""}} {
		rr := f.post(creds[0], creds[1])
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), invalidCredentialsMessage)
		assert.Empty(t, f.last.User())
	}
}

func TestShowLoginRendersForm(t *testing.T) {
	f := newLoginFixture(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="csrf_token"`)
}

func TestLogoutDestroysSession(t *testing.T) {
	f := newLoginFixture(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logout", nil))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	committed := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(context.Background(), committed, f.last))
	var cleared *http.Cookie
	for _, c := range committed.Result().Cookies() {
		if c.Name == "test_session" {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}
