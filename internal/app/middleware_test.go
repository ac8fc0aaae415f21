package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/harborchat/harbor/internal/shared"
	"github.com/harborchat/harbor/internal/users"
	_ "github.com/harborchat/harbor/testing"
)

type fakePrincipalSource struct {
	users map[int64]*users.User
}

func (s fakePrincipalSource) GetByID(ctx context.Context, id int64) (*users.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func newMiddlewareRouter(t *testing.T) (*chi.Mux, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, time.Hour)

	source := fakePrincipalSource{users: map[int64]*users.User{
		1: {ID: 1, Username: "alice", Roles: []string{"member"}, IsActive: true},
		2: {ID: 2, Username: "mallory", Roles: []string{"member"}, IsActive: false},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         logger,
		SessionManager: sessions,
		Users:          source,
	}) {
		router.Use(mw)
	}
	router.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			_, _ = w.Write([]byte(principal.Username))
		})
	})
	router.Get("/open", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return router, sessions
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	router, _ := newMiddlewareRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	require.Contains(t, rec.Body.String(), "authentication required")
}

func TestAuthMiddlewareResolvesPrincipal(t *testing.T) {
	router, sessions := newMiddlewareRouter(t)

	sess, err := sessions.Issue(context.Background(), 1, "alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", rec.Body.String())
}

func TestAuthMiddlewareIgnoresInactiveUser(t *testing.T) {
	router, sessions := newMiddlewareRouter(t)

	sess, err := sessions.Issue(context.Background(), 2, "mallory")
	require.NoError(t, err)

	// A valid token for a deactivated account yields no principal.
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareIgnoresUnknownToken(t *testing.T) {
	router, _ := newMiddlewareRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer does-not-exist")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	router, _ := newMiddlewareRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
