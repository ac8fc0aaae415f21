package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborchat/harbor/internal/shared"
)

type staticRoleLoader struct {
	set RoleSet
	err error
}

func (l staticRoleLoader) LoadAll(ctx context.Context) (RoleSet, error) {
	return l.set, l.err
}

func authedRequest(roles ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	ctx := shared.ContextWithPrincipal(req.Context(), &shared.Principal{UserID: 7, Username: "tester", Roles: roles})
	return req.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAnyAllowsMatchingRole(t *testing.T) {
	mw := Middleware{Roles: staticRoleLoader{set: testRoleSet()}}
	handler := mw.RequireAny(shared.PermUsersView)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest("member"))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAnyRejectsAnonymous(t *testing.T) {
	mw := Middleware{Roles: staticRoleLoader{set: testRoleSet()}}
	handler := mw.RequireAny(shared.PermUsersView)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAnyRejectsMissingPermission(t *testing.T) {
	mw := Middleware{Roles: staticRoleLoader{set: testRoleSet()}}
	handler := mw.RequireAny(shared.PermAdminBackup)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest("guest"))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAllUnionsGrantsAcrossRoles(t *testing.T) {
	set := testRoleSet()
	set["auditor"] = Role{
		Name:              "auditor",
		GlobalPermissions: map[string]bool{shared.PermRolesView: true},
	}
	mw := Middleware{Roles: staticRoleLoader{set: set}}
	handler := mw.RequireAll(shared.PermUsersView, shared.PermRolesView)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest("member", "auditor"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest("member"))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAllFailsClosedOnLoaderError(t *testing.T) {
	mw := Middleware{Roles: staticRoleLoader{err: errors.New("db down")}}
	handler := mw.RequireAll(shared.PermUsersView)(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest("admin"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
