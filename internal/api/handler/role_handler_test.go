package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/api/handler"
	"github.com/trackwise/trackwise/internal/project/projecttest"
	"github.com/trackwise/trackwise/internal/rbac"
	"github.com/trackwise/trackwise/internal/rbac/rbactest"
)

func TestRoleList(t *testing.T) {
	t.Parallel()
	store, err := rbactest.Seeded(projecttest.NewProjects())
	require.NoError(t, err)
	h := handler.NewRoleHandler(store)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body []rbac.Role
	decodeData(t, rec, &body)
	assert.Len(t, body, len(mustCatalog(t).Roles))
}

func TestRoleList_StoreFailure(t *testing.T) {
	t.Parallel()
	store := rbactest.NewStore(nil)
	store.Err = errors.New("unavailable")
	h := handler.NewRoleHandler(store)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRolePermissions(t *testing.T) {
	t.Parallel()
	store, err := rbactest.Seeded(projecttest.NewProjects())
	require.NoError(t, err)
	h := handler.NewRoleHandler(store)

	admin, err := store.GetRoleByName(context.Background(), rbac.RoleAdmin)
	require.NoError(t, err)
	id := strconv.FormatInt(admin.ID, 10)

	rec := httptest.NewRecorder()
	h.Permissions(rec, withParams(httptest.NewRequest(http.MethodGet, "/roles/"+id+"/permissions", nil), "roleId", id))

	require.Equal(t, http.StatusOK, rec.Code)
	var body []rbac.Permission
	decodeData(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, rbac.Wildcard, body[0].Entity)
	assert.Equal(t, rbac.Wildcard, body[0].Action)
	assert.Nil(t, body[0].ProjectID)
}

func TestRolePermissions_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"unknown role", "999", http.StatusNotFound},
		{"malformed id", "admin", http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := rbactest.Seeded(projecttest.NewProjects())
			require.NoError(t, err)
			h := handler.NewRoleHandler(store)

			rec := httptest.NewRecorder()
			h.Permissions(rec, withParams(httptest.NewRequest(http.MethodGet, "/roles/"+tt.id+"/permissions", nil), "roleId", tt.id))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
