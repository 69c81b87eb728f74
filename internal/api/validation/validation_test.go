package validation_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/api/validation"
	"github.com/trackwise/trackwise/internal/rbac"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{"valid", "42", 42, false},
		{"padded", " 7 ", 7, false},
		{"empty", "", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-3", 0, true},
		{"not a number", "abc", 0, true},
		{"overflow", "99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := validation.ParseID("projectId", tt.raw)
			if tt.wantErr {
				require.Len(t, errs, 1)
				assert.Equal(t, "projectId", errs[0].Field)
				return
			}
			assert.Empty(t, errs)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCreateUserRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    validation.CreateUserRequest
		fields []string
	}{
		{"valid", validation.CreateUserRequest{Email: "ann@example.com", Password: "long-enough"}, nil},
		{"key only user", validation.CreateUserRequest{Email: "ci@example.com"}, nil},
		{"missing email", validation.CreateUserRequest{}, []string{"email"}},
		{"bad email", validation.CreateUserRequest{Email: "not-an-email"}, []string{"email"}},
		{"display name form", validation.CreateUserRequest{Email: "Ann <ann@example.com>"}, []string{"email"}},
		{"long email", validation.CreateUserRequest{Email: strings.Repeat("a", 251) + "@x.io"}, []string{"email"}},
		{"short password", validation.CreateUserRequest{Email: "ann@example.com", Password: "short"}, []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validation.ValidateCreateUserRequest(tt.req)
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidateLoginRequest(t *testing.T) {
	assert.Empty(t, validation.ValidateLoginRequest(validation.LoginRequest{Email: "a@b.io", Password: "x"}))
	assert.Len(t, validation.ValidateLoginRequest(validation.LoginRequest{}), 2)
}

func TestValidateCreateProjectRequest(t *testing.T) {
	assert.Empty(t, validation.ValidateCreateProjectRequest(validation.CreateProjectRequest{Name: "Apollo"}))
	assert.Len(t, validation.ValidateCreateProjectRequest(validation.CreateProjectRequest{Name: "  "}), 1)
	assert.Len(t, validation.ValidateCreateProjectRequest(validation.CreateProjectRequest{Name: strings.Repeat("p", 256)}), 1)
}

func TestValidateAddMemberRequest(t *testing.T) {
	catalog, err := rbac.DefaultCatalog()
	require.NoError(t, err)

	assert.Empty(t, validation.ValidateAddMemberRequest(validation.AddMemberRequest{UserID: 3}, catalog))
	assert.Empty(t, validation.ValidateAddMemberRequest(validation.AddMemberRequest{UserID: 3, Roles: []string{"Developer"}}, catalog))

	errs := validation.ValidateAddMemberRequest(validation.AddMemberRequest{Roles: []string{"Wizard", "Developer", "Developer"}}, catalog)
	require.Len(t, errs, 3)
	assert.Equal(t, "userId", errs[0].Field)
	assert.Equal(t, "role Developer is listed twice", errs[1].Message)
	assert.Equal(t, "unknown role Wizard", errs[2].Message)
}

func TestValidateRoles_EmptyAllowed(t *testing.T) {
	catalog, err := rbac.DefaultCatalog()
	require.NoError(t, err)

	assert.Empty(t, validation.ValidateRoles(nil, catalog))
}
