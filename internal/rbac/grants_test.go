package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackwise/trackwise/internal/rbac"
)

func capPtr(s string) *rbac.Capability {
	c := rbac.MustCapability(s)
	return &c
}

func TestGrants_Satisfies(t *testing.T) {
	dev := &rbac.Grants{
		Roles:        []string{"Developer"},
		Capabilities: []rbac.Capability{rbac.MustCapability("task:read"), rbac.MustCapability("report:read")},
	}
	admin := &rbac.Grants{Roles: []string{"Admin"}, Capabilities: []rbac.Capability{rbac.MustCapability("*:*")}}
	none := &rbac.Grants{}

	tests := []struct {
		name   string
		grants *rbac.Grants
		req    rbac.Requirement
		want   bool
	}{
		{"empty requirement", none, rbac.Requirement{}, true},
		{"any-of roles hit", dev, rbac.Requirement{Roles: []string{"ProjectManager", "Developer"}}, true},
		{"any-of roles miss", dev, rbac.Requirement{Roles: []string{"ProjectManager"}}, false},
		{"capability held", dev, rbac.Requirement{Capability: capPtr("report:read")}, true},
		{"capability missing", dev, rbac.Requirement{Capability: capPtr("member:manage")}, false},
		{"wildcard capability", admin, rbac.Requirement{Capability: capPtr("member:manage")}, true},
		{"wildcard does not imply role", admin, rbac.Requirement{Roles: []string{"Developer"}}, false},
		{"both required, both held", dev, rbac.Requirement{Roles: []string{"Developer"}, Capability: capPtr("task:read")}, true},
		{"both required, capability missing", dev, rbac.Requirement{Roles: []string{"Developer"}, Capability: capPtr("task:write")}, false},
		{"nothing held", none, rbac.Requirement{Roles: []string{"Viewer"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.grants.Satisfies(tt.req))
		})
	}
}

func TestRequirement_Empty(t *testing.T) {
	assert.True(t, rbac.Requirement{}.Empty())
	assert.False(t, rbac.Requirement{Roles: []string{"Admin"}}.Empty())
	assert.False(t, rbac.Requirement{Capability: capPtr("task:read")}.Empty())
}
