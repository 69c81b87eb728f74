package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/rbac"
)

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in      string
		want    rbac.Capability
		wantErr bool
	}{
		{"task:read", rbac.Capability{Entity: "task", Action: "read"}, false},
		{" Task:Write ", rbac.Capability{Entity: "task", Action: "write"}, false},
		{"*:*", rbac.Capability{Entity: "*", Action: "*"}, false},
		{"task", rbac.Capability{}, true},
		{":read", rbac.Capability{}, true},
		{"task:", rbac.Capability{}, true},
		{"task:read:extra", rbac.Capability{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := rbac.ParseCapability(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Entity+":"+tt.want.Action, got.String())
		})
	}
}

func TestMustCapability_Panics(t *testing.T) {
	assert.Panics(t, func() { rbac.MustCapability("broken") })
	assert.NotPanics(t, func() { rbac.MustCapability("report:read") })
}

func TestCapability_Covers(t *testing.T) {
	want := rbac.MustCapability("task:write")

	assert.True(t, rbac.MustCapability("task:write").Covers(want))
	assert.True(t, rbac.MustCapability("task:*").Covers(want))
	assert.True(t, rbac.MustCapability("*:write").Covers(want))
	assert.True(t, rbac.MustCapability("*:*").Covers(want))
	assert.False(t, rbac.MustCapability("task:read").Covers(want))
	assert.False(t, rbac.MustCapability("comment:write").Covers(want))
}
