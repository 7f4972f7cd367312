package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw     string
		want    Role
		wantErr bool
	}{
		{raw: "admin", want: RoleAdmin},
		{raw: "employee", want: RoleEmployee},
		{raw: " Admin ", want: RoleAdmin},
		{raw: "manager", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRole(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, RoleNone, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleEmployee.Valid())
	assert.False(t, RoleNone.Valid())
	assert.False(t, Role("guest").Valid())
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleEmployee.IsAdmin())
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, Session{}.Expired(now), "zero expiry never expires")
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Session{ExpiresAt: now}.Expired(now))
}

func TestState_CloneIsDeep(t *testing.T) {
	ts := time.Now()
	orig := State{
		Session:  &Session{UserID: "u1", Email: "a@example.com"},
		Identity: &Identity{UserID: "u1", Email: "a@example.com"},
		Profile:  &Profile{ID: "u1", Role: RoleAdmin, UpdatedAt: &ts},
		Role:     RoleAdmin,
	}

	cp := orig.Clone()
	cp.Session.UserID = "changed"
	cp.Profile.Role = RoleEmployee

	assert.Equal(t, "u1", orig.Session.UserID)
	assert.Equal(t, RoleAdmin, orig.Profile.Role)
	assert.True(t, cp.Authenticated())
	assert.False(t, State{}.Authenticated())
}
