package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core/user"
)

func TestDashboardPath(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{user.RoleStudent, "/student"},
		{"Student", "/student"},
		{user.RoleCoordinator, "/coordinator"},
		{"Program Coordinator", "/coordinator"},
		{user.RoleSME, "/expert"},
		{"Subject Method Expert", "/expert"},
		{user.RoleHOS, "/hos"},
		{"Head Of Section", "/hos"},
		{user.RoleAdmin, "/admin"},
		{"Administrator", "/admin"},
		{"", LoginPath},
		{"dean", LoginPath},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			assert.Equal(t, tt.want, DashboardPath(tt.role))
		})
	}
}

func TestGuard(t *testing.T) {
	sme := &Session{Email: "sara@test.cd", Role: "Subject Method Expert", Token: "t"}

	tests := []struct {
		name     string
		sess     *Session
		allowed  []string
		wantPath string
		wantOK   bool
	}{
		{name: "no session", sess: nil, allowed: []string{user.RoleSME}, wantPath: LoginPath},
		{name: "no token", sess: &Session{Role: user.RoleSME}, allowed: []string{user.RoleSME}, wantPath: LoginPath},
		{name: "unknown role", sess: &Session{Role: "dean", Token: "t"}, wantPath: LoginPath},
		{name: "any role", sess: sme, wantOK: true},
		{name: "allowed by value", sess: sme, allowed: []string{user.RoleSME}, wantOK: true},
		{name: "allowed by name", sess: sme, allowed: []string{"Program Coordinator", "Subject Method Expert"}, wantOK: true},
		{name: "not allowed", sess: sme, allowed: []string{user.RoleCoordinator, user.RoleHOS}, wantPath: LoginPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := Guard(tt.sess, tt.allowed...)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestFileSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cts", "session.json")
	store := NewFileSessionStore(path)

	sess, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, sess)
	require.NoError(t, store.Clear())

	want := Session{Email: "ada@test.cd", Role: user.RoleStudent, Token: "t", RefreshToken: "r"}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	sess, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, want, *sess)

	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	t.Run("corrupted file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("lol"), 0o600))
		_, err := store.Load()
		assert.Error(t, err)
	})
}
