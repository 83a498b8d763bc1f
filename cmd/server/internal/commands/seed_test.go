package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/models"
	"github.com/wolfeidau/payroll/internal/store/memory"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "owners.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedOwners(t *testing.T) {
	ctx := context.Background()
	owners := memory.NewOwnerStore()

	path := writeSeedFile(t, `
- name: alice
  password: alice-password
- name: bob
  password: bob-password
  roles: [MANAGER, AUDITOR]
`)

	n, err := seedOwners(ctx, owners, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	alice, err := owners.GetOwnerByName(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{models.RoleManager}, alice.Roles)
	require.NotEqual(t, "alice-password", alice.CredentialHash)

	bob, err := owners.GetOwnerByName(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []string{"MANAGER", "AUDITOR"}, bob.Roles)

	authn := auth.NewCredentialAuthenticator(owners, nil)
	principal, err := authn.CheckPassword(ctx, "alice", "alice-password")
	require.NoError(t, err)
	require.Equal(t, "alice", principal.Name)

	_, err = authn.CheckPassword(ctx, "alice", "bob-password")
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestSeedOwnersReplacesCredentials(t *testing.T) {
	ctx := context.Background()
	owners := memory.NewOwnerStore()

	_, err := seedOwners(ctx, owners, writeSeedFile(t, "- name: alice\n  password: first\n"))
	require.NoError(t, err)
	first, err := owners.GetOwnerByName(ctx, "alice")
	require.NoError(t, err)

	_, err = seedOwners(ctx, owners, writeSeedFile(t, "- name: alice\n  password: second\n"))
	require.NoError(t, err)
	second, err := owners.GetOwnerByName(ctx, "alice")
	require.NoError(t, err)

	require.Equal(t, first.OwnerID, second.OwnerID)

	authn := auth.NewCredentialAuthenticator(owners, nil)
	_, err = authn.CheckPassword(ctx, "alice", "second")
	require.NoError(t, err)
	_, err = authn.CheckPassword(ctx, "alice", "first")
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestLoadSeedFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "missing name", content: "- password: x\n", wantErr: "name is required"},
		{name: "missing password", content: "- name: alice\n", wantErr: "password is required"},
		{name: "duplicate", content: "- name: alice\n  password: a\n- name: alice\n  password: b\n", wantErr: "duplicate name"},
		{name: "not a list", content: "name: alice\n", wantErr: "failed to parse seed file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSeedFile(writeSeedFile(t, tt.content))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := loadSeedFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.ErrorContains(t, err, "failed to read seed file")
	})
}
