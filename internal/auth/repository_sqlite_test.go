package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebudget/sitebudget/internal/platform/db"
	"github.com/sitebudget/sitebudget/internal/rbac"
	"github.com/sitebudget/sitebudget/internal/shared"
)

func TestSQLiteRepositoryAccounts(t *testing.T) {
	ctx := context.Background()
	conn, err := db.NewSQLite(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = db.MigrateSQLite(ctx, conn)
	require.NoError(t, err)

	svc := NewService(NewSQLiteRepository(conn))

	created, err := svc.CreateAccount(ctx, NewAccount{Username: "execution", Password: "execution-pass", Role: "Execution"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = svc.CreateAccount(ctx, NewAccount{Username: "execution", Password: "another-pass", Role: "Store"})
	require.ErrorIs(t, err, ErrDuplicateUsername)

	account, err := svc.Authenticate(ctx, "execution", "execution-pass")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleExecution, account.Role)
	assert.False(t, account.CreatedAt.IsZero())

	byID, err := svc.Account(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "execution", byID.Username)

	_, err = svc.Account(ctx, created.ID+100)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
