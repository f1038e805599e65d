package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebudget/sitebudget/internal/app"
	"github.com/sitebudget/sitebudget/internal/auth"
	"github.com/sitebudget/sitebudget/internal/ledger"
	"github.com/sitebudget/sitebudget/internal/projects"
)

func newTestStore(t *testing.T) *app.Store {
	t.Helper()
	ctx := context.Background()
	cfg := &app.Config{DBDriver: app.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "seed.db")}
	store, err := app.OpenStore(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.Migrate(ctx)
	require.NoError(t, err)
	return store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultFixtures(t *testing.T) {
	fx, err := LoadFixtures("")
	require.NoError(t, err)
	assert.Len(t, fx.Accounts, 5)
	require.Len(t, fx.Projects, 3)
	assert.Equal(t, "Building A - Foundation", fx.Projects[0].Name)
}

func TestLoadFixturesRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[projects]]\nname = \"X\"\nbudjet = \"1\"\n"), 0o600))

	_, err := LoadFixtures(path)
	require.ErrorContains(t, err, "budjet")
}

func TestSeedIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx, err := LoadFixtures("")
	require.NoError(t, err)

	res, err := Seed(ctx, store, fx, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Accounts: 5, Projects: 3}, res)

	res, err = Seed(ctx, store, fx, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{}, res)

	list, err := projects.NewService(store.Projects()).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	book := ledger.NewService(store.Ledger(), nil, nil, quietLogger())
	for _, p := range list {
		entries, err := book.ListEntries(ctx, p.ID, 0)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, e := range entries {
			assert.Equal(t, "Accounts", e.Department)
			assert.Equal(t, openingBalance, e.Description)
			sum = sum.Add(e.Amount)
		}
		assert.True(t, sum.Equal(p.Spent), "%s: %s != %s", p.Name, sum, p.Spent)
	}

	account, err := auth.NewService(store.Accounts()).Authenticate(ctx, "billing", "password123")
	require.NoError(t, err)
	assert.Equal(t, "Billing", account.Role.String())
}

func TestSeedStatusesMatchFixtures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx, err := LoadFixtures("")
	require.NoError(t, err)
	_, err = Seed(ctx, store, fx, quietLogger())
	require.NoError(t, err)

	list, err := projects.NewService(store.Projects()).List(ctx)
	require.NoError(t, err)
	byName := make(map[string]projects.Project, len(list))
	for _, p := range list {
		byName[p.Name] = p
	}
	assert.Equal(t, projects.StatusInProgress, byName["Building A - Foundation"].Status)
	assert.True(t, byName["Building B - Framing"].Spent.Equal(decimal.NewFromInt(42000)))
	assert.Equal(t, projects.StatusPlanned, byName["Building C - Electrical"].Status)
	assert.True(t, byName["Building C - Electrical"].Spent.IsZero())
}

func TestSeedRejectsBadFixturesBeforeWriting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx, err := LoadFixtures("")
	require.NoError(t, err)

	bad := fx
	bad.Projects = append([]FixtureProject(nil), fx.Projects...)
	bad.Projects[1].Spent = "0.001"

	_, err = Seed(ctx, store, bad, quietLogger())
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	registry := projects.NewService(store.Projects())
	n, err := registry.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	res, err := Seed(ctx, store, fx, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Projects)
}

func TestSeedRemovesProjectWhenOpeningBalanceFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fx, err := LoadFixtures("")
	require.NoError(t, err)

	_, err = store.SQL.ExecContext(ctx, `
		CREATE TRIGGER ledger_offline BEFORE INSERT ON ledger_entries
		BEGIN SELECT RAISE(ABORT, 'ledger offline'); END`)
	require.NoError(t, err)

	_, err = Seed(ctx, store, fx, quietLogger())
	require.ErrorContains(t, err, "opening balance")

	registry := projects.NewService(store.Projects())
	n, err := registry.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "no project may be left without its opening balance")

	_, err = store.SQL.ExecContext(ctx, `DROP TRIGGER ledger_offline`)
	require.NoError(t, err)

	res, err := Seed(ctx, store, fx, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Projects)

	list, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].Spent.Equal(decimal.NewFromInt(35000)))
}
