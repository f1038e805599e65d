package cli

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sitebudget/sitebudget/internal/app"
	"github.com/sitebudget/sitebudget/internal/auth"
	"github.com/sitebudget/sitebudget/internal/ledger"
	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
)

//go:embed fixtures.toml
var defaultFixtures string

// openingBalance describes the ledger entry carrying a project's initial spend.
const openingBalance = "Opening balance"

// Fixtures is the seed document.
type Fixtures struct {
	Accounts []FixtureAccount `toml:"accounts"`
	Projects []FixtureProject `toml:"projects"`
}

type FixtureAccount struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Role     string `toml:"role"`
}

type FixtureProject struct {
	Name   string `toml:"name"`
	Status string `toml:"status"`
	Budget string `toml:"budget"`
	Spent  string `toml:"spent"`
}

// SeedResult counts the rows a seed run created.
type SeedResult struct {
	Accounts int
	Projects int
}

var flagFixtures string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo accounts and projects",
	Long:  "Load demo accounts and projects. Existing usernames are skipped and projects are only created into an empty registry.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		fx, err := LoadFixtures(flagFixtures)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := Seed(cmd.Context(), store, fx, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d accounts, %d projects\n", res.Accounts, res.Projects)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&flagFixtures, "file", "f", "", "TOML fixtures file (defaults to the built-in demo data)")
}

// LoadFixtures decodes path, or the built-in fixtures when path is empty.
// Unknown keys are rejected.
func LoadFixtures(path string) (Fixtures, error) {
	var (
		fx   Fixtures
		meta toml.MetaData
		err  error
	)
	if path == "" {
		meta, err = toml.Decode(defaultFixtures, &fx)
	} else {
		meta, err = toml.DecodeFile(path, &fx)
	}
	if err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Fixtures{}, fmt.Errorf("decode fixtures: unknown keys %s", strings.Join(keys, ", "))
	}
	return fx, nil
}

// Seed creates the fixture accounts and projects. A project's opening spend
// is booked through the ledger so spent always equals the sum of entries.
func Seed(ctx context.Context, store *app.Store, fx Fixtures, logger *slog.Logger) (SeedResult, error) {
	var res SeedResult

	accounts := auth.NewService(store.Accounts())
	for _, a := range fx.Accounts {
		_, err := accounts.CreateAccount(ctx, auth.NewAccount{Username: a.Username, Password: a.Password, Role: a.Role})
		if errors.Is(err, auth.ErrDuplicateUsername) {
			logger.Debug("account exists", slog.String("username", a.Username))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed account %q: %w", a.Username, err)
		}
		res.Accounts++
	}

	registry := projects.NewService(store.Projects())
	existing, err := registry.Count(ctx)
	if err != nil {
		return res, err
	}
	if existing > 0 {
		logger.Info("projects already present, skipping", slog.Int("count", existing))
		return res, nil
	}

	planned, err := planProjects(fx.Projects)
	if err != nil {
		return res, err
	}

	book := ledger.NewService(store.Ledger(), nil, nil, logger)
	for _, p := range planned {
		created, err := registry.Create(ctx, p.project)
		if err != nil {
			return res, fmt.Errorf("seed project %q: %w", p.project.Name, err)
		}
		if p.spent.IsPositive() {
			if _, err := book.RecordEntry(ctx, ledger.EntryInput{
				ProjectID:   created.ID,
				Description: openingBalance,
				Amount:      p.spent.String(),
				Role:        rbac.RoleAccounts,
			}); err != nil {
				// A project without its opening balance would make every later
				// seed skip, so it is removed again.
				if derr := registry.Delete(ctx, created.ID); derr != nil {
					logger.Error("remove unbalanced project", slog.Int64("project_id", created.ID), slog.Any("error", derr))
				}
				return res, fmt.Errorf("seed project %q: opening balance: %w", p.project.Name, err)
			}
		}
		res.Projects++
	}
	return res, nil
}

type plannedProject struct {
	project projects.NewProject
	spent   decimal.Decimal
}

// planProjects validates every fixture project before any row is written.
func planProjects(fixtures []FixtureProject) ([]plannedProject, error) {
	out := make([]plannedProject, 0, len(fixtures))
	for _, p := range fixtures {
		budget, err := decimal.NewFromString(p.Budget)
		if err != nil {
			return nil, fmt.Errorf("seed project %q: budget: %w", p.Name, err)
		}
		np := projects.NewProject{Name: p.Name, Status: projects.Status(p.Status), Budget: budget}
		if np.Status == "" {
			np.Status = projects.StatusPlanned
		}
		if err := np.Validate(); err != nil {
			return nil, fmt.Errorf("seed project %q: %w", p.Name, err)
		}

		spent := decimal.Zero
		if s := strings.TrimSpace(p.Spent); s != "" {
			if spent, err = decimal.NewFromString(s); err != nil {
				return nil, fmt.Errorf("seed project %q: spent: %w", p.Name, err)
			}
		}
		if spent.IsPositive() {
			if spent, err = ledger.ParseAmount(p.Spent); err != nil {
				return nil, fmt.Errorf("seed project %q: spent: %w", p.Name, err)
			}
		}
		out = append(out, plannedProject{project: np, spent: spent})
	}
	return out, nil
}
