package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebudget/sitebudget/internal/events"
	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
)

type memoryRepo struct {
	mu         sync.Mutex
	projects   map[int64]projects.Project
	entries    []Entry
	failUpdate error
}

type memoryTx struct {
	projects   map[int64]projects.Project
	entries    []Entry
	failUpdate error
}

func newMemoryRepo(ps ...projects.Project) *memoryRepo {
	repo := &memoryRepo{projects: make(map[int64]projects.Project)}
	for _, p := range ps {
		repo.projects[p.ID] = p
	}
	return repo
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		projects:   make(map[int64]projects.Project, len(m.projects)),
		entries:    append([]Entry(nil), m.entries...),
		failUpdate: m.failUpdate,
	}
	for id, p := range m.projects {
		tx.projects[id] = p
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.projects = tx.projects
	m.entries = tx.entries
	return nil
}

func (m *memoryRepo) ListEntries(_ context.Context, projectID int64, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok {
		return nil, ErrProjectNotFound
	}
	var out []Entry
	for _, e := range m.entries {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) project(id int64) projects.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[id]
}

func (m *memoryRepo) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (t *memoryTx) GetProjectForUpdate(_ context.Context, id int64) (projects.Project, error) {
	p, ok := t.projects[id]
	if !ok {
		return projects.Project{}, ErrProjectNotFound
	}
	return p, nil
}

func (t *memoryTx) InsertEntry(_ context.Context, entry Entry) (Entry, error) {
	entry.ID = int64(len(t.entries) + 1)
	t.entries = append(t.entries, entry)
	return entry, nil
}

func (t *memoryTx) UpdateProjectSpend(_ context.Context, id int64, spent decimal.Decimal, status projects.Status, at time.Time) error {
	if t.failUpdate != nil {
		return t.failUpdate
	}
	p := t.projects[id]
	p.Spent = spent
	p.Status = status
	p.UpdatedAt = at
	t.projects[id] = p
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.EntryRecorded
	err    error
}

func (c *capturePublisher) PublishEntryRecorded(_ context.Context, event events.EntryRecorded) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *capturePublisher) Close() error { return nil }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func foundation() projects.Project {
	return projects.Project{ID: 1, Name: "Building A - Foundation", Status: projects.StatusInProgress, Budget: dec("50000"), Spent: dec("35000")}
}

func TestRecordEntryOverBudgetScenario(t *testing.T) {
	repo := newMemoryRepo(foundation())
	pub := &capturePublisher{}
	svc := NewService(repo, pub, nil, nil)

	receipt, err := svc.RecordEntry(context.Background(), EntryInput{
		ProjectID:   1,
		Description: "Concrete delivery",
		Amount:      "20000",
		Role:        rbac.RoleStore,
		AccountID:   3,
	})
	require.NoError(t, err)

	assert.True(t, receipt.Project.Spent.Equal(dec("55000")))
	assert.Equal(t, projects.StatusOverBudget, receipt.Project.Status)
	assert.Equal(t, "Store", receipt.Entry.Department)
	assert.Equal(t, "Concrete delivery", receipt.Entry.Description)
	assert.Equal(t, int64(3), receipt.Entry.AccountID)

	stored := repo.project(1)
	assert.True(t, stored.Spent.Equal(dec("55000")))
	assert.Equal(t, projects.StatusOverBudget, stored.Status)
	assert.Equal(t, 1, repo.entryCount())

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeEntryRecorded, pub.events[0].Type)
	assert.Equal(t, "55000", pub.events[0].ProjectSpent)
	assert.Equal(t, "Over Budget", pub.events[0].ProjectStatus)
}

func TestRecordEntryTrimsDescription(t *testing.T) {
	repo := newMemoryRepo(foundation())
	svc := NewService(repo, nil, nil, nil)

	receipt, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: "  Rebar  ", Amount: " 12.50 ", Role: rbac.RolePurchase})
	require.NoError(t, err)
	assert.Equal(t, "Rebar", receipt.Entry.Description)
	assert.True(t, receipt.Entry.Amount.Equal(dec("12.5")))
	assert.Equal(t, projects.StatusInProgress, receipt.Project.Status)
}

func TestRecordEntryRejectsInvalidAmount(t *testing.T) {
	for _, amount := range []string{"", "   ", "abc", "0", "0.00", "-5", "NaN", "Inf", "12,5", "1e",
		"0.001", "10.005", "1e-100000", "1e20000000", "1000000000000", "999999999999.999", "1234567890123456789012"} {
		t.Run(amount, func(t *testing.T) {
			repo := newMemoryRepo(foundation())
			pub := &capturePublisher{}
			svc := NewService(repo, pub, nil, nil)

			_, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: "Cement", Amount: amount, Role: rbac.RoleStore})
			require.ErrorIs(t, err, ErrInvalidAmount)
			assert.True(t, repo.project(1).Spent.Equal(dec("35000")))
			assert.Zero(t, repo.entryCount())
			assert.Empty(t, pub.events)
		})
	}
}

func TestRecordEntryAcceptsCentPrecision(t *testing.T) {
	for amount, want := range map[string]string{
		"12.5000":         "12.5",
		"0.01":            "0.01",
		"1.2e2":           "120",
		"999999999999.99": "999999999999.99",
	} {
		t.Run(amount, func(t *testing.T) {
			repo := newMemoryRepo(foundation())
			svc := NewService(repo, nil, nil, nil)

			receipt, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: "Cement", Amount: amount, Role: rbac.RoleStore})
			require.NoError(t, err)
			assert.True(t, receipt.Entry.Amount.Equal(dec(want)))
			assert.LessOrEqual(t, -receipt.Entry.Amount.Exponent(), int32(AmountScale))
		})
	}
}

func TestRecordEntryRejectsInvalidDescription(t *testing.T) {
	for name, description := range map[string]string{
		"empty":      "",
		"whitespace": " \t\n ",
		"too long":   strings.Repeat("x", MaxDescriptionLength+1),
	} {
		t.Run(name, func(t *testing.T) {
			repo := newMemoryRepo(foundation())
			svc := NewService(repo, nil, nil, nil)

			_, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: description, Amount: "10", Role: rbac.RoleStore})
			require.ErrorIs(t, err, ErrInvalidDescription)
			assert.True(t, repo.project(1).Spent.Equal(dec("35000")))
			assert.Zero(t, repo.entryCount())
		})
	}
}

func TestRecordEntryDescriptionLengthCountsCharacters(t *testing.T) {
	repo := newMemoryRepo(foundation())
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: strings.Repeat("é", MaxDescriptionLength), Amount: "1", Role: rbac.RoleBilling})
	require.NoError(t, err)
}

func TestRecordEntryMissingProjectWinsOverValidation(t *testing.T) {
	repo := newMemoryRepo(foundation())
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 99, Description: "", Amount: "-1", Role: rbac.RoleStore})
	require.ErrorIs(t, err, ErrProjectNotFound)
	assert.Zero(t, repo.entryCount())
}

func TestRecordEntryUnknownRole(t *testing.T) {
	repo := newMemoryRepo(foundation())
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: "Paint", Amount: "5", Role: rbac.Role("Intern")})
	require.ErrorIs(t, err, rbac.ErrUnknownRole)
	assert.Zero(t, repo.entryCount())
}

func TestRecordEntryRollsBackOnStorageFailure(t *testing.T) {
	repo := newMemoryRepo(foundation())
	repo.failUpdate = errors.New("disk full")
	pub := &capturePublisher{}
	svc := NewService(repo, pub, nil, nil)

	_, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: "Paint", Amount: "5", Role: rbac.RoleStore})
	require.Error(t, err)
	assert.Zero(t, repo.entryCount())
	assert.True(t, repo.project(1).Spent.Equal(dec("35000")))
	assert.Empty(t, pub.events)
}

func TestRecordEntrySurvivesPublisherFailure(t *testing.T) {
	repo := newMemoryRepo(foundation())
	svc := NewService(repo, &capturePublisher{err: errors.New("broker down")}, nil, nil)

	_, err := svc.RecordEntry(context.Background(), EntryInput{ProjectID: 1, Description: "Paint", Amount: "5", Role: rbac.RoleStore})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.entryCount())
}

func TestSpentTracksEntriesAndOverBudgetIsTerminal(t *testing.T) {
	repo := newMemoryRepo(projects.Project{ID: 1, Name: "Framing", Status: projects.StatusPlanned, Budget: dec("100"), Spent: dec("0")})
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	previous := dec("0")
	sum := dec("0")
	for i, amount := range []string{"40", "0.01", "59.99", "0.01", "25"} {
		receipt, err := svc.RecordEntry(ctx, EntryInput{ProjectID: 1, Description: "line", Amount: amount, Role: rbac.RoleExecution})
		require.NoError(t, err, "entry %d", i)
		sum = sum.Add(dec(amount))

		assert.True(t, receipt.Project.Spent.GreaterThan(previous), "spend must grow")
		assert.True(t, receipt.Project.Spent.Equal(sum))
		if receipt.Project.Spent.GreaterThan(receipt.Project.Budget) {
			assert.Equal(t, projects.StatusOverBudget, receipt.Project.Status)
		}
		previous = receipt.Project.Spent
	}

	entries, err := svc.ListEntries(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	total := dec("0")
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	assert.True(t, total.Equal(repo.project(1).Spent))
	assert.Equal(t, projects.StatusOverBudget, repo.project(1).Status)
	assert.Equal(t, int64(5), entries[0].ID)
}

func TestListEntries(t *testing.T) {
	repo := newMemoryRepo(foundation())
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordEntry(ctx, EntryInput{ProjectID: 1, Description: "Gravel", Amount: "1", Role: rbac.RoleStore})
		require.NoError(t, err)
	}

	entries, err := svc.ListEntries(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = svc.ListEntries(ctx, 42, 10)
	require.ErrorIs(t, err, ErrProjectNotFound)
}
