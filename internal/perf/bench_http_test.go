package perf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sitebudget/sitebudget/internal/chart"
	"github.com/sitebudget/sitebudget/internal/ledger"
	"github.com/sitebudget/sitebudget/internal/platform/db"
	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
)

func sampleBars(n int) []chart.Bar {
	bars := make([]chart.Bar, n)
	for i := range bars {
		bars[i] = chart.Bar{Label: fmt.Sprintf("Building %d", i+1), Budget: float64(50000 + i*1000), Spent: float64(30000 + i*1500)}
	}
	return bars
}

func newLedger(tb testing.TB) (*ledger.Service, int64) {
	tb.Helper()
	ctx := context.Background()
	conn, err := db.NewSQLite(ctx, filepath.Join(tb.TempDir(), "perf.db"))
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = conn.Close() })
	_, err = db.MigrateSQLite(ctx, conn)
	require.NoError(tb, err)

	p, err := projects.NewService(projects.NewSQLiteRepository(conn)).Create(ctx, projects.NewProject{Name: "Bench", Budget: decimal.NewFromInt(1_000_000)})
	require.NoError(tb, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ledger.NewService(ledger.NewSQLiteRepository(conn), nil, nil, logger), p.ID
}

func TestChartRenderLatency(t *testing.T) {
	bars := sampleBars(50)
	samples := make([]time.Duration, 0, 20)
	for i := 0; i < 20; i++ {
		start := time.Now()
		require.NoError(t, chart.Render(io.Discard, bars, chart.DefaultOptions()))
		samples = append(samples, time.Since(start))
	}

	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("chart render latency regression: p95=%s threshold=250ms", p95)
	}
}

func TestRecordEntryLatency(t *testing.T) {
	svc, projectID := newLedger(t)
	ctx := context.Background()

	samples := make([]time.Duration, 0, 30)
	for i := 0; i < 30; i++ {
		start := time.Now()
		_, err := svc.RecordEntry(ctx, ledger.EntryInput{ProjectID: projectID, Description: "Bench entry", Amount: "12.50", Role: rbac.RoleStore})
		require.NoError(t, err)
		samples = append(samples, time.Since(start))
	}

	if p95 := percentile95(samples); p95 > 500*time.Millisecond {
		t.Fatalf("record entry latency regression: p95=%s threshold=500ms", p95)
	}
}

func BenchmarkChartRender(b *testing.B) {
	bars := sampleBars(20)
	var buf bytes.Buffer
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := chart.Render(&buf, bars, chart.DefaultOptions()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRecordEntry(b *testing.B) {
	svc, projectID := newLedger(b)
	ctx := context.Background()
	input := ledger.EntryInput{ProjectID: projectID, Description: "Bench entry", Amount: "1", Role: rbac.RoleExecution}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.RecordEntry(ctx, input); err != nil {
			b.Fatal(err)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
