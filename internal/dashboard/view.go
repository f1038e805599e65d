package dashboard

import (
	"github.com/shopspring/decimal"

	"github.com/sitebudget/sitebudget/internal/chart"
	"github.com/sitebudget/sitebudget/internal/projects"
	"github.com/sitebudget/sitebudget/internal/rbac"
)

// PageData is the view model of the dashboard template.
type PageData struct {
	Username      string
	Role          string
	Projects      []ProjectRow
	ChartURL      string
	CanReadLedger bool
}

// ProjectRow is one project card.
type ProjectRow struct {
	ID          int64
	Name        string
	Status      string
	Budget      decimal.Decimal
	Spent       decimal.Decimal
	Remaining   decimal.Decimal
	Utilisation float64
	OverBudget  bool
	Band        string
}

// BuildPage assembles the dashboard view model for a principal.
func BuildPage(principal rbac.Principal, list []projects.Project, chartURL string) PageData {
	rows := make([]ProjectRow, 0, len(list))
	for _, p := range list {
		util := p.Utilisation()
		rows = append(rows, ProjectRow{
			ID:          p.ID,
			Name:        p.Name,
			Status:      string(p.Status),
			Budget:      p.Budget,
			Spent:       p.Spent,
			Remaining:   p.Remaining(),
			Utilisation: util,
			OverBudget:  p.OverBudget(),
			Band:        band(util),
		})
	}
	return PageData{
		Username:      principal.Username,
		Role:          principal.Role.String(),
		Projects:      rows,
		ChartURL:      chartURL,
		CanReadLedger: principal.Role.Can(rbac.PermLedgerRead),
	}
}

// ChartBars converts projects into chart input.
func ChartBars(list []projects.Project) []chart.Bar {
	bars := make([]chart.Bar, 0, len(list))
	for _, p := range list {
		bars = append(bars, chart.Bar{
			Label:  p.Name,
			Budget: p.Budget.InexactFloat64(),
			Spent:  p.Spent.InexactFloat64(),
		})
	}
	return bars
}

func band(util float64) string {
	switch {
	case util > 100:
		return "over"
	case util >= 80:
		return "high"
	case util >= 50:
		return "mid"
	default:
		return "low"
	}
}
