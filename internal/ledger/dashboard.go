package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ecmcloud/ecm/internal/auth"
	"github.com/ecmcloud/ecm/internal/fiscal"
)

// Period selectors for the dashboard summary.
const (
	PeriodCurrent  = "current"
	PeriodPrevious = "previous"
	PeriodCustom   = "custom"
	PeriodAll      = "all"
)

// ScopeMine restricts an admin's dashboard to their own projects.
const ScopeMine = "my"

// ErrInvalidRange is returned for a custom period with unparseable or
// reversed dates.
var ErrInvalidRange = errors.New("invalid date range")

var (
	allTimeStart = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	allTimeEnd   = time.Date(2100, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// SummaryQuery selects the period and scope of a dashboard summary.
type SummaryQuery struct {
	PeriodType string
	StartDate  string
	EndDate    string
	ViewScope  string
}

// PeriodInfo describes the range a summary covers.
type PeriodInfo struct {
	Type          string `json:"type"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	CurrentPeriod int    `json:"currentPeriod"`
	FiscalMonth   int    `json:"fiscalMonth"`
}

// Totals are the money figures of a summary.
type Totals struct {
	TotalContract   int64   `json:"totalContract"`
	TotalCost       int64   `json:"totalCost"`
	GrossProfit     int64   `json:"grossProfit"`
	GrossProfitRate float64 `json:"grossProfitRate"`
}

// ProjectCounts counts the projects in a summary by status.
type ProjectCounts struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ProjectBrief is the short form of a project listed in a summary bucket.
type ProjectBrief struct {
	ID             int64   `json:"id"`
	ProjectCode    string  `json:"projectCode"`
	Name           string  `json:"name"`
	ClientName     string  `json:"clientName"`
	ContractAmount int64   `json:"contractAmount"`
	Status         string  `json:"status"`
	EndDate        *string `json:"endDate,omitempty"`
	InvoiceDate    *string `json:"invoiceDate,omitempty"`
}

// ProjectBucket groups projects needing attention.
type ProjectBucket struct {
	Count    int            `json:"count"`
	Total    int64          `json:"total"`
	Projects []ProjectBrief `json:"projects"`
}

// Summary is the dashboard overview for one user.
type Summary struct {
	PeriodInfo    PeriodInfo       `json:"periodInfo"`
	Summary       Totals           `json:"summary"`
	Projects      ProjectCounts    `json:"projects"`
	CostBreakdown map[string]int64 `json:"costBreakdown"`
	Unbilled      ProjectBucket    `json:"unbilled"`
	Unpaid        ProjectBucket    `json:"unpaid"`
	PeriodDisplay string           `json:"periodDisplay"`
}

type categoryTotal struct {
	Category string `db:"category"`
	Total    int64  `db:"total"`
}

// Summary computes contract, cost and profit totals for the requested period.
// Users who are not admins, and admins asking for their own scope, only see
// their own projects that overlap the period plus general-expense projects.
func (s *Service) Summary(ctx context.Context, identity *auth.Identity, q SummaryQuery) (*Summary, error) {
	if q.PeriodType == "" {
		q.PeriodType = PeriodCurrent
	}

	var out *Summary
	err := s.view(ctx, identity.CompanyID, func(st *store) error {
		fs, err := st.fiscal(ctx)
		if err != nil {
			return err
		}
		unbilledDef, err := st.unbilledDefinition(ctx)
		if err != nil {
			return err
		}

		today := s.now()
		currentPeriod := fs.PeriodAt(today)
		rng, err := summaryRange(fs, currentPeriod, q)
		if err != nil {
			return err
		}
		start := rng.Start.Format(time.DateOnly)
		end := rng.End.Format(time.DateOnly)

		b := st.sb.Select(projectColumns...).From("projects").OrderBy("id")
		if q.ViewScope == ScopeMine || !identity.IsAdmin() {
			b = b.Where(sq.Eq{"user_id": identity.UserID}).Where(sq.Or{
				sq.Eq{"is_general_expense": true},
				sq.And{sq.GtOrEq{"start_date": start}, sq.LtOrEq{"start_date": end}},
				sq.And{sq.GtOrEq{"end_date": start}, sq.LtOrEq{"end_date": end}},
				sq.And{sq.LtOrEq{"start_date": start}, sq.Or{sq.GtOrEq{"end_date": end}, sq.Eq{"end_date": nil}}},
			})
		}
		projects := []Project{}
		if err := st.selectAll(ctx, &projects, b); err != nil {
			return fmt.Errorf("querying dashboard projects: %w", err)
		}

		ids := make([]int64, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}

		totals := []categoryTotal{}
		if len(ids) > 0 {
			err := st.selectAll(ctx, &totals, st.sb.
				Select("category", "COALESCE(SUM(amount), 0) AS total").
				From("costs").
				Where(sq.Eq{"project_id": ids}).
				Where(sq.GtOrEq{"date": start}).
				Where(sq.LtOrEq{"date": end}).
				GroupBy("category"))
			if err != nil {
				return fmt.Errorf("summing dashboard costs: %w", err)
			}
		}

		out = buildSummary(projects, totals, unbilledDef, today.Format(time.DateOnly))
		out.PeriodInfo = PeriodInfo{
			Type:          q.PeriodType,
			StartDate:     start,
			EndDate:       end,
			CurrentPeriod: currentPeriod,
			FiscalMonth:   fs.StartMonth,
		}
		switch q.PeriodType {
		case PeriodCurrent:
			out.PeriodDisplay = fmt.Sprintf("第%d期", currentPeriod)
		case PeriodPrevious:
			out.PeriodDisplay = fmt.Sprintf("第%d期", currentPeriod-1)
		default:
			out.PeriodDisplay = "全期間"
		}
		return nil
	})
	return out, err
}

func summaryRange(fs fiscal.Settings, currentPeriod int, q SummaryQuery) (fiscal.Range, error) {
	switch q.PeriodType {
	case PeriodCurrent:
		return fs.PeriodRange(currentPeriod), nil
	case PeriodPrevious:
		return fs.PeriodRange(currentPeriod - 1), nil
	case PeriodCustom:
		if q.StartDate == "" || q.EndDate == "" {
			break
		}
		start, err := time.Parse(time.DateOnly, q.StartDate)
		if err != nil {
			return fiscal.Range{}, fmt.Errorf("%w: startDate must be YYYY-MM-DD", ErrInvalidRange)
		}
		end, err := time.Parse(time.DateOnly, q.EndDate)
		if err != nil {
			return fiscal.Range{}, fmt.Errorf("%w: endDate must be YYYY-MM-DD", ErrInvalidRange)
		}
		if end.Before(start) {
			return fiscal.Range{}, fmt.Errorf("%w: endDate is before startDate", ErrInvalidRange)
		}
		return fiscal.Range{Start: start, End: end}, nil
	}
	return fiscal.Range{Start: allTimeStart, End: allTimeEnd}, nil
}

func buildSummary(projects []Project, totals []categoryTotal, unbilledDef, today string) *Summary {
	out := &Summary{
		CostBreakdown: make(map[string]int64, len(totals)),
		Unbilled:      ProjectBucket{Projects: []ProjectBrief{}},
		Unpaid:        ProjectBucket{Projects: []ProjectBrief{}},
	}

	for _, t := range totals {
		out.CostBreakdown[t.Category] = t.Total
		out.Summary.TotalCost += t.Total
	}

	for _, p := range projects {
		out.Summary.TotalContract += p.ContractAmount
		switch p.Status {
		case StatusActive:
			out.Projects.Active++
		case StatusCompleted:
			out.Projects.Completed++
		}

		if p.IsGeneralExpense {
			continue
		}
		if isUnbilled(p, unbilledDef, today) {
			out.Unbilled.add(p)
		}
		if hasDate(p.InvoiceDate) && !hasDate(p.PaymentDate) {
			out.Unpaid.add(p)
		}
	}
	out.Projects.Total = len(projects)

	out.Summary.GrossProfit = out.Summary.TotalContract - out.Summary.TotalCost
	if out.Summary.TotalContract > 0 {
		rate := float64(out.Summary.GrossProfit) / float64(out.Summary.TotalContract) * 100
		out.Summary.GrossProfitRate = math.Round(rate*10) / 10
	}
	return out
}

func isUnbilled(p Project, definition, today string) bool {
	if hasDate(p.InvoiceDate) {
		return false
	}
	switch definition {
	case UnbilledActive:
		return p.Status == StatusActive
	case UnbilledCompleted:
		return p.Status == StatusCompleted
	case UnbilledOverdue:
		return hasDate(p.EndDate) && *p.EndDate < today
	}
	return false
}

func hasDate(d *string) bool {
	return d != nil && *d != ""
}

func (b *ProjectBucket) add(p Project) {
	b.Count++
	b.Total += p.ContractAmount
	b.Projects = append(b.Projects, ProjectBrief{
		ID:             p.ID,
		ProjectCode:    p.ProjectCode,
		Name:           p.Name,
		ClientName:     p.ClientName,
		ContractAmount: p.ContractAmount,
		Status:         p.Status,
		EndDate:        p.EndDate,
		InvoiceDate:    p.InvoiceDate,
	})
}
