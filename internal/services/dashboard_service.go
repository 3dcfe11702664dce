package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finboard/internal/analytics"
	"finboard/internal/core"
)

// RecentLimit is the number of transactions shown on the dashboard.
const RecentLimit = 5

// Dashboard is the data behind the dashboard view.
type Dashboard struct {
	TotalBalance       core.Money                `json:"totalBalance"`
	AccountCount       int                       `json:"accountCount"`
	MonthlyIncome      core.Money                `json:"monthlyIncome"`
	MonthlyExpenses    core.Money                `json:"monthlyExpenses"`
	SavingsRate        float64                   `json:"savingsRate"`
	RecentTransactions []core.Transaction        `json:"recentTransactions"`
	CategoryData       []analytics.CategoryValue `json:"categoryData"`
	Weekly             []analytics.DayTotal      `json:"weekly"`
	Insights           []Insight                 `json:"insights"`
}

type DashboardService struct {
	accounts     *AccountService
	transactions *TransactionService
	analytics    *AnalyticsService
}

func NewDashboardService(accounts *AccountService, transactions *TransactionService, analytics *AnalyticsService) *DashboardService {
	return &DashboardService{accounts: accounts, transactions: transactions, analytics: analytics}
}

// Build composes the dashboard for ref. Each part fails soft on its own and
// Err joins whatever failed.
func (s *DashboardService) Build(ctx context.Context, userID string, ref time.Time) ReadResult[Dashboard] {
	accounts := s.accounts.List(ctx, userID)
	total := s.accounts.TotalBalance(ctx, userID)
	monthly := s.analytics.Monthly(ctx, userID, ref)
	weekly := s.analytics.Weekly(ctx, userID, ref)
	recent := s.transactions.Recent(ctx, userID, RecentLimit)

	summary := monthly.Value
	d := Dashboard{
		TotalBalance:       total.Value,
		AccountCount:       len(accounts.Value),
		MonthlyIncome:      summary.TotalIncome,
		MonthlyExpenses:    summary.TotalExpenses,
		SavingsRate:        analytics.SavingsRate(summary.TotalIncome, summary.TotalExpenses),
		RecentTransactions: recent.Value,
		CategoryData:       analytics.CategorySeries(summary.CategoryBreakdown),
		Weekly:             weekly.Value,
	}

	insights, err := Insights(insightInput(summary, d.AccountCount, d.TotalBalance))
	if err != nil {
		err = fmt.Errorf("render insights: %w", err)
		insights = []Insight{}
	}
	d.Insights = insights

	return ReadResult[Dashboard]{
		Value: d,
		Err:   errors.Join(accounts.Err, total.Err, monthly.Err, weekly.Err, recent.Err, err),
	}
}
