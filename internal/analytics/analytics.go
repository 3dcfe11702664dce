// Package analytics holds the date-window and aggregation rules behind the
// dashboard. Everything here is pure; services feed it query results.
package analytics

import (
	"math"
	"sort"
	"time"

	"finboard/internal/core"
)

// DaysInWeek is the fixed length of a weekly series.
const DaysInWeek = 7

// WeekStart is the first day of a reporting week.
const WeekStart = time.Sunday

type (
	MonthlySummary struct {
		TotalIncome       core.Money            `json:"totalIncome"`
		TotalExpenses     core.Money            `json:"totalExpenses"`
		NetIncome         core.Money            `json:"netIncome"`
		CategoryBreakdown map[string]core.Money `json:"categoryBreakdown"`
		TransactionCount  int                   `json:"transactionCount"`
	}

	DayTotal struct {
		Name    string     `json:"name"`
		Date    string     `json:"date"`
		Income  core.Money `json:"income"`
		Expense core.Money `json:"expense"`
	}

	MonthTotal struct {
		Name    string     `json:"name"`
		Month   string     `json:"month"`
		Income  core.Money `json:"income"`
		Expense core.Money `json:"expense"`
	}

	CategoryValue struct {
		Name  string     `json:"name"`
		Value core.Money `json:"value"`
	}
)

// EmptyMonthly is the all-zero summary, with a non-nil breakdown.
func EmptyMonthly() MonthlySummary {
	return MonthlySummary{CategoryBreakdown: map[string]core.Money{}}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// MonthRange returns the inclusive bounds of the calendar month containing
// ref in loc.
func MonthRange(ref time.Time, loc *time.Location) (start, end time.Time) {
	ref = ref.In(loc)
	start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// WeekRange returns the inclusive bounds of the Sunday-to-Saturday week
// containing ref in loc.
func WeekRange(ref time.Time, loc *time.Location) (start, end time.Time) {
	day := startOfDay(ref, loc)
	offset := (int(day.Weekday()) - int(WeekStart) + DaysInWeek) % DaysInWeek
	start = day.AddDate(0, 0, -offset)
	end = start.AddDate(0, 0, DaysInWeek).Add(-time.Nanosecond)
	return start, end
}

// Summarize folds transactions into monthly totals. Breakdown values are
// expense-only and always sum to TotalExpenses.
func Summarize(txs []core.Transaction) MonthlySummary {
	s := EmptyMonthly()
	for _, tx := range txs {
		switch tx.Type {
		case core.TransactionIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case core.TransactionExpense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
			name := tx.CategoryName()
			s.CategoryBreakdown[name] = s.CategoryBreakdown[name].Add(tx.Amount)
		default:
			continue
		}
		s.TransactionCount++
	}
	s.NetIncome = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// EmptyWeek returns seven zero-valued days starting at weekStart.
func EmptyWeek(weekStart time.Time, loc *time.Location) []DayTotal {
	weekStart = startOfDay(weekStart, loc)
	days := make([]DayTotal, DaysInWeek)
	for i := range days {
		d := weekStart.AddDate(0, 0, i)
		days[i] = DayTotal{Name: d.Format("Mon"), Date: d.Format("2006-01-02")}
	}
	return days
}

// BucketWeek sums transactions into the seven calendar days that start at
// weekStart. Transactions outside the week are ignored.
func BucketWeek(txs []core.Transaction, weekStart time.Time, loc *time.Location) []DayTotal {
	weekStart = startOfDay(weekStart, loc)
	days := EmptyWeek(weekStart, loc)
	for _, tx := range txs {
		i := dayIndex(weekStart, tx.Date, loc)
		if i < 0 {
			continue
		}
		switch tx.Type {
		case core.TransactionIncome:
			days[i].Income = days[i].Income.Add(tx.Amount)
		case core.TransactionExpense:
			days[i].Expense = days[i].Expense.Add(tx.Amount)
		}
	}
	return days
}

func dayIndex(weekStart, t time.Time, loc *time.Location) int {
	day := startOfDay(t, loc)
	for i := 0; i < DaysInWeek; i++ {
		if weekStart.AddDate(0, 0, i).Equal(day) {
			return i
		}
	}
	return -1
}

// TrendMonths returns the first instant of each of the n calendar months
// ending with ref's month, oldest first.
func TrendMonths(ref time.Time, n int, loc *time.Location) []time.Time {
	if n <= 0 {
		return nil
	}
	ref = ref.In(loc)
	months := make([]time.Time, n)
	for i := 0; i < n; i++ {
		months[i] = time.Date(ref.Year(), ref.Month()-time.Month(n-1-i), 1, 0, 0, 0, 0, loc)
	}
	return months
}

// MonthTotalFor labels a monthly summary for a trend series.
func MonthTotalFor(month time.Time, s MonthlySummary) MonthTotal {
	return MonthTotal{
		Name:    month.Format("Jan"),
		Month:   month.Format("2006-01"),
		Income:  s.TotalIncome,
		Expense: s.TotalExpenses,
	}
}

// CategorySeries flattens a breakdown for charting, largest first.
func CategorySeries(breakdown map[string]core.Money) []CategoryValue {
	out := make([]CategoryValue, 0, len(breakdown))
	for name, v := range breakdown {
		out = append(out, CategoryValue{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value.Cents != out[j].Value.Cents {
			return out[i].Value.Cents > out[j].Value.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SavingsRate is (income-expense)/income as a percentage with one decimal,
// or 0 without income.
func SavingsRate(income, expense core.Money) float64 {
	if !income.IsPositive() {
		return 0
	}
	rate := float64(income.Cents-expense.Cents) / float64(income.Cents) * 100
	return math.Round(rate*10) / 10
}
