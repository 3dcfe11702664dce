package services

import (
	"bytes"
	"text/template"

	"finboard/internal/analytics"
	"finboard/internal/core"
)

// Insight is one templated dashboard hint.
type Insight struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// InsightInput is everything the insight templates read.
type InsightInput struct {
	MonthlyExpenses core.Money
	CategoryCount   int
	SavingsRate     float64
	AccountCount    int
	TotalBalance    core.Money
}

var insightTemplates = template.Must(template.New("insights").Funcs(template.FuncMap{
	"plural": func(n int) string {
		if n == 1 {
			return ""
		}
		return "s"
	},
}).Parse(`
{{- define "spending" -}}
{{- if .MonthlyExpenses.IsPositive -}}
You've spent ${{ .MonthlyExpenses }} this month across {{ .CategoryCount }} categories.
{{- else -}}
Start tracking your expenses to get personalized insights about your spending patterns.
{{- end -}}
{{- end -}}

{{- define "savings" -}}
{{- if gt .SavingsRate 0.0 -}}
Great job! You're saving {{ printf "%.1f" .SavingsRate }}% of your income this month.
{{- else -}}
Consider setting up automatic transfers to build your savings habit.
{{- end -}}
{{- end -}}

{{- define "accounts" -}}
You have {{ .AccountCount }} account{{ plural .AccountCount }} with a total balance of ${{ .TotalBalance }}.
{{- if eq .AccountCount 0 }} Add your first account to start tracking your finances.{{ end -}}
{{- end -}}
`))

var insightKinds = []struct{ kind, title string }{
	{"spending", "Spending Trends"},
	{"savings", "Saving Opportunity"},
	{"accounts", "Account Summary"},
}

// Insights renders the spending, savings and accounts hints in that order.
func Insights(in InsightInput) ([]Insight, error) {
	out := make([]Insight, 0, len(insightKinds))
	for _, k := range insightKinds {
		var buf bytes.Buffer
		if err := insightTemplates.ExecuteTemplate(&buf, k.kind, in); err != nil {
			return nil, err
		}
		out = append(out, Insight{Kind: k.kind, Title: k.title, Text: buf.String()})
	}
	return out, nil
}

func insightInput(summary analytics.MonthlySummary, accountCount int, total core.Money) InsightInput {
	return InsightInput{
		MonthlyExpenses: summary.TotalExpenses,
		CategoryCount:   len(summary.CategoryBreakdown),
		SavingsRate:     analytics.SavingsRate(summary.TotalIncome, summary.TotalExpenses),
		AccountCount:    accountCount,
		TotalBalance:    total,
	}
}
