// Package report assembles the exportable markdown report.
package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/domain"
)

// CurrencySuffix is appended to every rendered amount.
const CurrencySuffix = "원"

// TopTransactions is the fixed size of the report's top transactions table.
// The dashboard's top-N setting does not apply here.
const TopTransactions = 5

// NoNarrative replaces the narrative section body when none was generated.
const NoNarrative = "_No narrative was generated for this report._"

var printer = message.NewPrinter(language.Korean)

// Input is everything needed to render one report.
type Input struct {
	Summary     *analysis.Summary
	Narrative   string
	GeneratedAt time.Time
}

// Assemble renders the report: metrics, category breakdown, top
// transactions and the narrative, in that order. The narrative is inserted
// verbatim.
func Assemble(in Input) (string, error) {
	s := in.Summary
	if s == nil {
		return "", fmt.Errorf("Assemble: summary: %w", domain.ErrMissingInput)
	}
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	var b strings.Builder
	b.WriteString("# Monthly Spending Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n---\n\n", generated.Format("2006-01-02 15:04"))

	writeMetrics(&b, s)
	b.WriteString("\n---\n\n")
	writeCategories(&b, s)
	b.WriteString("\n---\n\n")
	writeTopRows(&b, s)
	b.WriteString("\n---\n\n")

	b.WriteString("## 4. Narrative\n\n")
	if strings.TrimSpace(in.Narrative) == "" {
		b.WriteString(NoNarrative)
	} else {
		b.WriteString(in.Narrative)
	}
	b.WriteString("\n")

	return b.String(), nil
}

// Filename returns the download name for a report generated at t.
func Filename(t time.Time) string {
	return "monthly-report-" + t.Format("20060102") + ".md"
}

// Won formats an amount with digit grouping and the currency suffix.
func Won(amount int64) string {
	return printer.Sprintf("%d", amount) + CurrencySuffix
}

func writeMetrics(b *strings.Builder, s *analysis.Summary) {
	delta := s.BudgetDelta
	if delta < 0 {
		delta = -delta
	}
	b.WriteString("## 1. Key Metrics\n\n")
	b.WriteString("| Item | Amount (share) | Note |\n| :--- | :--- | :--- |\n")
	fmt.Fprintf(b, "| **Budget** | %s | - |\n", Won(s.Budget))
	fmt.Fprintf(b, "| **Total spend** | %s | %s **%s** against budget |\n", Won(s.Total), Won(delta), s.BudgetStatus())
	fmt.Fprintf(b, "| **Essential** | %s (%.1f%%) | |\n", Won(s.EssentialTotal), s.EssentialRate)
	fmt.Fprintf(b, "| **Non-essential** | %s (%.1f%%) | |\n", Won(s.NonEssentialTotal), s.NonEssentialRate)
	fmt.Fprintf(b, "\n**Satisfaction:** %s\n", s.Satisfaction.String())
}

func writeCategories(b *strings.Builder, s *analysis.Summary) {
	b.WriteString("## 2. Spending by Category\n\n")
	b.WriteString("| Category | Amount | Share |\n| :--- | :--- | :--- |\n")
	total := s.ByCategory.Total()
	for _, e := range s.ByCategory.ByValue() {
		fmt.Fprintf(b, "| %s | %s | %.1f%% |\n", escapeCell(e.Key), Won(e.Amount), analysis.Share(e.Amount, total))
	}
}

func writeTopRows(b *strings.Builder, s *analysis.Summary) {
	fmt.Fprintf(b, "## 3. Top %d Transactions\n\n", TopTransactions)
	b.WriteString("| Date | Category | Description | Amount | Satisfaction |\n| :--- | :--- | :--- | :--- | :--- |\n")
	for _, r := range analysis.TopByAmount(s.Rows, TopTransactions) {
		date := "-"
		if r.Date.Valid {
			date = r.Date.Date.String()
		}
		sat := "-"
		if r.Satisfaction.Valid {
			sat = fmt.Sprintf("%d/5", r.Satisfaction.Int64)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			date, escapeCell(r.Category.StringVal), escapeCell(r.DescriptionText()), Won(r.Amount.Int64), sat)
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
