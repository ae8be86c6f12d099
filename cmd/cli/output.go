package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/pipeline"
	"github.com/dvloznov/expense-insights/internal/report"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	bold   = color.New(color.Bold)
)

func header(text string) {
	line := strings.Repeat("=", 60)
	green.Printf("\n%s\n", line)
	green.Printf("%s\n", text)
	green.Printf("%s\n\n", line)
}

func success(text string) {
	green.Printf("  → %s\n", text)
}

func info(text string) {
	fmt.Printf("  → %s\n", text)
}

func warning(text string) {
	yellow.Printf("  ⚠ %s\n", text)
}

func printRejected(rejected []pipeline.FileError) {
	for _, fe := range rejected {
		warning(fmt.Sprintf("skipped %s file %s: %s", fe.Period, fe.File, fe.Message()))
	}
}

func printSummary(s *analysis.Summary) {
	header(fmt.Sprintf("Spending %s  (%d rows)", strings.Join(s.Selection.Months, ", "), s.RowCount))

	fmt.Printf("%-22s %s\n", "Total spend", report.Won(s.Total))
	status := green
	if s.BudgetDelta < 0 {
		status = red
	}
	status.Printf("%-22s %s %s\n", "Budget", report.Won(abs(s.BudgetDelta)), s.BudgetStatus())
	fmt.Printf("%-22s %s\n", "Monthly average", report.Won(int64(s.MonthlyAverage)))
	fmt.Printf("%-22s %s\n", "Per transaction", report.Won(s.PerRowAverage))
	fmt.Printf("%-22s %.1f%% / %.1f%%\n", "Essential / other", s.EssentialRate, s.NonEssentialRate)
	if s.HasTopCategory {
		fmt.Printf("%-22s %s\n", "Top category", s.TopCategory)
	}
	if s.HasSatisfaction {
		fmt.Printf("%-22s %s\n", "Satisfaction", s.Satisfaction.String())
	}

	bold.Println("\nBy category")
	total := s.ByCategory.Total()
	for _, e := range s.ByCategory.ByValue() {
		fmt.Printf("  %-20s %14s  %5.1f%%\n", e.Key, report.Won(e.Amount), analysis.Share(e.Amount, total))
	}

	if len(s.ByMonth) > 1 {
		bold.Println("\nBy month")
		for _, e := range s.ByMonth.ByKey() {
			fmt.Printf("  %-20s %14s\n", e.Key, report.Won(e.Amount))
		}
	}

	bold.Printf("\nTop %d transactions\n", len(s.TopRows))
	for i, r := range s.TopRows {
		fmt.Printf("  %d. %s  %-12s %-20s %14s\n", i+1, r.Value("date"), r.Category.StringVal, r.DescriptionText(), report.Won(r.Amount.Int64))
	}
	fmt.Println()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
