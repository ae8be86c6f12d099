package narrative

import (
	"fmt"
	"strings"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/report"
)

// Prompt is the full request sent to the narrative service.
type Prompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// SystemInstruction fixes the consultant persona and the readability rules.
const SystemInstruction = `You are a senior financial consultant who analyses a client's spending data with precision.
[Readability rules]
1. Never write long run-on paragraphs.
2. Always break explanations into short, clear bullet points (-, ✔️, 📌 and similar).
3. Put important numbers, categories, items and dates in **bold**.`

// BuildPrompt renders the summary into the user message. The output depends
// only on the summary, so a job can store it as an immutable snapshot.
func BuildPrompt(s *analysis.Summary) (Prompt, error) {
	if s == nil {
		return Prompt{}, fmt.Errorf("BuildPrompt: summary: %w", domain.ErrMissingInput)
	}

	delta := s.BudgetDelta
	if delta < 0 {
		delta = -delta
	}

	var b strings.Builder
	b.WriteString("Write personalised financial feedback based on my spending data.\n\n")

	b.WriteString("[Spending summary]\n")
	fmt.Fprintf(&b, "- Budget this month: %s\n", report.Won(s.Budget))
	fmt.Fprintf(&b, "- Total spent this month: %s (%s %s against budget)\n", report.Won(s.Total), report.Won(delta), s.BudgetStatus())
	fmt.Fprintf(&b, "- Essential spending: %s (%.1f%%)\n", report.Won(s.EssentialTotal), s.EssentialRate)
	fmt.Fprintf(&b, "- Non-essential spending: %s (%.1f%%)\n", report.Won(s.NonEssentialTotal), s.NonEssentialRate)
	fmt.Fprintf(&b, "- Satisfaction: %s\n", s.Satisfaction.String())
	fmt.Fprintf(&b, "- Good-value purchases (satisfaction 4-5): %s\n", itemList(s.Value))
	fmt.Fprintf(&b, "- Regretted purchases (satisfaction 1-2): %s\n", itemList(s.Regret))

	b.WriteString("\n[Spending by category this month]\n")
	for _, e := range s.ByCategory.ByValue() {
		fmt.Fprintf(&b, "- %s: %s\n", e.Key, report.Won(e.Amount))
	}

	b.WriteString(`
[Scoring rule]
- The score is out of 100. The gap between budget and spending (overrun or attainment rate) must account for at least 80% of the score.
- If spending exceeded the budget, deduct heavily in proportion to the overrun amount and rate.

[Mission: follow this structure and keep every section in bullet points]

1. Spending score and summary
   - Open with "Your spending score this month is NN points!" in large type.
   - Explain the score, weighting the budget overrun or attainment rate most heavily.

2. Notable patterns (2-3 points)
   - Using the category breakdown, point out the most striking features of this month's habits.

3. Praise for good-value purchases and a line-by-line look at regretted ones
   - Go through each good-value purchase and affirm it as a good choice.
   - Go through each regretted purchase individually, mentioning its **date**. Suggest how to reduce or replace it and state clearly **how much could be saved next month** in total.

4. Recommended budget for next month (by category)
   - Considering the expected savings and essential spending, first state the recommended **total budget for next month** in bold.
   - Then split it across the main categories in a **Markdown table** with the columns [Category | Spent this month | Recommended next month | Reason to cut/keep].
`)

	return Prompt{System: SystemInstruction, User: b.String()}, nil
}

func itemList(records []domain.Record) string {
	if len(records) == 0 {
		return "none"
	}
	var b strings.Builder
	for _, r := range records {
		date := ""
		if r.Date.Valid {
			date = r.Date.Date.String()
		}
		fmt.Fprintf(&b, "\n  - %s: [%s] %s (%s / satisfaction %d)",
			date, r.Category.StringVal, r.DescriptionText(), report.Won(r.Amount.Int64), r.Satisfaction.Int64)
	}
	return b.String()
}
