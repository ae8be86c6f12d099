package report

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/domain"
)

func summary(t *testing.T, budget domain.Budget) *analysis.Summary {
	t.Helper()
	records := []domain.Record{
		{
			Date:         domain.NewDate(2024, 5, 1),
			Amount:       bigquery.NullInt64{Int64: 10000, Valid: true},
			Category:     bigquery.NullString{StringVal: "Food", Valid: true},
			Description:  bigquery.NullString{StringVal: "groceries | market", Valid: true},
			Essential:    bigquery.NullBool{Bool: true, Valid: true},
			Satisfaction: bigquery.NullInt64{Int64: 4, Valid: true},
		},
		{
			Date:      domain.NewDate(2024, 5, 2),
			Amount:    bigquery.NullInt64{Int64: 5000, Valid: true},
			Category:  bigquery.NullString{StringVal: "Cafe", Valid: true},
			Essential: bigquery.NullBool{Bool: false, Valid: true},
		},
	}
	current := domain.NewTable(records, []string{"date", "amount", "category", "description", "essential", "satisfaction"})
	s, err := analysis.Aggregate(analysis.Input{Current: current, Selection: domain.DefaultSelection(current), Budget: budget})
	require.NoError(t, err)
	return s
}

func TestAssemble_SectionsInOrder(t *testing.T) {
	narrative := "**Score: 80**\n\n- keep it up"
	doc, err := Assemble(Input{
		Summary:     summary(t, 20000),
		Narrative:   narrative,
		GeneratedAt: time.Date(2024, 5, 31, 18, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	headings := []string{"## 1. Key Metrics", "## 2. Spending by Category", "## 3. Top 5 Transactions", "## 4. Narrative"}
	last := -1
	for _, h := range headings {
		idx := strings.Index(doc, h)
		require.NotEqual(t, -1, idx, h)
		assert.Greater(t, idx, last, h)
		last = idx
	}

	assert.Contains(t, doc, "**Generated:** 2024-05-31 18:30")
	assert.Contains(t, doc, "| **Budget** | 20,000원 | - |")
	assert.Contains(t, doc, "| **Total spend** | 15,000원 | 5,000원 **remaining** against budget |")
	assert.Contains(t, doc, "| **Non-essential** | 5,000원 (33.3%) | |")
	assert.Contains(t, doc, "| Food | 10,000원 | 66.7% |")
	assert.Contains(t, doc, `| 2024-05-01 | Food | groceries \| market | 10,000원 | 4/5 |`)
	assert.Contains(t, doc, "| 2024-05-02 | Cafe | "+domain.DescriptionPlaceholder+" | 5,000원 | - |")
	assert.True(t, strings.HasSuffix(doc, narrative+"\n"))
}

func TestAssemble_ExceededBudget(t *testing.T) {
	doc, err := Assemble(Input{Summary: summary(t, 10000)})
	require.NoError(t, err)

	assert.Contains(t, doc, "5,000원 **exceeded** against budget")
	assert.Contains(t, doc, NoNarrative)
}

func TestAssemble_TopTransactionsIgnoresTopN(t *testing.T) {
	var records []domain.Record
	for i := 1; i <= 8; i++ {
		records = append(records, domain.Record{
			Date:     domain.NewDate(2024, 5, i),
			Amount:   bigquery.NullInt64{Int64: int64(i * 1000), Valid: true},
			Category: bigquery.NullString{StringVal: "Food", Valid: true},
		})
	}
	current := domain.NewTable(records, []string{"date", "amount", "category"})
	s, err := analysis.Aggregate(analysis.Input{
		Current:   current,
		Selection: domain.DefaultSelection(current),
		Budget:    100000,
		TopN:      8,
	})
	require.NoError(t, err)
	require.Len(t, s.TopRows, 8)

	doc, err := Assemble(Input{Summary: s})
	require.NoError(t, err)

	start := strings.Index(doc, "## 3. Top 5 Transactions")
	require.NotEqual(t, -1, start)
	end := strings.Index(doc, "## 4. Narrative")
	section := doc[start:end]

	assert.Equal(t, TopTransactions, strings.Count(section, "| Food |"))
	assert.Contains(t, section, "| 2024-05-08 | Food |")
	assert.Contains(t, section, "| 2024-05-04 | Food |")
	assert.NotContains(t, section, "| 2024-05-03 | Food |")
}

func TestAssemble_MissingSummary(t *testing.T) {
	_, err := Assemble(Input{Narrative: "text"})
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "monthly-report-20240531.md", Filename(time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC)))
}

func TestWon(t *testing.T) {
	assert.Equal(t, "1,234,567원", Won(1234567))
	assert.Equal(t, "0원", Won(0))
	assert.Equal(t, "-5,000원", Won(-5000))
}
