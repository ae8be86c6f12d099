package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-insights/internal/analysis"
	"github.com/dvloznov/expense-insights/internal/domain"
)

func TestBuildCharts_Scenario(t *testing.T) {
	s := aggregate(t, analysis.Input{Current: scenario(), Budget: 20000})

	c := analysis.BuildCharts(s)

	require.Len(t, c.Categories, 2)
	assert.Equal(t, "Food", c.Categories[0].Label)
	assert.InDelta(t, 66.67, c.Categories[0].Share, 0.01)
	assert.InDelta(t, 100, c.Categories[0].Share+c.Categories[1].Share, 1e-9)

	// A single month has no trend line.
	assert.Empty(t, c.Trend)

	require.Len(t, c.Essential, 2)
	assert.Equal(t, analysis.LabelEssential, c.Essential[0].Label)
	assert.Equal(t, int64(10000), c.Essential[0].Amount)

	assert.Len(t, c.SatisfactionPoints, 2)
	assert.Equal(t, []analysis.HeatCell{
		{Category: "Cafe", Score: 2, Amount: 5000},
		{Category: "Food", Score: 4, Amount: 10000},
	}, c.Heatmap)
}

func TestBuildCharts_TrendNeedsTwoMonths(t *testing.T) {
	current := table(fullColumns,
		row{month: 5, day: 1, amount: 100, category: "Food", essential: yes()},
		row{month: 4, day: 1, amount: 300, category: "Food", essential: yes()},
	)

	c := analysis.BuildCharts(aggregate(t, analysis.Input{Current: current}))

	assert.Equal(t, []analysis.Entry{{Key: "2024-04", Amount: 300}, {Key: "2024-05", Amount: 100}}, c.Trend)
}

func TestBuildCharts_MissingColumns(t *testing.T) {
	current := table([]string{"date", "amount", "category"}, row{month: 5, day: 1, amount: 100, category: "Food"})

	c := analysis.BuildCharts(aggregate(t, analysis.Input{Current: current}))

	assert.Len(t, c.Categories, 1)
	assert.Empty(t, c.Essential)
	assert.Empty(t, c.Composition)
	assert.Empty(t, c.SatisfactionPoints)
	assert.Empty(t, c.Heatmap)
}

func TestDisplayTable(t *testing.T) {
	current := table(append(fullColumns, "fixed", "memo"),
		row{month: 5, day: 2, amount: 5000, category: "Cafe", essential: no(), satisfaction: 2},
	)
	current.Records[0].Extra = map[string]string{"fixed": "no", "memo": "x"}

	view := analysis.DisplayTable(current.Records, current.Columns)

	assert.Equal(t, []string{"date", "category", "description", "amount", "fixed", "essential", "satisfaction"}, view.Columns)
	assert.Equal(t, [][]string{{"2024-05-02", "Cafe", domain.DescriptionPlaceholder, "5000", "no", "false", "2"}}, view.Rows)
}
