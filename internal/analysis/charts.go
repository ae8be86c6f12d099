package analysis

import (
	"sort"

	"github.com/dvloznov/expense-insights/internal/domain"
)

// Essential split labels.
const (
	LabelEssential    = "essential"
	LabelNonEssential = "non-essential"
)

// displayColumns is the raw-data view column order; absent columns are skipped.
var displayColumns = []string{
	domain.ColumnDate, domain.ColumnCategory, domain.ColumnDescription, domain.ColumnAmount,
	"fixed", domain.ColumnEssential, domain.ColumnSatisfaction,
}

// Slice is one segment of a share chart.
type Slice struct {
	Label  string  `json:"label"`
	Amount int64   `json:"amount"`
	Share  float64 `json:"share"`
}

// SatisfactionPoint is one transaction plotted by score against amount.
type SatisfactionPoint struct {
	Score       int64  `json:"score"`
	Amount      int64  `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// HeatCell is the amount spent in one category at one satisfaction score.
type HeatCell struct {
	Category string `json:"category"`
	Score    int64  `json:"score"`
	Amount   int64  `json:"amount"`
}

// Charts holds chart-ready series derived from a Summary.
type Charts struct {
	Categories []Slice `json:"categories"`

	// Trend is only populated when more than one month has data.
	Trend []Entry `json:"trend,omitempty"`

	Essential   []Slice       `json:"essential,omitempty"`
	Composition []Composition `json:"composition,omitempty"`

	SatisfactionPoints []SatisfactionPoint `json:"satisfaction_points,omitempty"`
	Heatmap            []HeatCell          `json:"heatmap,omitempty"`
}

// BuildCharts derives every chart series from s. Series whose source column
// is missing are left empty.
func BuildCharts(s *Summary) Charts {
	var c Charts

	total := s.ByCategory.Total()
	for _, e := range s.ByCategory.ByValue() {
		c.Categories = append(c.Categories, Slice{Label: e.Key, Amount: e.Amount, Share: Share(e.Amount, total)})
	}

	if len(s.ByMonth) > 1 {
		c.Trend = s.ByMonth.ByKey()
	}

	if s.HasEssential {
		split := s.EssentialTotal + s.NonEssentialTotal
		for _, sl := range []Slice{
			{Label: LabelEssential, Amount: s.EssentialTotal},
			{Label: LabelNonEssential, Amount: s.NonEssentialTotal},
		} {
			if sl.Amount == 0 {
				continue
			}
			sl.Share = Share(sl.Amount, split)
			c.Essential = append(c.Essential, sl)
		}
		c.Composition = s.ByCategoryEssential
	}

	if s.HasSatisfaction {
		heat := make(map[HeatCell]int64)
		for _, r := range s.Rows {
			if !r.Satisfaction.Valid {
				continue
			}
			c.SatisfactionPoints = append(c.SatisfactionPoints, SatisfactionPoint{
				Score:       r.Satisfaction.Int64,
				Amount:      r.Amount.Int64,
				Category:    r.Category.StringVal,
				Description: r.DescriptionText(),
			})
			heat[HeatCell{Category: r.Category.StringVal, Score: r.Satisfaction.Int64}] += r.Amount.Int64
		}
		for cell, amount := range heat {
			cell.Amount = amount
			c.Heatmap = append(c.Heatmap, cell)
		}
		sort.Slice(c.Heatmap, func(i, j int) bool {
			if c.Heatmap[i].Category != c.Heatmap[j].Category {
				return c.Heatmap[i].Category < c.Heatmap[j].Category
			}
			return c.Heatmap[i].Score < c.Heatmap[j].Score
		})
	}
	return c
}

// Table is a rectangular display view of records.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// DisplayTable renders records using the raw-data view columns present in
// available. Missing descriptions show the placeholder.
func DisplayTable(records []domain.Record, available []string) Table {
	present := make(map[string]bool, len(available))
	for _, c := range available {
		present[c] = true
	}
	var cols []string
	for _, c := range displayColumns {
		if present[c] {
			cols = append(cols, c)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			if c == domain.ColumnDescription {
				row[i] = r.DescriptionText()
				continue
			}
			row[i] = r.Value(c)
		}
		rows = append(rows, row)
	}
	return Table{Columns: cols, Rows: rows}
}
