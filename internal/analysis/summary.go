// Package analysis derives filtered subsets and summary metrics from
// normalized expense tables. Every function is pure: inputs are never
// modified and results depend only on the arguments.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/expense-insights/internal/domain"
)

// Ranking sizes.
const (
	DefaultTopN     = 5
	RankedItemLimit = 3

	RegretMaxScore = 2
	ValueMinScore  = 4
)

// Budget status labels.
const (
	StatusRemaining = "remaining"
	StatusExceeded  = "exceeded"
)

// Input parameterizes one aggregation.
type Input struct {
	Current   *domain.Table
	History   *domain.Table // optional; only feeds the monthly trend
	Selection domain.Selection
	Budget    domain.Budget
	TopN      int // defaults to DefaultTopN
}

// Composition is the amount spent on one (category, essential) pair.
type Composition struct {
	Category  string `json:"category"`
	Essential bool   `json:"essential"`
	Amount    int64  `json:"amount"`
}

// SatisfactionStats summarizes the non-null satisfaction scores.
type SatisfactionStats struct {
	Count        int           `json:"count"`
	Mean         float64       `json:"mean"`
	Distribution map[int64]int `json:"distribution"`
}

// String renders e.g. "mean 3.5 / distribution: 2 (1), 5 (1)" or
// "no satisfaction data".
func (s SatisfactionStats) String() string {
	if s.Count == 0 {
		return "no satisfaction data"
	}
	scores := make([]int64, 0, len(s.Distribution))
	for score := range s.Distribution {
		scores = append(scores, score)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i] < scores[j] })
	parts := make([]string, 0, len(scores))
	for _, score := range scores {
		parts = append(parts, fmt.Sprintf("%d (%d)", score, s.Distribution[score]))
	}
	return fmt.Sprintf("mean %.1f / distribution: %s", s.Mean, strings.Join(parts, ", "))
}

// Summary is the derived view of one filtered current-period table.
type Summary struct {
	Selection domain.Selection `json:"selection"`
	Budget    int64            `json:"budget"`

	RowCount       int     `json:"row_count"`
	Total          int64   `json:"total"`
	MonthlyAverage float64 `json:"monthly_average"`
	PerRowAverage  int64   `json:"per_row_average"`

	HasEssential      bool    `json:"has_essential"`
	HasSatisfaction   bool    `json:"has_satisfaction"`
	EssentialTotal    int64   `json:"essential_total"`
	NonEssentialTotal int64   `json:"non_essential_total"`
	EssentialRate     float64 `json:"essential_rate"`
	NonEssentialRate  float64 `json:"non_essential_rate"`

	TopCategory    string `json:"top_category,omitempty"`
	HasTopCategory bool   `json:"has_top_category"`
	BudgetDelta    int64  `json:"budget_delta"`

	ByCategory          Grouping      `json:"by_category"`
	ByMonth             Grouping      `json:"by_month"`
	ByCategoryEssential []Composition `json:"by_category_essential,omitempty"`

	Satisfaction SatisfactionStats `json:"satisfaction"`

	TopRows []domain.Record `json:"-"`
	Regret  []domain.Record `json:"-"`
	Value   []domain.Record `json:"-"`
	Rows    []domain.Record `json:"-"`
	Columns []string        `json:"-"`
}

// BudgetStatus labels the budget delta.
func (s *Summary) BudgetStatus() string {
	if s.BudgetDelta >= 0 {
		return StatusRemaining
	}
	return StatusExceeded
}

// Aggregate filters the current table by the selection and derives every
// metric, grouping and ranking. The selection and budget are validated here
// once, so callers need not repeat the checks.
func Aggregate(in Input) (*Summary, error) {
	if in.Current == nil {
		return nil, fmt.Errorf("Aggregate: current table: %w", domain.ErrMissingInput)
	}
	if err := in.Selection.Validate(); err != nil {
		return nil, err
	}
	if err := in.Budget.Validate(); err != nil {
		return nil, err
	}
	topN := in.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	rows := Filter(in.Current, in.Selection)

	s := &Summary{
		Selection:       in.Selection,
		Budget:          int64(in.Budget),
		RowCount:        len(rows),
		HasEssential:    in.Current.HasEssential,
		HasSatisfaction: in.Current.HasSatisfaction,
		ByCategory:      make(Grouping),
		Rows:            rows,
		Columns:         in.Current.Columns,
	}

	for _, r := range rows {
		s.Total += r.Amount.Int64
		s.ByCategory[r.Category.StringVal] += r.Amount.Int64
	}
	s.MonthlyAverage = float64(s.Total) / float64(len(in.Selection.Months))
	if len(rows) > 0 {
		s.PerRowAverage = s.Total / int64(len(rows))
	}

	s.EssentialTotal, s.NonEssentialTotal = essentialSplit(rows, in.Current.HasEssential, s.Total)
	s.NonEssentialRate = Share(s.NonEssentialTotal, s.Total)
	s.EssentialRate = 100 - s.NonEssentialRate

	if ranked := s.ByCategory.ByValue(); len(ranked) > 0 {
		s.TopCategory = ranked[0].Key
		s.HasTopCategory = true
	}
	s.BudgetDelta = int64(in.Budget) - s.Total

	s.ByMonth = MonthlyTrend(rows, in.History, in.Selection)
	if in.Current.HasEssential {
		s.ByCategoryEssential = composition(rows)
	}

	s.TopRows = TopByAmount(rows, topN)
	s.Regret = TopByAmount(withSatisfaction(rows, func(score int64) bool { return score <= RegretMaxScore }), RankedItemLimit)
	s.Value = TopByAmount(withSatisfaction(rows, func(score int64) bool { return score >= ValueMinScore }), RankedItemLimit)
	s.Satisfaction = satisfactionStats(rows)

	return s, nil
}

// Filter returns the records whose year_month and category are both selected.
// The returned slice is a copy in table order.
func Filter(t *domain.Table, sel domain.Selection) []domain.Record {
	months, categories := sel.MonthSet(), sel.CategorySet()
	out := make([]domain.Record, 0, t.Len())
	for _, r := range t.Records {
		if months[r.YearMonth()] && r.Category.Valid && categories[r.Category.StringVal] {
			out = append(out, r)
		}
	}
	return out
}

// MonthlyTrend sums amounts by year_month over the filtered current rows plus
// historical rows in the selected categories. Historical rows with a null
// date or amount are skipped. Overlapping months are added, not deduplicated.
func MonthlyTrend(current []domain.Record, history *domain.Table, sel domain.Selection) Grouping {
	trend := make(Grouping)
	for _, r := range current {
		trend[r.YearMonth()] += r.Amount.Int64
	}
	if history == nil {
		return trend
	}
	categories := sel.CategorySet()
	for _, r := range history.Records {
		if !r.Date.Valid || !r.Amount.Valid || !r.Category.Valid {
			continue
		}
		if !categories[r.Category.StringVal] {
			continue
		}
		trend[r.YearMonth()] += r.Amount.Int64
	}
	return trend
}

// TopByAmount returns up to n records by amount descending. Equal amounts keep
// their input order.
func TopByAmount(rows []domain.Record, n int) []domain.Record {
	sorted := make([]domain.Record, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.Int64 > sorted[j].Amount.Int64
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// essentialSplit returns (essential, non-essential) sums. Without an
// essential column all spend counts as essential; rows whose flag is null
// count toward neither.
func essentialSplit(rows []domain.Record, hasEssential bool, total int64) (int64, int64) {
	if !hasEssential {
		return total, 0
	}
	var essential, nonEssential int64
	for _, r := range rows {
		if !r.Essential.Valid {
			continue
		}
		if r.Essential.Bool {
			essential += r.Amount.Int64
		} else {
			nonEssential += r.Amount.Int64
		}
	}
	return essential, nonEssential
}

func composition(rows []domain.Record) []Composition {
	type key struct {
		category  string
		essential bool
	}
	sums := make(map[key]int64)
	for _, r := range rows {
		if !r.Essential.Valid {
			continue
		}
		sums[key{r.Category.StringVal, r.Essential.Bool}] += r.Amount.Int64
	}
	out := make([]Composition, 0, len(sums))
	for k, v := range sums {
		out = append(out, Composition{Category: k.category, Essential: k.essential, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Essential && !out[j].Essential
	})
	return out
}

func withSatisfaction(rows []domain.Record, keep func(score int64) bool) []domain.Record {
	var out []domain.Record
	for _, r := range rows {
		if r.Satisfaction.Valid && keep(r.Satisfaction.Int64) {
			out = append(out, r)
		}
	}
	return out
}

func satisfactionStats(rows []domain.Record) SatisfactionStats {
	stats := SatisfactionStats{Distribution: make(map[int64]int)}
	var sum int64
	for _, r := range rows {
		if !r.Satisfaction.Valid {
			continue
		}
		stats.Count++
		sum += r.Satisfaction.Int64
		stats.Distribution[r.Satisfaction.Int64]++
	}
	if stats.Count > 0 {
		stats.Mean = float64(sum) / float64(stats.Count)
	}
	return stats
}
