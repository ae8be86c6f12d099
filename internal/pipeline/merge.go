package pipeline

import "github.com/dvloznov/expense-insights/internal/domain"

// Merge concatenates fragments of one period class in the given order and
// stable-sorts the result by date. Columns become the ordered union of the
// fragment columns. Fragments are not modified and rows are never
// deduplicated.
func Merge(fragments ...*domain.Table) *domain.Table {
	var (
		columns []string
		seen    = make(map[string]bool)
		total   int
	)
	for _, f := range fragments {
		if f == nil {
			continue
		}
		total += len(f.Records)
		for _, c := range f.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	records := make([]domain.Record, 0, total)
	for _, f := range fragments {
		if f == nil {
			continue
		}
		records = append(records, f.Records...)
	}
	return domain.NewTable(records, columns)
}
