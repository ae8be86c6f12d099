package pipeline

import "github.com/dvloznov/expense-insights/internal/domain"

// Validate checks a merged current-period table. Every column holding a null,
// other than the allowed-null columns, is reported in a single
// DataIntegrityError. Historical tables are not validated.
func Validate(t *domain.Table) error {
	var offending []string
	for _, c := range t.NullColumns() {
		if !domain.AllowedNullColumns[c] {
			offending = append(offending, c)
		}
	}
	if len(offending) > 0 {
		return &domain.DataIntegrityError{Columns: offending}
	}
	return nil
}
