package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Column names recognised in uploaded tables (after lower-casing).
const (
	ColumnDate         = "date"
	ColumnAmount       = "amount"
	ColumnCategory     = "category"
	ColumnDescription  = "description"
	ColumnEssential    = "essential"
	ColumnSatisfaction = "satisfaction"
)

// RequiredColumns must appear in the header of every uploaded table.
var RequiredColumns = []string{ColumnDate, ColumnAmount, ColumnCategory}

// AllowedNullColumns may contain empty cells in the current-period table.
var AllowedNullColumns = map[string]bool{
	ColumnDescription:  true,
	ColumnSatisfaction: true,
}

// DescriptionPlaceholder is shown in place of a missing description.
const DescriptionPlaceholder = "—"

// Upload is one raw tabular input as received from the user.
type Upload struct {
	// Name is the original filename or source URI; its extension selects the format.
	Name string
	// Data holds the raw file bytes.
	Data []byte
	// Rows holds pre-split cells (header first) for sources that are already
	// tabular, such as warehouse queries. When set, Data is ignored.
	Rows [][]string
}

// Record is one expense transaction.
// Nullable fields use the BigQuery null wrappers so that warehouse rows and
// parsed file rows share one representation.
type Record struct {
	Date         bigquery.NullDate
	Amount       bigquery.NullInt64 // base currency units
	Category     bigquery.NullString
	Description  bigquery.NullString
	Essential    bigquery.NullBool
	Satisfaction bigquery.NullInt64 // 1-5

	// Extra holds unrecognised columns, passed through for display only.
	Extra map[string]string
}

// YearMonth returns the YYYY-MM bucket for the record date, or "" when the
// date is null.
func (r Record) YearMonth() string {
	if !r.Date.Valid {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", r.Date.Date.Year, int(r.Date.Date.Month))
}

// DescriptionText returns the description or the placeholder when absent.
func (r Record) DescriptionText() string {
	if !r.Description.Valid {
		return DescriptionPlaceholder
	}
	return r.Description.StringVal
}

// IsNull reports whether the record has no value for the given column.
func (r Record) IsNull(column string) bool {
	switch column {
	case ColumnDate:
		return !r.Date.Valid
	case ColumnAmount:
		return !r.Amount.Valid
	case ColumnCategory:
		return !r.Category.Valid
	case ColumnDescription:
		return !r.Description.Valid
	case ColumnEssential:
		return !r.Essential.Valid
	case ColumnSatisfaction:
		return !r.Satisfaction.Valid
	default:
		v, ok := r.Extra[column]
		return !ok || strings.TrimSpace(v) == ""
	}
}

// Value renders the column value as display text; null renders as "".
func (r Record) Value(column string) string {
	if r.IsNull(column) {
		return ""
	}
	switch column {
	case ColumnDate:
		return r.Date.Date.String()
	case ColumnAmount:
		return strconv.FormatInt(r.Amount.Int64, 10)
	case ColumnCategory:
		return r.Category.StringVal
	case ColumnDescription:
		return r.Description.StringVal
	case ColumnEssential:
		return strconv.FormatBool(r.Essential.Bool)
	case ColumnSatisfaction:
		return strconv.FormatInt(r.Satisfaction.Int64, 10)
	default:
		return r.Extra[column]
	}
}

// Table is an ordered collection of records sorted by date ascending.
// Current-period and historical data are both Tables but are validated and
// filtered differently.
type Table struct {
	Records []Record
	// Columns is the ordered union of header names seen across the source files.
	Columns []string

	// HasEssential and HasSatisfaction are computed once from Columns.
	HasEssential    bool
	HasSatisfaction bool
}

// NewTable builds a table from records and column names, stable-sorting the
// records by date (null dates last) and computing the capability flags.
func NewTable(records []Record, columns []string) *Table {
	t := &Table{
		Records: records,
		Columns: columns,
	}
	t.HasEssential = t.HasColumn(ColumnEssential)
	t.HasSatisfaction = t.HasColumn(ColumnSatisfaction)
	t.SortByDate()
	return t
}

// SortByDate stable-sorts records by date ascending; null dates go last.
func (t *Table) SortByDate() {
	sort.SliceStable(t.Records, func(i, j int) bool {
		a, b := t.Records[i].Date, t.Records[j].Date
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		return a.Date.Before(b.Date)
	})
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether the column appeared in any source header.
func (t *Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Months returns the distinct non-empty year_month values in ascending order.
func (t *Table) Months() []string {
	set := make(map[string]struct{})
	for _, r := range t.Records {
		if ym := r.YearMonth(); ym != "" {
			set[ym] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Categories returns the distinct non-null categories in ascending order.
func (t *Table) Categories() []string {
	set := make(map[string]struct{})
	for _, r := range t.Records {
		if r.Category.Valid {
			set[r.Category.StringVal] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// NullColumns returns, in column order, every column holding at least one null.
func (t *Table) NullColumns() []string {
	var out []string
	for _, c := range t.Columns {
		for _, r := range t.Records {
			if r.IsNull(c) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Selection is the user's chosen subset of months and categories.
type Selection struct {
	Months     []string `json:"months"`
	Categories []string `json:"categories"`
}

// DefaultSelection selects every month and category observed in t.
func DefaultSelection(t *Table) Selection {
	return Selection{
		Months:     t.Months(),
		Categories: t.Categories(),
	}
}

// Validate fails with an EmptySelectionError naming the first empty dimension.
func (s Selection) Validate() error {
	if len(s.Months) == 0 {
		return &EmptySelectionError{Dimension: DimensionMonths}
	}
	if len(s.Categories) == 0 {
		return &EmptySelectionError{Dimension: DimensionCategories}
	}
	return nil
}

// MonthSet returns the selected months as a set.
func (s Selection) MonthSet() map[string]bool {
	return toSet(s.Months)
}

// CategorySet returns the selected categories as a set.
func (s Selection) CategorySet() map[string]bool {
	return toSet(s.Categories)
}

// Budget is the planning ceiling for the current period, in base units.
type Budget int64

// Validate rejects negative budgets.
func (b Budget) Validate() error {
	if b < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeBudget, int64(b))
	}
	return nil
}

// NewDate is a convenience constructor for a valid NullDate.
func NewDate(year int, month int, day int) bigquery.NullDate {
	return bigquery.NullDate{Date: civil.Date{Year: year, Month: time.Month(month), Day: day}, Valid: true}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
