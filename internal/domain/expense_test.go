package domain

import (
	"errors"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(date bigquery.NullDate, amount int64, category string) Record {
	return Record{
		Date:     date,
		Amount:   bigquery.NullInt64{Int64: amount, Valid: true},
		Category: bigquery.NullString{StringVal: category, Valid: true},
	}
}

func TestRecord_YearMonth(t *testing.T) {
	r := rec(NewDate(2024, 5, 3), 100, "Food")
	assert.Equal(t, "2024-05", r.YearMonth())

	r.Date = bigquery.NullDate{}
	assert.Equal(t, "", r.YearMonth())
}

func TestRecord_DescriptionText(t *testing.T) {
	r := Record{}
	assert.Equal(t, DescriptionPlaceholder, r.DescriptionText())

	r.Description = bigquery.NullString{StringVal: "lunch", Valid: true}
	assert.Equal(t, "lunch", r.DescriptionText())
}

func TestRecord_IsNullExtraColumns(t *testing.T) {
	r := Record{Extra: map[string]string{"fixed": "yes", "memo": "  "}}
	assert.False(t, r.IsNull("fixed"))
	assert.True(t, r.IsNull("memo"))
	assert.True(t, r.IsNull("absent"))
	assert.Equal(t, "yes", r.Value("fixed"))
}

func TestNewTable_SortsByDateWithNullsLast(t *testing.T) {
	records := []Record{
		rec(NewDate(2024, 5, 3), 1, "a"),
		rec(bigquery.NullDate{}, 2, "b"),
		rec(NewDate(2024, 5, 1), 3, "c"),
		rec(NewDate(2024, 5, 3), 4, "d"),
	}
	table := NewTable(records, []string{ColumnDate, ColumnAmount, ColumnCategory})

	got := make([]int64, 0, table.Len())
	for _, r := range table.Records {
		got = append(got, r.Amount.Int64)
	}
	assert.Equal(t, []int64{3, 1, 4, 2}, got)
	assert.False(t, table.HasEssential)
	assert.False(t, table.HasSatisfaction)
}

func TestNewTable_CapabilityFlags(t *testing.T) {
	table := NewTable(nil, []string{ColumnDate, ColumnEssential, ColumnSatisfaction})
	assert.True(t, table.HasEssential)
	assert.True(t, table.HasSatisfaction)
	assert.True(t, table.HasColumn(ColumnDate))
	assert.False(t, table.HasColumn(ColumnDescription))
}

func TestTable_MonthsAndCategories(t *testing.T) {
	table := NewTable([]Record{
		rec(NewDate(2024, 6, 1), 1, "Transport"),
		rec(NewDate(2024, 5, 1), 1, "Food"),
		rec(NewDate(2024, 5, 9), 1, "Food"),
		rec(bigquery.NullDate{}, 1, "Cafe"),
	}, []string{ColumnDate, ColumnAmount, ColumnCategory})

	assert.Equal(t, []string{"2024-05", "2024-06"}, table.Months())
	assert.Equal(t, []string{"Cafe", "Food", "Transport"}, table.Categories())
}

func TestTable_NullColumns(t *testing.T) {
	r1 := rec(NewDate(2024, 5, 1), 1, "Food")
	r2 := rec(bigquery.NullDate{}, 2, "Food")
	table := NewTable([]Record{r1, r2}, []string{ColumnDate, ColumnAmount, ColumnCategory, ColumnDescription})

	assert.Equal(t, []string{ColumnDate, ColumnDescription}, table.NullColumns())
}

func TestSelection_Validate(t *testing.T) {
	tests := []struct {
		name      string
		sel       Selection
		dimension string
	}{
		{name: "valid", sel: Selection{Months: []string{"2024-05"}, Categories: []string{"Food"}}},
		{name: "no months", sel: Selection{Categories: []string{"Food"}}, dimension: DimensionMonths},
		{name: "no categories", sel: Selection{Months: []string{"2024-05"}, Categories: []string{}}, dimension: DimensionCategories},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.dimension == "" {
				require.NoError(t, err)
				return
			}
			var empty *EmptySelectionError
			require.True(t, errors.As(err, &empty))
			assert.Equal(t, tt.dimension, empty.Dimension)
		})
	}
}

func TestBudget_Validate(t *testing.T) {
	assert.NoError(t, Budget(0).Validate())
	assert.NoError(t, Budget(20000).Validate())
	assert.ErrorIs(t, Budget(-1).Validate(), ErrNegativeBudget)
}

func TestErrorMessages(t *testing.T) {
	err := &FileFormatError{File: "may.csv", Column: ColumnCategory}
	assert.Contains(t, err.Error(), `missing required column "category"`)

	integrity := &DataIntegrityError{Columns: []string{ColumnDate, ColumnEssential}}
	assert.Contains(t, integrity.Error(), "date, essential")

	coercion := &ValueCoercionError{File: "may.csv", Row: 3, Column: ColumnAmount, Value: "abc"}
	assert.Contains(t, coercion.Error(), `"may.csv" row 3`)

	cause := errors.New("deadline exceeded")
	remote := &RemoteServiceError{Op: "GenerateNarrative", Err: cause}
	assert.ErrorIs(t, remote, cause)
}
