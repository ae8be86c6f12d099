package bigquery

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableURI(t *testing.T) {
	ref, err := ParseTableURI("bq://my-project.finance.expenses_2024")
	require.NoError(t, err)
	assert.Equal(t, TableRef{Project: "my-project", Dataset: "finance", Table: "expenses_2024"}, ref)
	assert.Equal(t, "bq://my-project.finance.expenses_2024", ref.String())
	assert.Equal(t, "`my-project.finance.expenses_2024`", ref.quoted())

	for _, bad := range []string{
		"gs://bucket/file.csv",
		"bq://my-project.finance",
		"bq://my-project.finance.expenses.extra",
		"bq://x.finance.expenses",
		"bq://my-project.fin`ance.expenses",
		"bq://my-project.finance.exp enses",
	} {
		_, err := ParseTableURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTableURI_NameLength(t *testing.T) {
	longest := "t" + strings.Repeat("x", maxNameLen-1)
	ref, err := ParseTableURI("bq://my-project.finance." + longest)
	require.NoError(t, err)
	assert.Equal(t, longest, ref.Table)

	_, err = ParseTableURI("bq://my-project.finance." + longest + "x")
	assert.Error(t, err)

	_, err = ParseTableURI("bq://my-project." + longest + "x.expenses")
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   bigquery.Value
		want string
	}{
		{"nil", nil, ""},
		{"string", "식비", "식비"},
		{"int", int64(15000), "15000"},
		{"float", float64(15000), "15000"},
		{"bool", true, "true"},
		{"date", civil.Date{Year: 2024, Month: time.May, Day: 3}, "2024-05-03"},
		{"datetime", civil.DateTime{Date: civil.Date{Year: 2024, Month: time.May, Day: 3}}, "2024-05-03"},
		{"timestamp", time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC), "2024-05-03"},
		{"numeric int", big.NewRat(4500, 1), "4500"},
		{"numeric frac", big.NewRat(3, 2), "1.500000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestHeader(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "date", Type: bigquery.DateFieldType},
		{Name: "amount", Type: bigquery.IntegerFieldType},
	}
	assert.Equal(t, []string{"date", "amount"}, header(schema))
}
