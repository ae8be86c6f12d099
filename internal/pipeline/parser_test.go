package pipeline_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"

	"github.com/dvloznov/expense-insights/internal/config"
	"github.com/dvloznov/expense-insights/internal/domain"
	"github.com/dvloznov/expense-insights/internal/pipeline"
)

func newParser() *pipeline.Parser {
	return pipeline.NewParser(config.DefaultParseRules())
}

func csvUpload(name string, lines ...string) domain.Upload {
	return domain.Upload{Name: name, Data: []byte(strings.Join(lines, "\n") + "\n")}
}

func TestParse_NormalizesHeadersAndValues(t *testing.T) {
	u := csvUpload("may.csv",
		" Date ,AMOUNT,Category,Description,Essential,Satisfaction,Fixed",
		`2024-05-02,"5,000원", Cafe ,,false,2.0,no`,
		"2024-05-01,10000,Food,groceries,TRUE,4,yes",
	)

	table, err := newParser().Parse(u)
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "amount", "category", "description", "essential", "satisfaction", "fixed"}, table.Columns)
	assert.True(t, table.HasEssential)
	assert.True(t, table.HasSatisfaction)
	require.Equal(t, 2, table.Len())

	first, second := table.Records[0], table.Records[1]
	assert.Equal(t, civil.Date{Year: 2024, Month: time.May, Day: 1}, first.Date.Date)
	assert.Equal(t, int64(10000), first.Amount.Int64)
	assert.True(t, first.Essential.Valid)
	assert.True(t, first.Essential.Bool)
	assert.Equal(t, "yes", first.Extra["fixed"])

	assert.Equal(t, int64(5000), second.Amount.Int64)
	assert.Equal(t, "Cafe", second.Category.StringVal)
	assert.False(t, second.Description.Valid)
	assert.Equal(t, domain.DescriptionPlaceholder, second.DescriptionText())
	assert.False(t, second.Essential.Bool)
	assert.Equal(t, int64(2), second.Satisfaction.Int64)
}

func TestParse_Amounts(t *testing.T) {
	tests := []struct {
		raw   string
		want  int64
		valid bool
	}{
		{raw: "15000", want: 15000, valid: true},
		{raw: `"1,234,567"`, want: 1234567, valid: true},
		{raw: "5000원", want: 5000, valid: true},
		{raw: "5000.0", want: 5000, valid: true},
		{raw: "₩1200", want: 1200, valid: true},
		{raw: "-300", want: -300, valid: true},
		{raw: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			table, err := newParser().Parse(csvUpload("a.csv", "date,amount,category", "2024-05-01,"+tt.raw+",Food"))
			require.NoError(t, err)
			require.Equal(t, 1, table.Len())

			got := table.Records[0].Amount
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Int64)
			}
		})
	}
}

func TestParse_UnconvertibleAmountRejectsFile(t *testing.T) {
	tests := []string{"abc", "12.5", "원"}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := newParser().Parse(csvUpload("bad.csv",
				"date,amount,category",
				"2024-05-01,100,Food",
				"2024-05-02,"+raw+",Food",
			))

			var coercion *domain.ValueCoercionError
			require.True(t, errors.As(err, &coercion), "got %v", err)
			assert.Equal(t, "bad.csv", coercion.File)
			assert.Equal(t, 3, coercion.Row)
			assert.Equal(t, domain.ColumnAmount, coercion.Column)
			assert.Equal(t, raw, coercion.Value)
		})
	}
}

func TestParse_MixedDateFormats(t *testing.T) {
	may1 := civil.Date{Year: 2024, Month: time.May, Day: 1}
	tests := []struct {
		raw   string
		valid bool
	}{
		{"2024-05-01", true},
		{"2024/05/01", true},
		{"2024.05.01", true},
		{"2024. 5. 1.", true},
		{"20240501", true},
		{"05/01/2024", true},
		{"5/1/2024", true},
		{"2024-05-01 13:45:00", true},
		{"May 1, 2024", true},
		{"2024년 5월 1일", true},
		{"yesterday", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			table, err := newParser().Parse(csvUpload("d.csv", "date,amount,category", `"`+tt.raw+`",100,Food`))
			require.NoError(t, err)

			got := table.Records[0].Date
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, may1, got.Date)
			}
		})
	}
}

func TestParse_Satisfaction(t *testing.T) {
	table, err := newParser().Parse(csvUpload("s.csv",
		"date,amount,category,satisfaction",
		"2024-05-01,100,Food,4.0",
		"2024-05-02,100,Food,",
	))
	require.NoError(t, err)
	assert.Equal(t, int64(4), table.Records[0].Satisfaction.Int64)
	assert.False(t, table.Records[1].Satisfaction.Valid)

	for _, raw := range []string{"6", "0", "3.5", "good"} {
		_, err := newParser().Parse(csvUpload("s.csv", "date,amount,category,satisfaction", "2024-05-01,100,Food,"+raw))
		var coercion *domain.ValueCoercionError
		assert.True(t, errors.As(err, &coercion), "value %q", raw)
	}
}

func TestParse_EssentialTriState(t *testing.T) {
	table, err := newParser().Parse(csvUpload("e.csv",
		"date,amount,category,essential",
		"2024-05-01,1,Food,True",
		"2024-05-02,1,Food,0",
		"2024-05-03,1,Food,maybe",
		"2024-05-04,1,Food,",
	))
	require.NoError(t, err)

	got := make([]string, 0, table.Len())
	for _, r := range table.Records {
		got = append(got, r.Value(domain.ColumnEssential))
	}
	assert.Equal(t, []string{"true", "false", "", ""}, got)
}

func TestParse_CategoryWhitespaceCollapsesToOneKey(t *testing.T) {
	table, err := newParser().Parse(csvUpload("c.csv",
		"date,amount,category",
		"2024-05-01,1,Food",
		"2024-05-02,1, Food",
		"2024-05-03,1,Food ",
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"Food"}, table.Categories())
}

func TestParse_MissingRequiredColumn(t *testing.T) {
	_, err := newParser().Parse(csvUpload("nocat.csv", "date,amount,description", "2024-05-01,1,x"))

	var format *domain.FileFormatError
	require.True(t, errors.As(err, &format))
	assert.Equal(t, domain.ColumnCategory, format.Column)
	assert.Equal(t, "nocat.csv", format.File)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	for _, name := range []string{"notes.txt", "README", "report.pdf"} {
		_, err := newParser().Parse(domain.Upload{Name: name, Data: []byte("date,amount,category\n")})
		var format *domain.FileFormatError
		assert.True(t, errors.As(err, &format), name)
	}
}

func TestParse_CorruptSpreadsheet(t *testing.T) {
	_, err := newParser().Parse(domain.Upload{Name: "broken.xlsx", Data: []byte("not a zip archive")})
	var format *domain.FileFormatError
	assert.True(t, errors.As(err, &format))
}

func TestParse_SkipsBlankRowsAndKeepsRowNumbers(t *testing.T) {
	_, err := newParser().Parse(csvUpload("gaps.csv",
		"date,amount,category",
		"2024-05-01,1,Food",
		",,",
		"2024-05-03,oops,Food",
	))
	var coercion *domain.ValueCoercionError
	require.True(t, errors.As(err, &coercion))
	assert.Equal(t, 4, coercion.Row)
}

func TestParse_ByteOrderMark(t *testing.T) {
	u := domain.Upload{Name: "bom.csv", Data: append([]byte{0xEF, 0xBB, 0xBF}, []byte("date,amount,category\n2024-05-01,1,Food\n")...)}

	table, err := newParser().Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "date", table.Columns[0])
}

func TestParse_EUCKRFallback(t *testing.T) {
	text := "date,amount,category,description\n2024-05-01,\"12,000원\",식비,점심\n"
	encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	table, err := newParser().Parse(domain.Upload{Name: "kr.csv", Data: encoded})
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "식비", table.Records[0].Category.StringVal)
	assert.Equal(t, "점심", table.Records[0].Description.StringVal)
	assert.Equal(t, int64(12000), table.Records[0].Amount.Int64)
}

func TestParse_XLSXWithSerialDates(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Date", "Amount", "Category", "Essential"}))
	require.NoError(t, f.SetCellValue(sheet, "A2", time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue(sheet, "B2", 15000))
	require.NoError(t, f.SetCellValue(sheet, "C2", "Food"))
	require.NoError(t, f.SetCellValue(sheet, "D2", "True"))
	require.NoError(t, f.SetCellValue(sheet, "A3", "2024-05-03"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "2,500"))
	require.NoError(t, f.SetCellValue(sheet, "C3", "Cafe"))
	require.NoError(t, f.SetCellValue(sheet, "D3", "false"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := newParser().Parse(domain.Upload{Name: "may.XLSX", Data: buf.Bytes()})
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	assert.Equal(t, civil.Date{Year: 2024, Month: time.May, Day: 1}, table.Records[0].Date.Date)
	assert.Equal(t, int64(15000), table.Records[0].Amount.Int64)
	assert.Equal(t, int64(2500), table.Records[1].Amount.Int64)
	assert.Equal(t, []string{"2024-05"}, table.Months())
}

func TestParse_PreSplitRows(t *testing.T) {
	u := domain.Upload{
		Name: "bq://proj.finance.expenses",
		Rows: [][]string{
			{"date", "amount", "category"},
			{"2024-04-10", "7000", "Food"},
		},
	}

	table, err := newParser().Parse(u)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), table.Records[0].Amount.Int64)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.csv", pipeline.FormatCSV},
		{"gs://bucket/dir/B.XLSX", pipeline.FormatXLSX},
		{"legacy.xls", pipeline.FormatXLS},
	}
	for _, tt := range tests {
		got, err := pipeline.DetectFormat(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
