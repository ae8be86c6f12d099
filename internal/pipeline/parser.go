package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/dvloznov/expense-insights/internal/config"
	"github.com/dvloznov/expense-insights/internal/domain"
)

// Supported upload formats, keyed by lower-cased file extension.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
)

// Parser turns one raw upload into a normalized table.
// It holds no per-call state and is safe for concurrent use.
type Parser struct {
	coercer coercer
}

// NewParser creates a parser using the given coercion rules.
func NewParser(rules config.ParseRules) *Parser {
	return &Parser{coercer: newCoercer(rules)}
}

// DetectFormat returns the tabular format implied by the file extension.
func DetectFormat(name string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case FormatCSV, FormatXLSX, FormatXLS:
		return ext, nil
	case "":
		return "", &domain.FileFormatError{File: name, Reason: "no file extension; expected .csv, .xlsx or .xls"}
	default:
		return "", &domain.FileFormatError{File: name, Reason: "unsupported format ." + ext + "; expected .csv, .xlsx or .xls"}
	}
}

// Parse normalizes an upload. Any unreadable content or missing required
// column yields a FileFormatError; any unconvertible cell rejects the whole
// file with a ValueCoercionError.
func (p *Parser) Parse(u domain.Upload) (*domain.Table, error) {
	rows := u.Rows
	spreadsheet := false
	if rows == nil {
		format, err := DetectFormat(u.Name)
		if err != nil {
			return nil, err
		}
		switch format {
		case FormatCSV:
			rows, err = readCSV(u.Name, u.Data)
		case FormatXLSX:
			rows, err = readXLSX(u.Name, u.Data)
			spreadsheet = true
		case FormatXLS:
			rows, err = readXLS(u.Name, u.Data)
			spreadsheet = true
		}
		if err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		return nil, &domain.FileFormatError{File: u.Name, Reason: "no header row"}
	}

	columns, index := mapHeader(rows[0])
	for _, required := range domain.RequiredColumns {
		if _, ok := index[required]; !ok {
			return nil, &domain.FileFormatError{File: u.Name, Column: required}
		}
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rowNum := i + 2
		rec, err := p.buildRecord(u.Name, rowNum, row, columns, index, spreadsheet)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return domain.NewTable(records, columns), nil
}

func (p *Parser) buildRecord(file string, rowNum int, row []string, columns []string, index map[string]int, spreadsheet bool) (domain.Record, error) {
	var rec domain.Record
	cell := func(column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	coerceErr := func(column string, err error) error {
		return &domain.ValueCoercionError{File: file, Row: rowNum, Column: column, Value: cell(column), Err: err}
	}

	rec.Date = p.coercer.date(cell(domain.ColumnDate), spreadsheet)

	amount, err := p.coercer.amount(cell(domain.ColumnAmount))
	if err != nil {
		return rec, coerceErr(domain.ColumnAmount, err)
	}
	rec.Amount = amount

	rec.Category = p.coercer.category(cell(domain.ColumnCategory))
	rec.Description = p.coercer.text(cell(domain.ColumnDescription))
	rec.Essential = p.coercer.essential(cell(domain.ColumnEssential))

	satisfaction, err := p.coercer.satisfaction(cell(domain.ColumnSatisfaction))
	if err != nil {
		return rec, coerceErr(domain.ColumnSatisfaction, err)
	}
	rec.Satisfaction = satisfaction

	for _, c := range columns {
		if isKnownColumn(c) {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[c] = cell(c)
	}
	return rec, nil
}

// mapHeader lower-cases and trims header names. Blank names are dropped and
// a repeated name keeps its first position.
func mapHeader(header []string) ([]string, map[string]int) {
	columns := make([]string, 0, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, dup := index[name]; dup {
			continue
		}
		index[name] = i
		columns = append(columns, name)
	}
	return columns, index
}

func isKnownColumn(c string) bool {
	switch c {
	case domain.ColumnDate, domain.ColumnAmount, domain.ColumnCategory,
		domain.ColumnDescription, domain.ColumnEssential, domain.ColumnSatisfaction:
		return true
	}
	return false
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
