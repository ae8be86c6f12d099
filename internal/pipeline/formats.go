package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"

	"github.com/dvloznov/expense-insights/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV decodes CSV bytes. UTF-8 is expected; bytes that are not valid
// UTF-8 are decoded as EUC-KR (CP949), the usual export encoding of Korean
// banking and spreadsheet tools.
func readCSV(name string, data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := korean.EUCKR.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &domain.FileFormatError{File: name, Reason: "text is neither UTF-8 nor EUC-KR", Err: err}
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &domain.FileFormatError{File: name, Reason: "malformed CSV", Err: err}
	}
	return rows, nil
}

// readXLSX returns the cells of the first worksheet. Raw cell values are
// requested so date cells arrive as serial day numbers rather than
// locale-formatted text.
func readXLSX(name string, data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.FileFormatError{File: name, Reason: "unreadable xlsx workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.FileFormatError{File: name, Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &domain.FileFormatError{File: name, Reason: fmt.Sprintf("reading sheet %q", sheets[0]), Err: err}
	}
	return rows, nil
}

// readXLS returns the cells of the first worksheet of a legacy BIFF workbook.
func readXLS(name string, data []byte) (rows [][]string, err error) {
	// The BIFF reader panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = &domain.FileFormatError{File: name, Reason: fmt.Sprintf("unreadable xls workbook: %v", r)}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &domain.FileFormatError{File: name, Reason: "unreadable xls workbook", Err: err}
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, &domain.FileFormatError{File: name, Reason: "workbook has no sheets"}
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
