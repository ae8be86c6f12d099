package pipeline

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/dvloznov/expense-insights/internal/config"
)

var (
	errNotNumber    = errors.New("not a number")
	errNotInteger   = errors.New("fractional value where an integer is required")
	errOutOfRange   = errors.New("satisfaction must be between 1 and 5")
	errAmountTooBig = errors.New("amount exceeds int64 range")
)

// Serial day numbers outside this window are not treated as spreadsheet dates
// (1 is 1900-01-01, 2958465 is 9999-12-31).
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

type coercer struct {
	layouts  []string
	strip    *strings.Replacer
	trueSet  map[string]bool
	falseSet map[string]bool
}

func newCoercer(rules config.ParseRules) coercer {
	var pairs []string
	for _, s := range rules.ThousandsSeparators {
		pairs = append(pairs, s, "")
	}
	for _, s := range rules.CurrencyTokens {
		pairs = append(pairs, s, "")
	}
	pairs = append(pairs, " ", "", "\u00a0", "")

	c := coercer{
		layouts:  rules.DateLayouts,
		strip:    strings.NewReplacer(pairs...),
		trueSet:  make(map[string]bool, len(rules.TrueValues)),
		falseSet: make(map[string]bool, len(rules.FalseValues)),
	}
	for _, v := range rules.TrueValues {
		c.trueSet[strings.ToLower(v)] = true
	}
	for _, v := range rules.FalseValues {
		c.falseSet[strings.ToLower(v)] = true
	}
	return c
}

// amount strips separators and currency tokens and requires an integral value.
// An empty cell is null.
func (c coercer) amount(raw string) (bigquery.NullInt64, error) {
	if raw == "" {
		return bigquery.NullInt64{}, nil
	}
	cleaned := c.strip.Replace(raw)
	if cleaned == "" {
		return bigquery.NullInt64{}, errNotNumber
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return bigquery.NullInt64{}, errNotNumber
	}
	if !d.IsInteger() {
		return bigquery.NullInt64{}, errNotInteger
	}
	if !d.BigInt().IsInt64() {
		return bigquery.NullInt64{}, errAmountTooBig
	}
	return bigquery.NullInt64{Int64: d.IntPart(), Valid: true}, nil
}

// date tries each layout in order. Spreadsheet cells may also hold a serial
// day number. A cell matching nothing is null rather than an error.
func (c coercer) date(raw string, spreadsheet bool) bigquery.NullDate {
	if raw == "" {
		return bigquery.NullDate{}
	}
	for _, layout := range c.layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
		}
	}
	if spreadsheet {
		if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return bigquery.NullDate{Date: civil.DateOf(t), Valid: true}
			}
		}
	}
	return bigquery.NullDate{}
}

func (c coercer) essential(raw string) bigquery.NullBool {
	v := strings.ToLower(raw)
	switch {
	case c.trueSet[v]:
		return bigquery.NullBool{Bool: true, Valid: true}
	case c.falseSet[v]:
		return bigquery.NullBool{Bool: false, Valid: true}
	default:
		return bigquery.NullBool{}
	}
}

// satisfaction accepts integral scores 1-5 ("4.0" is 4). Empty is null.
func (c coercer) satisfaction(raw string) (bigquery.NullInt64, error) {
	if raw == "" {
		return bigquery.NullInt64{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return bigquery.NullInt64{}, errNotNumber
	}
	if !d.IsInteger() {
		return bigquery.NullInt64{}, errNotInteger
	}
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(decimal.NewFromInt(5)) {
		return bigquery.NullInt64{}, errOutOfRange
	}
	return bigquery.NullInt64{Int64: d.IntPart(), Valid: true}, nil
}

// category trims and NFC-normalizes so visually identical names group together.
func (c coercer) category(raw string) bigquery.NullString {
	v := norm.NFC.String(strings.TrimSpace(raw))
	if v == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: v, Valid: true}
}

func (c coercer) text(raw string) bigquery.NullString {
	if raw == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: raw, Valid: true}
}
