package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// utf8BOM prefixes the sample file.
const utf8BOM = "\ufeff"

var (
	sampleAmounts = []int64{
		15000, 3500, 45000, 12000, 8500, 25000, 6000,
		32000, 4500, 18000, 55000, 7500, 21000, 9000,
		28000, 5500, 16000, 42000, 11000, 8000, 35000,
		4000, 22000, 13500, 48000, 6500, 19000, 38000,
		7000, 26000,
	}
	sampleCategories = []string{
		"식비", "교통비", "쇼핑", "식비", "카페", "문화",
		"교통비", "식비", "카페", "쇼핑", "의료", "교통비",
		"식비", "카페", "쇼핑", "교통비", "식비", "문화",
		"교통비", "카페", "식비", "교통비", "쇼핑", "식비",
		"문화", "카페", "식비", "쇼핑", "교통비", "식비",
	}
	sampleDescriptions = []string{
		"점심 식사", "지하철", "옷 구매", "저녁 식사", "커피",
		"영화", "버스", "회식", "아메리카노", "온라인쇼핑",
		"병원", "택시", "배달음식", "카페라떼", "생필품",
		"지하철", "편의점", "콘서트", "버스", "디저트",
		"장보기", "지하철", "신발", "외식", "전시회",
		"커피", "점심", "악세서리", "택시", "저녁",
	}
)

// sampleRows returns the sample dataset, header first: thirty daily
// expenses starting 2024-01-01.
func sampleRows() [][]string {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := [][]string{{"date", "amount", "category", "description"}}
	for i, amount := range sampleAmounts {
		rows = append(rows, []string{
			start.AddDate(0, 0, i).Format("2006-01-02"),
			strconv.FormatInt(amount, 10),
			sampleCategories[i],
			sampleDescriptions[i],
		})
	}
	return rows
}

func runSample(log zerolog.Logger) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	out := fs.String("out", "sample_expense_data.csv", "output path")
	fs.Parse(os.Args[2:])

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to create sample file")
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		log.Fatal().Err(err).Msg("Failed to write sample file")
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(sampleRows()); err != nil {
		log.Fatal().Err(err).Msg("Failed to write sample file")
	}

	success(fmt.Sprintf("Sample data written to %s (%d rows)", *out, len(sampleAmounts)))
}
