// Package ingest loads the daily price dataset from CSV or XLSX files into
// the store.
package ingest

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nihalnihalani/EnrichedMMCP/internal/storage"
	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// DateColumn is the cleaned name of the required date column.
const DateColumn = "date"

// indexColumn is the unnamed index column pandas writes into exported CSVs.
const indexColumn = "unnamed_0"

// DateLayouts are tried in order when parsing a date cell.
var DateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	time.RFC3339,
}

var nonIdentifier = regexp.MustCompile(`[^0-9a-zA-Z_]+`)

// CleanColumnName turns a header into an identifier: runs of characters
// other than letters, digits and underscores become one underscore, the
// result is lower-cased and trimmed of underscores, and a leading digit gets
// an underscore prefix.
func CleanColumnName(header string) string {
	name := strings.ToLower(nonIdentifier.ReplaceAllString(header, "_"))
	name = strings.Trim(name, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// ParseNumber parses a numeric cell. Thousands separators are ignored;
// blanks, garbage, NaN and infinities yield nil.
func ParseNumber(cell string) *float64 {
	s := strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseDate parses a date cell with DateLayouts and returns its calendar day.
func ParseDate(cell string) (time.Time, error) {
	s := strings.TrimSpace(cell)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return storage.DayOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", cell)
}

// parseSpreadsheetDate also accepts Excel serial day numbers.
func parseSpreadsheetDate(cell string) (time.Time, error) {
	t, err := ParseDate(cell)
	if err == nil {
		return t, nil
	}
	serial, perr := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if perr != nil || serial <= 0 {
		return time.Time{}, err
	}
	t, xerr := excelize.ExcelDateToTime(serial, false)
	if xerr != nil {
		return time.Time{}, err
	}
	return storage.DayOf(t), nil
}

// Parsed is the outcome of converting raw records into rows.
type Parsed struct {
	Rows    []domain.DailyRow
	Dropped int
	Ignored []string
}

// parseRecords converts a header record followed by data records into
// rows. Records whose date cannot be parsed are dropped; IDs run 1..n over
// the rows kept.
func parseRecords(records [][]string, spreadsheet bool, logger *slog.Logger) (Parsed, error) {
	if len(records) == 0 {
		return Parsed{}, fmt.Errorf("no header row")
	}

	known := make(map[string]bool)
	for _, name := range domain.NumericColumnNames() {
		known[name] = true
	}

	dateIdx := -1
	columns := make(map[int]string)
	seen := make(map[string]bool)
	var ignored []string
	for i, header := range records[0] {
		name := CleanColumnName(header)
		switch {
		case name == indexColumn || name == "":
			continue
		case seen[name]:
			ignored = append(ignored, name)
			continue
		}
		seen[name] = true

		switch {
		case name == DateColumn:
			dateIdx = i
		case known[name]:
			columns[i] = name
		default:
			ignored = append(ignored, name)
		}
	}
	if dateIdx < 0 {
		return Parsed{}, fmt.Errorf("missing %q column", DateColumn)
	}
	if len(ignored) > 0 {
		logger.Warn("ignoring unknown columns", slog.Any("columns", ignored))
	}

	parseDate := ParseDate
	if spreadsheet {
		parseDate = parseSpreadsheetDate
	}

	out := Parsed{Rows: make([]domain.DailyRow, 0, len(records)-1), Ignored: ignored}
	for line, record := range records[1:] {
		if dateIdx >= len(record) {
			out.Dropped++
			continue
		}
		date, err := parseDate(record[dateIdx])
		if err != nil {
			out.Dropped++
			logger.Debug("dropping row with bad date",
				slog.Int("line", line+2),
				slog.String("error", err.Error()))
			continue
		}

		row := domain.DailyRow{ID: int64(len(out.Rows) + 1), Date: date}
		for i, name := range columns {
			if i < len(record) {
				row.SetColumn(name, ParseNumber(record[i]))
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
