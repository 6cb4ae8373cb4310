package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jask/comptes/internal/normalize"
)

// sheetLayout describes a bank's fixed column layout.
type sheetLayout struct {
	minColumns int
	isHeader   func(row []string) bool
	parseRow   func(row []string) (ParsedMovement, error)
}

type sheetExtractor struct {
	bank   Bank
	layout sheetLayout
	logger *log.Logger
}

func (e *sheetExtractor) Bank() Bank { return e.bank }

func (e *sheetExtractor) Extract(fileName string, data []byte) (Result, error) {
	rows, format, err := ReadSheet(fileName, data)
	if err != nil {
		return Result{}, err
	}
	res := extractRows(e.layout, rows, e.logger.With("bank", e.bank))
	res.Format = format
	return res, nil
}

// extractRows skips everything up to and including the header row, then
// parses each row. Malformed rows are recorded and skipped.
func extractRows(layout sheetLayout, rows [][]string, logger *log.Logger) Result {
	var res Result
	headerFound := false
	for i, row := range rows {
		if blank(row) {
			continue
		}
		if !headerFound {
			headerFound = layout.isHeader(row)
			continue
		}
		if len(row) < layout.minColumns {
			res.Issues = append(res.Issues, Issue{Row: i + 1, Reason: fmt.Sprintf("expected %d columns, got %d", layout.minColumns, len(row))})
			logger.Debug("skipping row", "row", i+1, "columns", len(row))
			continue
		}
		m, err := layout.parseRow(row)
		if err != nil {
			res.Issues = append(res.Issues, Issue{Row: i + 1, Reason: err.Error()})
			logger.Debug("skipping row", "row", i+1, "error", err)
			continue
		}
		res.Movements = append(res.Movements, m)
	}
	if !headerFound {
		res.Issues = append(res.Issues, Issue{Row: 0, Reason: "header row not found"})
	}
	return res
}

var caixaBankLayout = sheetLayout{
	minColumns: 6,
	isHeader: func(row []string) bool {
		first, third := upperCell(row, 0), upperCell(row, 2)
		return strings.Contains(first, "DATA") || strings.Contains(third, "MOVIMENT") || strings.Contains(third, "CONCEPTE")
	},
	parseRow: func(row []string) (ParsedMovement, error) {
		concept, notes := row[2], row[3]
		full := concept
		switch {
		case concept != "" && notes != "":
			full = concept + " - " + notes
		case notes != "":
			full = notes
		}
		m, err := parseCells(row[0], full, row[4], row[5])
		if err != nil {
			return m, err
		}
		m.Notes = optional(notes)
		return m, nil
	},
}

var caixaEnginyersLayout = sheetLayout{
	minColumns: 5,
	isHeader: func(row []string) bool {
		first := upperCell(row, 0)
		return strings.Contains(first, "DATA") || strings.Contains(first, "MOVIMENT")
	},
	parseRow: func(row []string) (ParsedMovement, error) {
		return parseCells(row[0], row[1], row[3], row[4])
	},
}

func parseCells(dateCell, concept, amountCell, balanceCell string) (ParsedMovement, error) {
	if dateCell == "" || amountCell == "" {
		return ParsedMovement{}, fmt.Errorf("missing date or amount")
	}
	date, ok := cellDate(dateCell)
	if !ok {
		return ParsedMovement{}, fmt.Errorf("unparseable date %q", dateCell)
	}
	amount, err := normalize.Amount(amountCell)
	if err != nil {
		return ParsedMovement{}, err
	}
	m := ParsedMovement{Date: date, Concept: normalize.Concept(concept), Amount: amount}
	if balanceCell != "" {
		b, err := normalize.Amount(balanceCell)
		if err != nil {
			return ParsedMovement{}, fmt.Errorf("balance: %w", err)
		}
		m.Balance = &b
	}
	return m, nil
}

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// cellDate accepts textual dates and raw spreadsheet serial numbers.
func cellDate(cell string) (string, bool) {
	if serialDate.MatchString(cell) {
		serial, err := strconv.ParseFloat(cell, 64)
		if err == nil {
			return excelEpoch.AddDate(0, 0, int(serial)).Format(normalize.ISODate), true
		}
	}
	return normalize.ParseDate(cell)
}

var serialDate = regexp.MustCompile(`^\d{5}(\.\d+)?$`)

func upperCell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(row[i]))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
