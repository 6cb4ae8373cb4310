package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/charmap"
)

// Format is the real container format of an uploaded file.
type Format string

const (
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatQIF  Format = "qif"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	htmlHints = []string{"<!doctype html", "<html", "<table", "<tr", "<td", "<th"}
)

// maxSheetRows bounds how many rows are read from a workbook sheet.
const maxSheetRows = 65536

// DetectFormat sniffs magic bytes first and falls back to the extension.
// Banks often serve HTML tables with an .xls extension.
func DetectFormat(fileName string, data []byte) (Format, error) {
	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX, nil
	}
	if bytes.HasPrefix(data, ole2Magic) {
		return FormatXLS, nil
	}
	if looksLikeHTML(data) {
		return FormatHTML, nil
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), ".")) {
	case "xls":
		return FormatXLS, nil
	case "xlsx":
		return FormatXLSX, nil
	case "csv", "txt":
		return FormatCSV, nil
	case "html", "htm":
		return FormatHTML, nil
	case "qif":
		return FormatQIF, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 2048 {
		head = head[:2048]
	}
	lower := strings.ToLower(string(head))
	for _, hint := range htmlHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// ReadSheet returns the first sheet of a tabular file as trimmed cells.
func ReadSheet(fileName string, data []byte) ([][]string, Format, error) {
	format, err := DetectFormat(fileName, data)
	if err != nil {
		return nil, "", err
	}
	var rows [][]string
	switch format {
	case FormatXLS:
		rows, err = readXLS(data)
	case FormatXLSX:
		rows, err = readXLSX(data)
	case FormatHTML:
		rows, err = readHTML(data)
	case FormatCSV:
		rows, err = readCSV(data)
	default:
		return nil, format, fmt.Errorf("%w: %s is not tabular", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, format, fmt.Errorf("read %s: %w", format, err)
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return rows, format, nil
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "cp1252")
	if err != nil {
		return nil, fmt.Errorf("error creating workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("no data found in sheet")
	}
	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow) && i < maxSheetRows; i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readHTML(data []byte) ([][]string, error) {
	doc, err := html.Parse(bytes.NewReader(toUTF8(data)))
	if err != nil {
		return nil, err
	}
	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, nodeText(c))
				}
			}
			rows = append(rows, cells)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func readCSV(data []byte) ([][]string, error) {
	text := string(toUTF8(data))
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// detectDelimiter picks the most frequent candidate on the first line; tab when none appears.
func detectDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	best, bestCount := '\t', 0
	for _, d := range []rune{'\t', ',', ';', '|'} {
		if n := strings.Count(first, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// toUTF8 strips a BOM and decodes Windows-1252 text, which Spanish bank exports often use.
func toUTF8(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}
