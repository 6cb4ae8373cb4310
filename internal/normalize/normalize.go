// Package normalize turns locale-specific bank text into canonical dates,
// amounts and concepts.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// ISODate is the canonical movement date layout.
const ISODate = time.DateOnly

// dateLayouts are tried in order. Each accepted parse must format back to
// the exact input, which rejects overflowing dates such as 32/01.
var dateLayouts = []string{
	"02/01/2006", "2/1/2006",
	"02-01-2006", "2-1-2006",
	"02.01.2006", "2.1.2006",
	"2006-01-02",
	"02/01/06", "2/1/06",
	"02-01-06", "2-1-06",
	"02.01.06", "2.1.06",
}

// Date converts text to YYYY-MM-DD. When nothing parses it returns the
// trimmed input unchanged.
func Date(text string) string {
	d, _ := ParseDate(text)
	return d
}

// ParseDate is Date with an explicit success flag.
func ParseDate(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return s, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil || t.Format(layout) != s {
			continue
		}
		return t.Format(ISODate), true
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.Format(ISODate), true
	}
	return s, false
}

var amountNoise = strings.NewReplacer(" ", "", "\u00a0", "", "\t", "", "€", "", "EUR", "")

// Amount parses a bank amount. The last of ',' and '.' is the decimal
// separator when both appear. A lone comma is decimal unless more than two
// digits follow it. Repeated commas or dots are thousands separators.
func Amount(text string) (float64, error) {
	s := amountNoise.Replace(strings.TrimSpace(text))
	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "(") {
		negative = true
		s = strings.NewReplacer("(", "", ")", "", "-", "").Replace(s)
	}
	s = strings.TrimPrefix(s, "+")

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 0:
		if commas > 1 || len(s)-strings.LastIndex(s, ",") > 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", text, err)
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

var spaceRun = regexp.MustCompile(`\s+`)

// Concept trims, collapses whitespace runs and upper-cases text.
func Concept(text string) string {
	return strings.ToUpper(spaceRun.ReplaceAllString(strings.TrimSpace(text), " "))
}
