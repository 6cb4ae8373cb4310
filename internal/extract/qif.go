package extract

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jask/comptes/internal/normalize"
)

// NoConcept is used when a QIF record carries neither payee nor memo.
const NoConcept = "MOVIMENT SENSE CONCEPTE"

type qifExtractor struct {
	logger *log.Logger
}

func (e *qifExtractor) Bank() Bank { return KMyMoney }

type qifRecord struct {
	line                  int
	date, amount          string
	payee, memo, category *string
}

func (r qifRecord) empty() bool {
	return r.date == "" && r.amount == "" && r.payee == nil && r.memo == nil && r.category == nil
}

// Extract reads a KMyMoney QIF export. Records end at a '^' line; a final
// record without one is still emitted. QIF carries no running balance.
func (e *qifExtractor) Extract(_ string, data []byte) (Result, error) {
	res := Result{Format: FormatQIF}
	lines := strings.Split(string(toUTF8(data)), "\n")
	var cur qifRecord
	flush := func() {
		if !cur.empty() {
			if m, issue, ok := e.record(cur); ok {
				res.Movements = append(res.Movements, m)
			} else if issue != nil {
				res.Issues = append(res.Issues, *issue)
			}
		}
		cur = qifRecord{}
	}
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "!Type") || strings.HasPrefix(line, "!Account") {
			continue
		}
		if line == "^" {
			cur.line = i + 1
			flush()
			continue
		}
		value := strings.TrimSpace(line[1:])
		switch line[0] {
		case 'D':
			cur.date = value
		case 'T':
			cur.amount = value
		case 'P':
			cur.payee = &value
		case 'M':
			cur.memo = &value
		case 'L':
			cur.category = &value
		case 'C', 'N', 'U':
		default:
			e.logger.Debug("unknown qif field", "line", i+1, "field", string(line[0]))
		}
	}
	cur.line = len(lines)
	flush()
	return res, nil
}

func (e *qifExtractor) record(r qifRecord) (ParsedMovement, *Issue, bool) {
	if r.date == "" || r.amount == "" {
		e.logger.Debug("qif record missing date or amount", "line", r.line)
		return ParsedMovement{}, &Issue{Row: r.line, Reason: "missing date or amount"}, false
	}
	amount, err := normalize.Amount(r.amount)
	if err != nil {
		return ParsedMovement{}, &Issue{Row: r.line, Reason: err.Error()}, false
	}
	if r.payee != nil && strings.Contains(*r.payee, "Opening Balance") && math.Abs(amount) < 0.01 {
		e.logger.Debug("skipping zero opening balance", "line", r.line)
		return ParsedMovement{}, nil, false
	}
	date, ok := normalize.ParseDate(qifDate(r.date))
	if !ok {
		return ParsedMovement{}, &Issue{Row: r.line, Reason: fmt.Sprintf("unparseable date %q", r.date)}, false
	}

	raw := NoConcept
	switch {
	case r.payee != nil && *r.payee != "":
		raw = *r.payee
	case r.memo != nil && *r.memo != "":
		raw = *r.memo
	}
	concept := normalize.Concept(raw)

	notes := concept
	if r.memo != nil {
		notes = *r.memo
	}
	return ParsedMovement{
		Date:         date,
		Concept:      concept,
		Amount:       amount,
		Notes:        &notes,
		CategoryPath: categoryPath(r.category),
	}, nil, true
}

// categoryPath drops transfer targets, which QIF writes as [Account Name].
func categoryPath(l *string) *string {
	if l == nil {
		return nil
	}
	c := strings.TrimSpace(*l)
	if c == "" || (strings.HasPrefix(c, "[") && strings.HasSuffix(c, "]")) {
		return nil
	}
	return &c
}

// qifDate rewrites the apostrophe year separator some QIF writers use (1/31'24).
func qifDate(s string) string {
	return strings.ReplaceAll(s, "'", "/")
}
