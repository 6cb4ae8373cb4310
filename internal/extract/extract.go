// Package extract turns bank export files into parsed movements.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Bank tags a supported export source.
type Bank string

const (
	CaixaBank      Bank = "caixabank"
	CaixaEnginyers Bank = "caixa_enginyers"
	KMyMoney       Bank = "kmymoney"
)

// Banks lists every supported source in display order.
var Banks = []Bank{CaixaEnginyers, CaixaBank, KMyMoney}

var ErrUnknownBank = errors.New("unknown bank type")

// ParseBank validates a bank tag.
func ParseBank(s string) (Bank, error) {
	b := Bank(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Banks {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBank, s)
}

// ParsedMovement is one movement as read from a source file.
type ParsedMovement struct {
	Date         string // YYYY-MM-DD
	Concept      string
	Amount       float64
	Balance      *float64
	Notes        *string
	CategoryPath *string
}

// Issue describes a skipped row or record.
type Issue struct {
	Row    int // 1-based row or line
	Reason string
}

func (i Issue) String() string { return fmt.Sprintf("row %d: %s", i.Row, i.Reason) }

// Result is the outcome of extracting one file. Movements are oldest first.
type Result struct {
	Movements []ParsedMovement
	Issues    []Issue
	Format    Format
}

// Extractor turns one file of a given bank into movements.
type Extractor interface {
	Bank() Bank
	Extract(fileName string, data []byte) (Result, error)
}

// For returns the extractor registered for bank.
func For(bank Bank, logger *log.Logger) (Extractor, error) {
	switch bank {
	case CaixaBank:
		return &sheetExtractor{bank: bank, layout: caixaBankLayout, logger: logger}, nil
	case CaixaEnginyers:
		return &sheetExtractor{bank: bank, layout: caixaEnginyersLayout, logger: logger}, nil
	case KMyMoney:
		return &qifExtractor{logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBank, bank)
	}
}

// Extract dispatches to the extractor for bank and orients the result oldest first.
func Extract(bank Bank, fileName string, data []byte, logger *log.Logger) (Result, error) {
	ex, err := For(bank, logger)
	if err != nil {
		return Result{}, err
	}
	res, err := ex.Extract(fileName, data)
	if err != nil {
		return Result{}, err
	}
	res.Movements = OldestFirst(res.Movements)
	logger.Debug("extracted movements", "bank", bank, "file", fileName, "format", res.Format, "movements", len(res.Movements), "issues", len(res.Issues))
	return res, nil
}

// OldestFirst reverses ms when it is ordered newest first, as bank exports usually are.
func OldestFirst(ms []ParsedMovement) []ParsedMovement {
	if len(ms) < 2 || ms[0].Date <= ms[len(ms)-1].Date {
		return ms
	}
	out := make([]ParsedMovement, len(ms))
	for i, m := range ms {
		out[len(ms)-1-i] = m
	}
	return out
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
