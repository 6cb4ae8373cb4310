package service

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/jask/comptes/internal/extract"
	"github.com/jask/comptes/internal/money"
)

// Fingerprint is the duplicate-detection key of a movement: a sha256 over
// "date|concept|amount|account" with the amount at two decimals.
// Economically identical movements on the same day share a fingerprint.
func Fingerprint(date, concept string, amount float64, accountID int64) string {
	return hashSource(date, strings.TrimSpace(concept), money.Format(amount), strconv.FormatInt(accountID, 10))
}

func hashSource(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum[:])
}

// Movement is a parsed movement annotated through the import pipeline.
type Movement struct {
	extract.ParsedMovement

	Fingerprint string
	CategoryID  *int64
	// CategoryDisplay is the resolved category rendered as "A > B > C".
	CategoryDisplay string

	// OriginalConcept keeps the parsed concept when an edit replaces Concept.
	OriginalConcept string
	conceptEdited   bool
	categoryEdited  bool
}

// Annotate attaches fingerprints to parsed movements, preserving order.
func Annotate(accountID int64, parsed []extract.ParsedMovement) []Movement {
	out := make([]Movement, len(parsed))
	for i, p := range parsed {
		out[i] = Movement{
			ParsedMovement:  p,
			Fingerprint:     Fingerprint(p.Date, p.Concept, p.Amount, accountID),
			OriginalConcept: p.Concept,
		}
	}
	return out
}
