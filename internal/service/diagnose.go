package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/jask/comptes/internal/database/repository"
	"github.com/jask/comptes/internal/money"
	"github.com/jask/comptes/internal/normalize"
)

// DiagnoseRequest describes a movement whose fingerprint is in question.
// Fields are raw user input.
type DiagnoseRequest struct {
	AccountID int64
	Date      string
	Concept   string
	Amount    string
}

// Candidate is a stored movement resembling the diagnosed one.
type Candidate struct {
	Movement repository.Movement
	// Distance is the edit distance between the concepts.
	Distance int
	// FirstDiff is the first differing rune position in the concept, -1 if equal.
	FirstDiff int
}

// Diagnosis explains why a movement is or is not treated as a duplicate.
type Diagnosis struct {
	Date        string
	Concept     string
	Amount      float64
	Source      string
	Fingerprint string
	Match       *repository.Movement
	Candidates  []Candidate
}

// DiagnoseService inspects fingerprints against the ledger.
type DiagnoseService struct {
	DB *sql.DB
}

// Diagnose normalises the input, computes its fingerprint and looks it up.
// Without an exact match it lists the movements of the same day whose
// amount is within a cent, closest concept first.
func (s *DiagnoseService) Diagnose(ctx context.Context, req DiagnoseRequest) (Diagnosis, error) {
	date, ok := normalize.ParseDate(req.Date)
	if !ok {
		return Diagnosis{}, fmt.Errorf("invalid date %q", req.Date)
	}
	amount, err := normalize.Amount(req.Amount)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}
	concept := normalize.Concept(req.Concept)

	d := Diagnosis{
		Date:        date,
		Concept:     concept,
		Amount:      amount,
		Source:      fmt.Sprintf("%s|%s|%s|%d", date, concept, money.Format(amount), req.AccountID),
		Fingerprint: Fingerprint(date, concept, amount, req.AccountID),
	}

	movements := repository.NewMovementRepo(s.DB)
	found, err := movements.FindByFingerprints(ctx, req.AccountID, []string{d.Fingerprint})
	if err != nil {
		return Diagnosis{}, err
	}
	if len(found) > 0 {
		d.Match = &found[0]
		return d, nil
	}

	cents := money.ToCents(amount)
	rows, err := movements.FindByDateAndAmount(ctx, req.AccountID, date, cents-1, cents+1)
	if err != nil {
		return Diagnosis{}, err
	}
	for _, m := range rows {
		d.Candidates = append(d.Candidates, Candidate{
			Movement:  m,
			Distance:  levenshtein.ComputeDistance(concept, m.OriginalConcept),
			FirstDiff: firstDiff(concept, m.OriginalConcept),
		})
	}
	sort.SliceStable(d.Candidates, func(i, j int) bool { return d.Candidates[i].Distance < d.Candidates[j].Distance })
	return d, nil
}

func firstDiff(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := min(len(ra), len(rb))
	for i := 0; i < n; i++ {
		if ra[i] != rb[i] {
			return i
		}
	}
	if len(ra) == len(rb) {
		return -1
	}
	return n
}
